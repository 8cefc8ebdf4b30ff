package upload

import "github.com/chenyanggao-clone/p115client/api"

// Checkpoint is the resume contract of §4.5: a JSON-serializable value
// returned to the caller when a multipart upload is interrupted, and
// re-acceptable as input to Resume together with the same source.
type Checkpoint struct {
	Bucket     string           `json:"bucket"`
	Object     string           `json:"object"`
	UploadID   string           `json:"upload_id"`
	Callback   api.CallbackBlob `json:"callback"`
	PartSize   int64            `json:"part_size"`
	FileSize   int64            `json:"file_size"`
	ParentID   uint64           `json:"parent_id"`
	FileName   string           `json:"file_name"`
	SHA1       string           `json:"sha1"`
}

// AbortedError carries the resume checkpoint per §4.5/§7's
// MultipartAborted kind. It is not an error the client should swallow:
// it is the documented resume signal.
type AbortedError struct {
	Checkpoint Checkpoint
	Cause      error
}

func (e *AbortedError) Error() string {
	if e.Cause != nil {
		return "upload: multipart upload aborted: " + e.Cause.Error()
	}
	return "upload: multipart upload aborted"
}

func (e *AbortedError) Unwrap() error { return e.Cause }
