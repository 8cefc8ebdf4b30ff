package upload

import (
	"context"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/chenyanggao-clone/p115client/api"
	"github.com/chenyanggao-clone/p115client/p115err"
)

// Engine drives the upload decision tree of §4.4: instant-upload
// negotiation, hash-challenge response, and dispatch to either a
// single-shot PUT or the OSS multipart driver. It does not call the
// sample fallback itself: when the source cannot answer a hash
// challenge, Upload returns an Unsupported error.
type Engine struct {
	API        *api.Client
	Multipart  *MultipartDriver
	Log        *logrus.Entry
	// PartSize is the OSS chunk size used once a multipart upload is
	// chosen. The Service does not negotiate this; it is a local policy
	// knob (§4.6).
	PartSize int64
}

// NewEngine wires an Engine with a sane default part size (16 MiB).
func NewEngine(apiClient *api.Client, multipart *MultipartDriver) *Engine {
	return &Engine{
		API:       apiClient,
		Multipart: multipart,
		Log:       logrus.WithField("component", "upload-engine"),
		PartSize:  16 << 20,
	}
}

// Result is what Upload returns on success: either an instant-upload hit
// or a completed OSS upload, normalized to a pickcode/file reference.
type Result struct {
	PickCode string
	FileID   uint64
	Instant  bool
}

// Upload drives §4.4 end to end for a seekable source whose size is
// known up front (the common case: local files, in-memory buffers).
// userID/userKey are the session's identity fields required by the
// upload-init signature (§4.1.3).
func (e *Engine) Upload(ctx context.Context, src SeekableSource, parentID uint64, fileName, userID, userKey string) (Result, error) {
	size, known := src.Size()
	if !known {
		return Result{}, p115err.New(p115err.KindInvalid, "upload: seekable source must report a known size")
	}

	fileSHA1, err := RangeSHA1(src, 0, size-1)
	if err != nil {
		return Result{}, err
	}

	req := api.UploadInitRequest{
		FileName: fileName,
		FileSize: size,
		SHA1:     fileSHA1,
		ParentID: parentID,
		UserID:   userID,
		UserKey:  userKey,
	}

	init, err := e.API.UploadInit(ctx, req)
	if err != nil {
		return Result{}, err
	}

	if init.Status == 7 && init.StatusCode == 701 {
		start, end, rangeErr := parseSignCheckRange(init.SignCheck)
		if rangeErr != nil {
			return Result{}, rangeErr
		}
		rangeSHA1, hashErr := RangeSHA1(src, start, end)
		if hashErr != nil {
			// Source isn't re-readable over the challenged range: the
			// caller must fall back to SampleUpload (§4.4 step 2).
			return Result{}, p115err.New(p115err.KindUnsupported, "upload: source cannot answer hash challenge, fall back to sample upload")
		}
		req.SignKey = init.SignKey
		req.SignVal = rangeSHA1
		init, err = e.API.UploadInit(ctx, req)
		if err != nil {
			return Result{}, err
		}
	}

	switch {
	case init.Status == 2 && init.StatusCode == 0:
		e.Log.WithField("pickcode", init.PickCode).Info("instant upload hit")
		return Result{PickCode: init.PickCode, FileID: init.FileID, Instant: true}, nil

	case init.Status == 1 && init.StatusCode == 0:
		cp := Checkpoint{
			Bucket:   init.Bucket,
			Object:   init.Object,
			Callback: init.Callback,
			PartSize: e.PartSize,
			FileSize: size,
			ParentID: parentID,
			FileName: fileName,
			SHA1:     fileSHA1,
		}

		var body map[string]any
		var uploadErr error
		if e.PartSize <= 0 {
			body, uploadErr = e.Multipart.SinglePut(ctx, src, cp)
		} else {
			body, uploadErr = e.Multipart.Upload(ctx, src, cp)
		}
		if uploadErr != nil {
			return Result{}, uploadErr
		}
		return resultFromCallbackBody(body), nil

	default:
		return Result{}, p115err.New(p115err.KindRemoteError, "upload: unexpected upload_file_init status "+strconv.Itoa(init.Status)+"/"+strconv.Itoa(init.StatusCode))
	}
}

// parseSignCheckRange splits a "<start>-<end>" inclusive byte range
// (§4.4 step 2, §4.1 glossary "Hash challenge").
func parseSignCheckRange(signCheck string) (start, end int64, err error) {
	parts := strings.SplitN(signCheck, "-", 2)
	if len(parts) != 2 {
		return 0, 0, p115err.New(p115err.KindRemoteError, "upload: malformed sign_check "+signCheck)
	}
	start, errStart := strconv.ParseInt(parts[0], 10, 64)
	end, errEnd := strconv.ParseInt(parts[1], 10, 64)
	if errStart != nil || errEnd != nil {
		return 0, 0, p115err.New(p115err.KindRemoteError, "upload: malformed sign_check "+signCheck)
	}
	return start, end, nil
}

func resultFromCallbackBody(body map[string]any) Result {
	var out Result
	if pc, ok := body["pick_code"].(string); ok {
		out.PickCode = pc
	} else if pc, ok := body["pickcode"].(string); ok {
		out.PickCode = pc
	}
	if fid, ok := body["file_id"]; ok {
		out.FileID = uint64(toInt64JSON(fid))
	}
	return out
}
