package api

import "encoding/xml"

// Node is a directory or file in the Service's id-addressed object
// graph. Field names follow §3 of the spec; timestamps beyond
// mtime/ctime/atime are preserved verbatim in Extra since the Service's
// own ptime/utime/open_time variants have no agreed semantics beyond
// "whatever the Service last reported".
type Node struct {
	ID          uint64 `json:"id"`
	ParentID    uint64 `json:"parent_id"`
	Name        string `json:"name"`
	IsDirectory bool   `json:"is_directory"`
	Size        int64  `json:"size,omitempty"`
	SHA1        string `json:"sha1,omitempty"`
	PickCode    string `json:"pickcode,omitempty"`

	CTime int64 `json:"ctime,omitempty"`
	MTime int64 `json:"mtime,omitempty"`
	ATime int64 `json:"atime,omitempty"`

	Star        bool `json:"star,omitempty"`
	Hidden      bool `json:"hidden,omitempty"`
	Described   bool `json:"described,omitempty"`
	Score       int  `json:"score,omitempty"`
	Thumb       bool `json:"thumb,omitempty"`
	PlayLong    bool `json:"play_long,omitempty"`
	Violated    bool `json:"violated,omitempty"`

	Extra map[string]any `json:"-"`
}

// Root returns the synthesized root Node: id 0, empty name, path "/".
func Root() Node {
	return Node{ID: 0, ParentID: 0, Name: "", IsDirectory: true}
}

// ListResult is one page of a directory listing.
type ListResult struct {
	Children []Node
	Total    int
	Offset   int
	// Breadcrumb is the server-supplied parent chain for the listed
	// directory, letting callers compute an absolute path without a
	// separate walk (§4.8 "Resolve by id").
	Breadcrumb []Node
}

// UploadInitResult is the decoded body of upload_file_init, covering
// both the instant-upload/hash-challenge shapes and the OSS-dispatch
// shape (§4.4).
type UploadInitResult struct {
	Status      int    `json:"status"`
	StatusCode  int    `json:"statuscode"`
	PickCode    string `json:"pickcode,omitempty"`
	FileID      uint64 `json:"file_id,omitempty"`

	// Hash-challenge fields (status=7, statuscode=701).
	SignKey   string `json:"sign_key,omitempty"`
	SignCheck string `json:"sign_check,omitempty"`

	// OSS-dispatch fields (status=1, statuscode=0).
	Bucket   string       `json:"bucket,omitempty"`
	Object   string       `json:"object,omitempty"`
	Callback CallbackBlob `json:"callback,omitempty"`
}

// CallbackBlob is the opaque pair the Service expects echoed back,
// base64-encoded, on the multipart-completion request.
type CallbackBlob struct {
	Callback    string `json:"callback"`
	CallbackVar string `json:"callback_var"`
}

// STSCredentials is the short-lived OSS credential triple (§ Glossary).
type STSCredentials struct {
	AccessKeyID     string
	AccessKeySecret string
	SecurityToken   string
	Expiration      int64 // unix seconds
}

// OSSPart is one already-uploaded part, as returned by the OSS list-parts
// call (§4.6 "List parts").
type OSSPart struct {
	PartNumber   int    `xml:"PartNumber"`
	LastModified string `xml:"LastModified"`
	ETag         string `xml:"ETag"`
	Size         int64  `xml:"Size"`
	HashCRC64    string `xml:"HashCrc64ecma"`
}

// ossListPartsResponse mirrors the Aliyun OSS ListParts XML schema.
type ossListPartsResponse struct {
	XMLName              xml.Name  `xml:"ListPartsResult"`
	Bucket                string    `xml:"Bucket"`
	Key                   string    `xml:"Key"`
	UploadID              string    `xml:"UploadId"`
	IsTruncated           bool      `xml:"IsTruncated"`
	NextPartNumberMarker  int       `xml:"NextPartNumberMarker"`
	Part                  []OSSPart `xml:"Part"`
}

// ossInitiateResponse mirrors the Aliyun OSS InitiateMultipartUpload XML
// schema.
type ossInitiateResponse struct {
	XMLName  xml.Name `xml:"InitiateMultipartUploadResult"`
	Bucket   string   `xml:"Bucket"`
	Key      string   `xml:"Key"`
	UploadID string   `xml:"UploadId"`
}

// CompletedPart is one entry in the complete-multipart-upload request
// body, ordered by PartNumber ascending per §4.6 "Ordering guarantees".
type CompletedPart struct {
	PartNumber int    `xml:"PartNumber"`
	ETag       string `xml:"ETag"`
}

type completeMultipartUploadRequest struct {
	XMLName xml.Name        `xml:"CompleteMultipartUpload"`
	Part    []CompletedPart `xml:"Part"`
}
