package api

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/chenyanggao-clone/p115client/envelope"
	"github.com/chenyanggao-clone/p115client/p115err"
)

const (
	webAPIHost  = "https://webapi.example-service.invalid"
	proAPIHost  = "https://proapi.example-service.invalid"
	uplbHost    = "https://uplb.example-service.invalid"
	defaultPage = 32
)

// Client binds a Transport to the Service's JSON endpoints (C4) and
// holds the per-session ECDH codec the upload-init envelope requires.
type Client struct {
	Transport *Transport
	ECDH      *envelope.ECDHCodec
	UserID    string
	UserKey   string
}

// NewClient wires a Transport to a freshly generated ECDH key pair, per
// §3's Session lifecycle (the key pair is generated once per session).
func NewClient(t *Transport) (*Client, error) {
	ecdh, err := envelope.NewECDHCodec()
	if err != nil {
		return nil, err
	}
	return &Client{Transport: t, ECDH: ecdh}, nil
}

// List fetches one page of a directory's children (§4.8 "Listing").
func (c *Client) List(ctx context.Context, parentID uint64, offset, limit int) (ListResult, error) {
	if limit <= 0 {
		limit = defaultPage
	}
	resp, err := c.Transport.Call(ctx, Request{
		Method: "GET",
		URL:    webAPIHost + "/files",
		Query: Params{
			"cid":            {strconv.FormatUint(parentID, 10)},
			"limit":          {strconv.Itoa(limit)},
			"offset":         {strconv.Itoa(offset)},
			"show_dir":       {"1"},
			"count_folders":  {"1"},
		},
		Parse:      ParseJSON,
		Idempotent: true,
	})
	if err != nil {
		return ListResult{}, err
	}
	return decodeListResult(resp.JSON, offset)
}

func decodeListResult(body map[string]any, offset int) (ListResult, error) {
	out := ListResult{Offset: offset}
	if count, ok := body["count"]; ok {
		out.Total = int(toInt64(count))
	}
	rawChildren, _ := body["data"].([]any)
	for _, rc := range rawChildren {
		m, ok := rc.(map[string]any)
		if !ok {
			continue
		}
		out.Children = append(out.Children, nodeFromMap(m))
	}
	rawPath, _ := body["path"].([]any)
	for _, rp := range rawPath {
		m, ok := rp.(map[string]any)
		if !ok {
			continue
		}
		out.Breadcrumb = append(out.Breadcrumb, nodeFromMap(m))
	}
	return out, nil
}

func nodeFromMap(m map[string]any) Node {
	n := Node{Extra: m}
	n.ID = uint64(toInt64(m["fid"]))
	if n.ID == 0 {
		n.ID = uint64(toInt64(m["cid"]))
	}
	n.ParentID = uint64(toInt64(m["pid"]))
	n.Name, _ = m["n"].(string)
	if n.Name == "" {
		n.Name, _ = m["name"].(string)
	}
	_, hasFid := m["fid"]
	n.IsDirectory = !hasFid
	n.Size = toInt64(m["s"])
	n.SHA1, _ = m["sha"].(string)
	n.PickCode, _ = m["pc"].(string)
	n.MTime = toInt64(m["te"])
	n.CTime = toInt64(m["tp"])
	n.ATime = toInt64(m["to"])
	return n
}

// GetInfo resolves a node's attributes plus its parent-chain breadcrumb
// (§4.8 "Resolve by id").
func (c *Client) GetInfo(ctx context.Context, fileID uint64) (Node, []Node, error) {
	resp, err := c.Transport.Call(ctx, Request{
		Method:     "GET",
		URL:        webAPIHost + "/files/get_info",
		Query:      Params{"file_id": {strconv.FormatUint(fileID, 10)}},
		Parse:      ParseJSON,
		Idempotent: true,
	})
	if err != nil {
		return Node{}, nil, err
	}
	rawData, _ := resp.JSON["data"].([]any)
	if len(rawData) == 0 {
		return Node{}, nil, p115err.New(p115err.KindNotFound, "file_id not found")
	}
	self := nodeFromMap(rawData[len(rawData)-1].(map[string]any))
	var chain []Node
	for _, rd := range rawData[:len(rawData)-1] {
		chain = append(chain, nodeFromMap(rd.(map[string]any)))
	}
	return self, chain, nil
}

// Mkdir creates a directory (§4.9 mkdir).
func (c *Client) Mkdir(ctx context.Context, parentID uint64, name string) (Node, error) {
	resp, err := c.Transport.Call(ctx, Request{
		Method: "POST",
		URL:    webAPIHost + "/files/add",
		Form: Params{
			"pid":   {strconv.FormatUint(parentID, 10)},
			"cname": {name},
		},
		Parse: ParseJSON,
	})
	if err != nil {
		return Node{}, err
	}
	return Node{
		ID:          uint64(toInt64(resp.JSON["cid"])),
		ParentID:    parentID,
		Name:        name,
		IsDirectory: true,
	}, nil
}

// Rename renames a single node (§4.9 rename). The Service's
// fs/batch_rename endpoint takes a map keyed by id.
func (c *Client) Rename(ctx context.Context, id uint64, newName string) error {
	_, err := c.Transport.Call(ctx, Request{
		Method: "POST",
		URL:    webAPIHost + "/files/batch_rename",
		Form: Params{
			fmt.Sprintf("files_new_name[%d]", id): {newName},
		},
		Parse: ParseJSON,
	})
	return err
}

// Move moves a batch of nodes to a new parent (§4.9 move).
func (c *Client) Move(ctx context.Context, ids []uint64, newParentID uint64) error {
	form := Params{"pid": {strconv.FormatUint(newParentID, 10)}}
	for i, id := range ids {
		form.Add(fmt.Sprintf("fid[%d]", i), strconv.FormatUint(id, 10))
	}
	_, err := c.Transport.Call(ctx, Request{
		Method: "POST",
		URL:    webAPIHost + "/files/move",
		Form:   form,
		Parse:  ParseJSON,
	})
	return err
}

// Copy copies a batch of nodes to a new parent; server-side, instant,
// and byte-free (§4.9 copy).
func (c *Client) Copy(ctx context.Context, ids []uint64, newParentID uint64) error {
	form := Params{"pid": {strconv.FormatUint(newParentID, 10)}}
	for i, id := range ids {
		form.Add(fmt.Sprintf("fid[%d]", i), strconv.FormatUint(id, 10))
	}
	_, err := c.Transport.Call(ctx, Request{
		Method: "POST",
		URL:    webAPIHost + "/files/copy",
		Form:   form,
		Parse:  ParseJSON,
	})
	return err
}

// Delete moves a batch of nodes to the recycle bin (§4.9 delete).
func (c *Client) Delete(ctx context.Context, ids []uint64) error {
	form := Params{}
	for i, id := range ids {
		form.Add(fmt.Sprintf("fid[%d]", i), strconv.FormatUint(id, 10))
	}
	_, err := c.Transport.Call(ctx, Request{
		Method: "POST",
		URL:    webAPIHost + "/rb/delete",
		Form:   form,
		Parse:  ParseJSON,
	})
	return err
}

// DownloadURL negotiates a time-limited signed download URL through the
// RSA envelope (§4.1.1, §4.9 get-url). A fresh RSACodec is generated for
// this call, matching "for each [request] a client generates a 16-byte
// rand_key".
func (c *Client) DownloadURL(ctx context.Context, pickCode string) (url string, headers map[string]string, expiry time.Time, err error) {
	codec, err := envelope.NewRSACodec()
	if err != nil {
		return "", nil, time.Time{}, err
	}

	plaintext := []byte(fmt.Sprintf(`{"pickcode":%q}`, pickCode))
	wire, err := codec.Encode(plaintext)
	if err != nil {
		return "", nil, time.Time{}, err
	}

	resp, err := c.Transport.Call(ctx, Request{
		Method:      "POST",
		URL:         proAPIHost + "/app/chrome/downurl",
		RawBody:     wire,
		ContentType: "application/x-www-form-urlencoded",
		Parse:       ParseRaw,
	})
	if err != nil {
		return "", nil, time.Time{}, err
	}

	plainResp, err := codec.Decode(resp.Raw)
	if err != nil {
		return "", nil, time.Time{}, err
	}
	return parseDownloadURLResponse(plainResp)
}

func parseDownloadURLResponse(body []byte) (string, map[string]string, time.Time, error) {
	// The decoded body is itself a small JSON document keyed by
	// pickcode; §9's open question notes the url field is occasionally
	// empty for directories, which this surfaces as an empty string
	// rather than an error (IsDirectory semantics are left to the
	// caller).
	urlVal := extractJSONString(body, "url")
	tsVal := extractJSONString(body, "t")
	var expiry time.Time
	if tsVal != "" {
		if sec, convErr := strconv.ParseInt(tsVal, 10, 64); convErr == nil {
			expiry = time.Unix(sec, 0)
		}
	}
	headers := map[string]string{
		"User-Agent": userAgent,
	}
	return urlVal, headers, expiry, nil
}

// extractJSONString is a minimal best-effort string field extractor used
// only for the RSA-decoded body, which is small and doesn't warrant
// pulling the full json package through another indirection here.
func extractJSONString(body []byte, key string) string {
	marker := `"` + key + `":"`
	idx := strings.Index(string(body), marker)
	if idx < 0 {
		return ""
	}
	rest := string(body)[idx+len(marker):]
	end := strings.IndexByte(rest, '"')
	if end < 0 {
		return ""
	}
	return rest[:end]
}

// UploadInitRequest carries the fields upload_file_init needs across its
// up-to-two round trips (§4.4 step 2).
type UploadInitRequest struct {
	FileName string
	FileSize int64
	SHA1     string // uppercase hex
	ParentID uint64
	UserID   string
	UserKey  string
	SignKey  string // present only on the hash-challenge retry
	SignVal  string // present only on the hash-challenge retry
}

// UploadInit performs the instant-upload negotiation (§4.4 step 2,
// §4.1.3). The request body is wrapped with the session's ECDH codec;
// the response is unwrapped the same way.
func (c *Client) UploadInit(ctx context.Context, req UploadInitRequest) (UploadInitResult, error) {
	target := fmt.Sprintf("U_1_%d", req.ParentID)
	now := time.Now().Unix()

	sig := computeUploadSig(req.UserKey, req.UserID, req.SHA1, target)
	token := computeUploadToken(req.SHA1, req.FileSize, req.SignKey, req.SignVal, req.UserID, now)

	form := Params{
		"appid":      {"0"},
		"appversion": {envelope.AppVersion()},
		"userid":     {req.UserID},
		"filename":   {req.FileName},
		"filesize":   {strconv.FormatInt(req.FileSize, 10)},
		"fileid":     {strings.ToUpper(req.SHA1)},
		"target":     {target},
		"sig":        {sig},
		"t":          {strconv.FormatInt(now, 10)},
		"token":      {token},
	}
	if req.SignKey != "" {
		form.Set("sign_key", req.SignKey)
		form.Set("sign_val", req.SignVal)
	}

	plaintext := []byte(form.Encode())
	wire, err := c.ECDH.Encode(plaintext)
	if err != nil {
		return UploadInitResult{}, err
	}

	kEC, err := envelope.EncodeToken(c.ECDH.PublicKey(), now)
	if err != nil {
		return UploadInitResult{}, err
	}

	resp, err := c.Transport.Call(ctx, Request{
		Method:      "POST",
		URL:         uplbHost + "/4.0/initupload.php",
		Query:       Params{"k_ec": {kEC}},
		RawBody:     wire,
		ContentType: "application/octet-stream",
		Parse:       ParseRaw,
	})
	if err != nil {
		return UploadInitResult{}, err
	}

	plainResp, err := c.ECDH.Decode(resp.Raw, false)
	if err != nil {
		return UploadInitResult{}, err
	}
	return decodeUploadInitResult(plainResp)
}

func decodeUploadInitResult(body []byte) (UploadInitResult, error) {
	var out UploadInitResult
	out.Status = int(jsonInt(body, "status"))
	out.StatusCode = int(jsonInt(body, "statuscode"))
	out.PickCode = extractJSONString(body, "pickcode")
	out.SignKey = extractJSONString(body, "sign_key")
	out.SignCheck = extractJSONString(body, "sign_check")
	out.Bucket = extractJSONString(body, "bucket")
	out.Object = extractJSONString(body, "object")
	out.Callback.Callback = extractJSONString(body, "callback")
	out.Callback.CallbackVar = extractJSONString(body, "callback_var")
	return out, nil
}

func jsonInt(body []byte, key string) int64 {
	marker := `"` + key + `":`
	idx := strings.Index(string(body), marker)
	if idx < 0 {
		return 0
	}
	rest := string(body)[idx+len(marker):]
	var n int64
	_, _ = fmt.Sscanf(rest, "%d", &n)
	return n
}

// computeUploadSig implements §4.1.3's sig field. The trailing "0" is
// reproduced verbatim per §9's open question; its meaning upstream is
// undocumented.
func computeUploadSig(userKey, userID, fileSHA1, target string) string {
	inner := sha1Hex(userID + fileSHA1 + target + "0")
	outer := sha1.Sum([]byte(userKey + inner + "000000"))
	return strings.ToUpper(hex.EncodeToString(outer[:]))
}

// computeUploadToken implements §4.1.3's token field.
func computeUploadToken(fileSHA1 string, fileSize int64, signKey, signVal, userID string, timestamp int64) string {
	userIDHash := md5Hex(userID)
	payload := string(md5Salt()) + fileSHA1 + strconv.FormatInt(fileSize, 10) +
		signKey + signVal + userID + strconv.FormatInt(timestamp, 10) + userIDHash + envelope.AppVersion()
	return md5Hex(payload)
}

func sha1Hex(s string) string {
	h := sha1.Sum([]byte(s))
	return strings.ToUpper(hex.EncodeToString(h[:]))
}

func md5Hex(s string) string {
	h := md5.Sum([]byte(s))
	return hex.EncodeToString(h[:])
}

func md5Salt() string { return envelope.MD5Salt() }
