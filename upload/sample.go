package upload

import (
	"context"
	"encoding/json"
	"io"

	"github.com/chenyanggao-clone/p115client/api"
	"github.com/chenyanggao-clone/p115client/p115err"
)

// sampleInitResponse is the Service's sample-upload init response
// (§4.7 step 1).
type sampleInitResponse struct {
	Host      string `json:"host"`
	Object    string `json:"object"`
	Policy    string `json:"policy"`
	AccessID  string `json:"accessid"`
	Callback  string `json:"callback"`
	Signature string `json:"signature"`
}

// SampleUpload is used for inputs that cannot participate in
// instant-upload: unknown size, not hashable, or no dedup hit available
// (§4.7). The Service signs the multipart/form-data POST itself; the
// client only assembles and submits it.
func SampleUpload(ctx context.Context, t *api.Transport, parentID uint64, fileName string, body io.Reader) (pickCode string, fileID uint64, err error) {
	target := "U_1_" + uintToString(parentID)
	initResp, err := t.Call(ctx, api.Request{
		Method: "POST",
		URL:    "https://uplb.example-service.invalid/3.0/sampleinitupload.php",
		Form: api.Params{
			"filename": {fileName},
			"target":   {target},
		},
		Parse: api.ParseJSON,
	})
	if err != nil {
		return "", 0, err
	}

	var init sampleInitResponse
	if b, marshalErr := json.Marshal(initResp.JSON); marshalErr == nil {
		_ = json.Unmarshal(b, &init)
	}
	if init.Host == "" {
		return "", 0, p115err.New(p115err.KindRemoteError, "sample upload init missing host")
	}

	form, contentType, err := api.MultipartForm(map[string]string{
		"name":                   fileName,
		"key":                    init.Object,
		"policy":                 init.Policy,
		"OSSAccessKeyId":         init.AccessID,
		"success_action_status":  "200",
		"callback":               init.Callback,
		"signature":              init.Signature,
	}, "file", fileName, body)
	if err != nil {
		return "", 0, err
	}

	resp, err := t.Call(ctx, api.Request{
		Method:      "POST",
		URL:         init.Host,
		RawBody:     form.Bytes(),
		ContentType: contentType,
		Parse:       api.ParseJSON,
	})
	if err != nil {
		return "", 0, err
	}

	pickCode, _ = resp.JSON["pickcode"].(string)
	if fid, ok := resp.JSON["file_id"]; ok {
		fileID = uint64(toInt64JSON(fid))
	}
	return pickCode, fileID, nil
}

func uintToString(v uint64) string {
	if v == 0 {
		return "0"
	}
	digits := []byte{}
	for v > 0 {
		digits = append([]byte{byte('0' + v%10)}, digits...)
		v /= 10
	}
	return string(digits)
}

func toInt64JSON(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	default:
		return 0
	}
}
