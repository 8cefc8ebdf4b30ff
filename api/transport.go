// Package api implements the thin typed wrappers (C4) around the
// Service's JSON endpoints, on top of a small HTTP transport (C3):
// cookie jar, default headers, JSON parsing and retry classification.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/publicsuffix"

	"github.com/chenyanggao-clone/p115client/p115err"
)

// userAgent is sent on every request; several endpoints behave
// differently (or reject the request) without a recognizable app-version
// tag embedded in it.
const userAgent = "Mozilla/5.0 p115client/2.0.3.7"

// DefaultRetries is the number of attempts the transport makes for
// idempotent requests before giving up, per §3/§7.
const DefaultRetries = 5

// Transport wraps an HTTP/1.1 client with the session's cookie jar and
// default headers. It is safe for concurrent use: the jar and default
// headers are read-mostly and guarded by the stdlib cookiejar's own
// locking plus a copy-on-send of the header map.
type Transport struct {
	HTTPClient *http.Client
	Retries    int
	Log        *logrus.Entry
}

// NewTransport builds a Transport with a fresh cookie jar that accepts
// cookies from any host via the public-suffix list, matching §6's
// "*.<service-domain>" rule.
func NewTransport(timeout time.Duration) (*Transport, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("api: cookie jar: %w", err)
	}
	return &Transport{
		HTTPClient: &http.Client{
			Jar:     jar,
			Timeout: timeout,
		},
		Retries: DefaultRetries,
		Log:     logrus.WithField("component", "transport"),
	}, nil
}

// SeedCookies installs the UID/CID/SEID bundle harvested from the
// QR-login flow (an external collaborator per §1) into the jar for the
// given base URL.
func (t *Transport) SeedCookies(u *url.URL, cookies map[string]string) {
	list := make([]*http.Cookie, 0, len(cookies))
	for name, value := range cookies {
		list = append(list, &http.Cookie{Name: name, Value: value})
	}
	t.HTTPClient.Jar.SetCookies(u, list)
}

// Params is a shorthand for building query or form parameters.
type Params = url.Values

// ParseMode selects how Call decodes the response body.
type ParseMode int

const (
	ParseJSON ParseMode = iota
	ParseXML
	ParseRaw
	ParseNone
)

// Request describes one HTTP call through the transport.
type Request struct {
	Method      string
	URL         string
	Query       Params
	Form        Params // application/x-www-form-urlencoded body
	RawBody     []byte
	ContentType string
	Headers     map[string]string
	Parse       ParseMode
	// Idempotent marks GETs and other safe methods as retryable on
	// transient failure; non-idempotent mutations are never retried
	// once the server has seen the request (§3).
	Idempotent bool
}

// Response carries the decoded body (whichever field Parse selected) and
// the raw status and headers for callers that need them (e.g. the OSS
// driver reads the ETag off Header).
type Response struct {
	StatusCode int
	Header     http.Header
	JSON       map[string]any
	XML        []byte
	Raw        []byte
}

// Call executes req, retrying per Request.Idempotent and the transport's
// retry ceiling, and returns a parsed Response or a classified
// *p115err.Error.
func (t *Transport) Call(ctx context.Context, req Request) (*Response, error) {
	attempts := 1
	if req.Idempotent {
		attempts = t.Retries
	}

	var lastErr error
	requestID := uuid.NewString()
	for attempt := 1; attempt <= attempts; attempt++ {
		resp, err := t.do(ctx, req, requestID, attempt)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !p115err.ShouldRetry(err) || attempt == attempts {
			break
		}
		t.Log.WithFields(logrus.Fields{
			"request_id": requestID,
			"attempt":    attempt,
			"url":        req.URL,
		}).Debug("retrying after transient error")
		backoff := time.Duration(1<<(attempt-1)) * 200 * time.Millisecond
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
	return nil, lastErr
}

func (t *Transport) do(ctx context.Context, req Request, requestID string, attempt int) (*Response, error) {
	httpReq, err := t.buildHTTPRequest(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, "api: build request")
	}
	httpReq.Header.Set("X-Request-Id", requestID)

	resp, err := t.HTTPClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &p115err.Error{Kind: p115err.KindTransient, Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &p115err.Error{Kind: p115err.KindTransient, Message: err.Error()}
	}

	if resp.StatusCode >= 500 || resp.StatusCode == 429 {
		return nil, p115err.Classify(resp.StatusCode, 0, 0, 0, string(body), nil)
	}

	out := &Response{StatusCode: resp.StatusCode, Header: resp.Header, Raw: body}
	switch req.Parse {
	case ParseJSON:
		if len(body) == 0 {
			out.JSON = map[string]any{}
			return out, nil
		}
		var decoded map[string]any
		if err := json.Unmarshal(body, &decoded); err != nil {
			return nil, &p115err.Error{Kind: p115err.KindRemoteError, Message: "invalid JSON: " + err.Error()}
		}
		out.JSON = decoded
		if classErr := classifyJSONEnvelope(decoded, resp.StatusCode); classErr != nil {
			return out, classErr
		}
	case ParseXML:
		out.XML = body
	case ParseRaw, ParseNone:
		// no decoding
	}
	return out, nil
}

// classifyJSONEnvelope checks the state/errno/errNo/code envelope
// described in §3 and §6. A nil return means the call succeeded.
func classifyJSONEnvelope(decoded map[string]any, httpStatus int) error {
	if state, ok := decoded["state"]; ok {
		if b, ok := state.(bool); ok && b {
			return nil
		}
	} else {
		// Some endpoints (e.g. upload-init) use status/statuscode
		// instead of state; callers that need that shape classify it
		// themselves after Call returns, so don't force an error here.
		return nil
	}

	var errno, errNo, code int64
	if v, ok := decoded["errno"]; ok {
		errno = toInt64(v)
	}
	if v, ok := decoded["errNo"]; ok {
		errNo = toInt64(v)
	}
	if v, ok := decoded["code"]; ok {
		code = toInt64(v)
	}
	message, _ := decoded["error"].(string)
	if message == "" {
		message, _ = decoded["message"].(string)
	}
	return p115err.Classify(httpStatus, errno, errNo, code, message, decoded)
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	case json.Number:
		i, _ := n.Int64()
		return i
	case string:
		var i int64
		_, _ = fmt.Sscanf(n, "%d", &i)
		return i
	default:
		return 0
	}
}

func (t *Transport) buildHTTPRequest(ctx context.Context, req Request) (*http.Request, error) {
	u := req.URL
	if len(req.Query) > 0 {
		sep := "?"
		if strings.Contains(u, "?") {
			sep = "&"
		}
		u += sep + req.Query.Encode()
	}

	var bodyReader io.Reader
	contentType := req.ContentType
	switch {
	case req.Form != nil:
		bodyReader = strings.NewReader(req.Form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case req.RawBody != nil:
		bodyReader = bytes.NewReader(req.RawBody)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u, bodyReader)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("User-Agent", userAgent)
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	return httpReq, nil
}

// ReadBody fully reads and closes an HTTP response body, matching the
// pack's own rest.ReadBody helper.
func ReadBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// DecodeXML is a small helper for OSS responses (init/list/complete),
// which reply in XML rather than JSON.
func DecodeXML(data []byte, v any) error {
	return xml.Unmarshal(data, v)
}

// MultipartForm builds a multipart/form-data body for the sample-upload
// path (§4.7): the upload host returned by sample-init takes the file
// as a multipart/form-data POST.
func MultipartForm(fields map[string]string, fileField, fileName string, fileBody io.Reader) (body *bytes.Buffer, contentType string, err error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	fw, err := w.CreateFormFile(fileField, fileName)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(fw, fileBody); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}
