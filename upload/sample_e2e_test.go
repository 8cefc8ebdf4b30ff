package upload

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chenyanggao-clone/p115client/api"
)

// redirectRoundTripper rewrites every outbound request's scheme/host to
// point at an httptest server, letting a test exercise code that posts
// to a hardcoded production hostname without touching the network.
type redirectRoundTripper struct {
	target *url.URL
}

func (rt *redirectRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req2 := req.Clone(req.Context())
	req2.URL.Scheme = rt.target.Scheme
	req2.URL.Host = rt.target.Host
	req2.Host = rt.target.Host
	return http.DefaultTransport.RoundTrip(req2)
}

// TestSampleUploadSendsNameField pins §4.7 step 2's form field list: the
// upstream client posts "name" alongside "key"/"policy"/etc; the test
// server below records the field it received and the test asserts it
// carries the file name.
func TestSampleUploadSendsNameField(t *testing.T) {
	var uploadHost string
	var sawNameField string

	mux := http.NewServeMux()
	mux.HandleFunc("/3.0/sampleinitupload.php", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"state":true,"host":"` + uploadHost + `","object":"obj","policy":"p","accessid":"id","callback":"cb","signature":"sig"}`))
	})
	mux.HandleFunc("/upload", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		sawNameField = r.FormValue("name")
		w.Write([]byte(`{"state":true,"pickcode":"pc","file_id":42}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	uploadHost = srv.URL + "/upload"

	tr, err := api.NewTransport(5 * time.Second)
	require.NoError(t, err)
	target, err := url.Parse(srv.URL)
	require.NoError(t, err)
	tr.HTTPClient.Transport = &redirectRoundTripper{target: target}

	pickCode, fileID, err := SampleUpload(context.Background(), tr, 0, "report.txt", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, "pc", pickCode)
	assert.Equal(t, uint64(42), fileID)
	assert.Equal(t, "report.txt", sawNameField)
}
