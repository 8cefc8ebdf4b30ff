package p115

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chenyanggao-clone/p115client/api"
)

// redirectRoundTripper rewrites every outbound request's scheme/host to
// point at an httptest server, letting tests exercise api.Client's
// hardcoded production hostnames without touching the network.
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

func newRedirectedClient(t *testing.T, srv *httptest.Server) *api.Client {
	t.Helper()
	tr, err := api.NewTransport(0)
	require.NoError(t, err)
	target, err := url.Parse(srv.URL)
	require.NoError(t, err)
	tr.HTTPClient.Transport = &redirectRoundTripper{target: target}

	client, err := api.NewClient(tr)
	require.NoError(t, err)
	return client
}

func TestDirCacheListAndResolvePath(t *testing.T) {
	var listHitsByCID atomic.Int64
	subMTime := int64(1000)

	mux := http.NewServeMux()
	mux.HandleFunc("/files", func(w http.ResponseWriter, r *http.Request) {
		cid := r.URL.Query().Get("cid")
		listHitsByCID.Add(1)
		switch cid {
		case "0":
			w.Write([]byte(`{"count":2,"data":[
				{"cid":"1","pid":"0","name":"sub"},
				{"fid":"2","pid":"0","n":"file.txt","s":5,"sha":"ABC"}
			]}`))
		case "1":
			w.Write([]byte(`{"count":1,"data":[
				{"fid":"3","pid":"1","n":"inner.txt","s":1}
			]}`))
		default:
			w.Write([]byte(`{"count":0,"data":[]}`))
		}
	})
	mux.HandleFunc("/files/get_info", func(w http.ResponseWriter, r *http.Request) {
		fileID := r.URL.Query().Get("file_id")
		if fileID == "1" {
			w.Write([]byte(`{"data":[{"cid":"1","pid":"0","name":"sub","te":"` + strconv.FormatInt(subMTime, 10) + `"}]}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newRedirectedClient(t, srv)
	dc := NewDirCache(client, nil)

	children, err := dc.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, "sub", children[0].Name)
	assert.True(t, children[0].IsDirectory)
	assert.Equal(t, "file.txt", children[1].Name)
	assert.False(t, children[1].IsDirectory)

	id, err := dc.Resolve(context.Background(), "/sub")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)

	// second resolve should hit the PathIndex, not re-list.
	hitsBefore := listHitsByCID.Load()
	id2, err := dc.Resolve(context.Background(), "/sub")
	require.NoError(t, err)
	assert.Equal(t, id, id2)
	assert.Equal(t, hitsBefore, listHitsByCID.Load())
}

func TestDirCacheServesStaleHitUntilVersionChanges(t *testing.T) {
	var listHits, getInfoHits atomic.Int64
	mtime := int64(500)

	mux := http.NewServeMux()
	mux.HandleFunc("/files", func(w http.ResponseWriter, r *http.Request) {
		listHits.Add(1)
		w.Write([]byte(`{"count":1,"data":[{"fid":"9","pid":"1","n":"a.txt","s":1}]}`))
	})
	mux.HandleFunc("/files/get_info", func(w http.ResponseWriter, r *http.Request) {
		getInfoHits.Add(1)
		w.Write([]byte(`{"data":[{"cid":"1","pid":"0","name":"sub","te":"` + strconv.FormatInt(mtime, 10) + `"}]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newRedirectedClient(t, srv)
	dc := NewDirCache(client, nil)

	_, err := dc.List(context.Background(), 1)
	require.NoError(t, err)
	_, err = dc.List(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, int64(1), listHits.Load(), "unchanged version should serve from cache")
	assert.Equal(t, int64(2), getInfoHits.Load(), "freshness check runs every List call")

	mtime = 999
	_, err = dc.List(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), listHits.Load(), "version change must trigger a re-list")
}

func TestDirCacheInvalidateForcesRelist(t *testing.T) {
	var listHits atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/files", func(w http.ResponseWriter, r *http.Request) {
		listHits.Add(1)
		w.Write([]byte(`{"count":0,"data":[]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newRedirectedClient(t, srv)
	dc := NewDirCache(client, nil)

	_, err := dc.List(context.Background(), 0)
	require.NoError(t, err)
	_, err = dc.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), listHits.Load())

	dc.Invalidate(0)
	_, err = dc.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), listHits.Load())
}

// TestInvalidateByIDDropsEveryPathMappingToThatID pins §4.8's descendant
// invalidation when only an id (not a resolved path) is known to the
// caller, e.g. after renaming a directory: every PathIndex entry that
// still points at the renamed subtree must go stale, not just the
// renamed directory's own former path.
func TestInvalidateByIDDropsEveryPathMappingToThatID(t *testing.T) {
	dc := &DirCache{pathIndex: map[string]uint64{
		"/reports":            5,
		"/reports/2026":       6,
		"/reports/2026/q1.csv": 7,
		"/other":              8,
	}}

	dc.InvalidateByID(5)

	_, ok := dc.pathIndex["/reports"]
	assert.False(t, ok)
	_, ok = dc.pathIndex["/reports/2026"]
	assert.False(t, ok)
	_, ok = dc.pathIndex["/reports/2026/q1.csv"]
	assert.False(t, ok)
	_, ok = dc.pathIndex["/other"]
	assert.True(t, ok, "unrelated path must survive")
}
