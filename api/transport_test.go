package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chenyanggao-clone/p115client/p115err"
)

func newTestTransport(t *testing.T) *Transport {
	t.Helper()
	tr, err := NewTransport(5 * time.Second)
	require.NoError(t, err)
	return tr
}

func TestCallDecodesJSONEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"state":true,"data":"ok"}`))
	}))
	defer srv.Close()

	tr := newTestTransport(t)
	resp, err := tr.Call(context.Background(), Request{Method: "GET", URL: srv.URL, Parse: ParseJSON})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.JSON["data"])
}

func TestCallClassifiesErrnoFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"state":false,"errno":20018}`))
	}))
	defer srv.Close()

	tr := newTestTransport(t)
	_, err := tr.Call(context.Background(), Request{Method: "GET", URL: srv.URL, Parse: ParseJSON})
	require.Error(t, err)
	assert.True(t, p115err.IsKind(err, p115err.KindNotFound))
}

func TestCallRetriesIdempotentOn5xx(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&hits, 1)
		if n < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"state":true}`))
	}))
	defer srv.Close()

	tr := newTestTransport(t)
	tr.Retries = 5
	resp, err := tr.Call(context.Background(), Request{Method: "GET", URL: srv.URL, Parse: ParseJSON, Idempotent: true})
	require.NoError(t, err)
	assert.NotNil(t, resp)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestCallDoesNotRetryNonIdempotent(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	tr := newTestTransport(t)
	_, err := tr.Call(context.Background(), Request{Method: "POST", URL: srv.URL, Parse: ParseJSON})
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestDecodeListResultBuildsBreadcrumb(t *testing.T) {
	body := map[string]any{
		"count": float64(2),
		"data": []any{
			map[string]any{"fid": "1", "pid": "0", "n": "a.txt", "s": float64(10)},
			map[string]any{"cid": "2", "pid": "0", "name": "dir"},
		},
		"path": []any{
			map[string]any{"cid": "0", "name": ""},
		},
	}
	result, err := decodeListResult(body, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Total)
	require.Len(t, result.Children, 2)
	assert.False(t, result.Children[0].IsDirectory)
	assert.True(t, result.Children[1].IsDirectory)
	assert.Len(t, result.Breadcrumb, 1)
}
