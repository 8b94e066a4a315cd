package assets

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/poiesic/lectern/core"
	"github.com/poiesic/lectern/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAssetServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var downloads atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/files/report.pdf", func(w http.ResponseWriter, r *http.Request) {
		downloads.Add(1)
		w.Header().Set("Content-Type", "application/pdf")
		fmt.Fprint(w, "%PDF-1.4 report")
	})
	mux.HandleFunc("/img/cover.png", func(w http.ResponseWriter, r *http.Request) {
		downloads.Add(1)
		_, _ = w.Write([]byte("\x89PNG\r\n\x1a\n"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &downloads
}

func TestGate_PutIsIdempotent(t *testing.T) {
	srv, downloads := newAssetServer(t)
	store := memory.NewObjectStore("research")
	gate := NewGate(store, &HTTPFetcher{Client: srv.Client()})
	ctx := context.Background()

	ref1, uploaded1, err := gate.Put(ctx, KindFile, srv.URL+"/files/report.pdf")
	require.NoError(t, err)
	ref2, uploaded2, err := gate.Put(ctx, KindFile, srv.URL+"/files/report.pdf")
	require.NoError(t, err)

	assert.True(t, uploaded1)
	assert.False(t, uploaded2)
	assert.Equal(t, ref1, ref2)
	assert.Equal(t, "mem://research/pdfs/report.pdf", ref1)
	assert.Equal(t, 1, store.Len())
	assert.Equal(t, 1, store.PutCount())
	assert.Equal(t, int32(1), downloads.Load(), "second call must not download")
	assert.Equal(t, "application/pdf", store.ContentType("pdfs/report.pdf"))

	rc, err := store.Get(ctx, "pdfs/report.pdf")
	require.NoError(t, err)
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	assert.Equal(t, "%PDF-1.4 report", string(data))
}

func TestGate_FetchFailure(t *testing.T) {
	srv, _ := newAssetServer(t)
	store := memory.NewObjectStore("research")
	gate := NewGate(store, &HTTPFetcher{Client: srv.Client()})

	_, _, err := gate.Put(context.Background(), KindFile, srv.URL+"/files/missing.pdf")
	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.Equal(t, 0, store.Len())
}

func TestGate_Store(t *testing.T) {
	srv, downloads := newAssetServer(t)
	store := memory.NewObjectStore("research")
	gate := NewGate(store, &HTTPFetcher{Client: srv.Client()})

	pubs := []core.Publication{
		{Title: "Report", FileLink: core.Ptr(srv.URL + "/files/report.pdf"), ImageLink: core.Ptr(srv.URL + "/img/cover.png")},
		{Title: "Broken", FileLink: core.Ptr(srv.URL + "/files/gone.pdf")},
		{Title: "Bare"},
	}

	report, err := gate.Store(context.Background(), pubs)
	require.NoError(t, err)
	assert.Equal(t, StoreReport{Uploaded: 2, Failed: 1}, report)

	assert.Equal(t, "mem://research/pdfs/report.pdf", core.Deref(pubs[0].FileObject))
	assert.Equal(t, "mem://research/images/cover.png", core.Deref(pubs[0].ImageObject))
	assert.Equal(t, "image/png", store.ContentType("images/cover.png"))
	assert.Nil(t, pubs[1].FileObject)
	assert.Nil(t, pubs[2].FileObject)
	assert.Nil(t, pubs[2].ImageObject)

	report, err = gate.Store(context.Background(), pubs[:1])
	require.NoError(t, err)
	assert.Equal(t, StoreReport{Reused: 2}, report)
	assert.Equal(t, int32(2), downloads.Load())
}

func TestKey(t *testing.T) {
	tests := []struct {
		name    string
		kind    Kind
		source  string
		want    string
		wantErr bool
	}{
		{"pdf", KindFile, "https://example.org/a/b/report.pdf", "pdfs/report.pdf", false},
		{"query ignored", KindImage, "https://cdn.example.org/i/cover.jpg?w=200", "images/cover.jpg", false},
		{"no file name", KindFile, "https://example.org/", "", true},
		{"no path", KindFile, "https://example.org", "", true},
		{"relative", KindFile, "/files/report.pdf", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Key(tt.kind, tt.source)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidSource)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
