package pinecone

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/poiesic/lectern/core"
	"github.com/poiesic/lectern/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePinecone serves the data plane endpoints from an in-memory map.
type fakePinecone struct {
	t        *testing.T
	vectors  map[string]vector
	fail     bool
	pageSize int // list page size, 0 for unlimited
	lists    int
}

func (f *fakePinecone) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	assert.Equal(f.t, "test-key", r.Header.Get("Api-Key"))
	assert.NotEmpty(f.t, r.Header.Get("X-Pinecone-Api-Version"))

	if f.fail {
		http.Error(w, `{"message":"quota exceeded"}`, http.StatusTooManyRequests)
		return
	}

	switch r.URL.Path {
	case "/indexes/research":
		_ = json.NewEncoder(w).Encode(map[string]any{"name": "research", "host": "research-abc.svc.pinecone.io", "dimension": 3})
	case "/vectors/upsert":
		var req upsertRequest
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(f.t, "pubs", req.Namespace)
		for _, v := range req.Vectors {
			f.vectors[v.ID] = v
		}
		_ = json.NewEncoder(w).Encode(upsertResponse{UpsertedCount: int64(len(req.Vectors))})
	case "/query":
		var req queryRequest
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(f.t, req.IncludeMetadata)
		var resp queryResponse
		for id, v := range f.vectors {
			resp.Matches = append(resp.Matches, queryMatch{ID: id, Score: 0.5, Metadata: v.Metadata})
			if len(resp.Matches) == req.TopK {
				break
			}
		}
		_ = json.NewEncoder(w).Encode(resp)
	case "/vectors/list":
		assert.Equal(f.t, http.MethodGet, r.Method)
		assert.Equal(f.t, "pubs", r.URL.Query().Get("namespace"))
		f.lists++
		prefix := r.URL.Query().Get("prefix")
		var ids []string
		for id := range f.vectors {
			if strings.HasPrefix(id, prefix) {
				ids = append(ids, id)
			}
		}
		sort.Strings(ids)
		start, _ := strconv.Atoi(r.URL.Query().Get("paginationToken"))
		ids = ids[min(start, len(ids)):]
		var resp listResponse
		if f.pageSize > 0 && len(ids) > f.pageSize {
			ids = ids[:f.pageSize]
			resp.Pagination = &struct {
				Next string `json:"next"`
			}{Next: strconv.Itoa(start + f.pageSize)}
		}
		for _, id := range ids {
			resp.Vectors = append(resp.Vectors, listedVector{ID: id})
		}
		_ = json.NewEncoder(w).Encode(resp)
	case "/vectors/delete":
		var req deleteRequest
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))
		for _, id := range req.IDs {
			delete(f.vectors, id)
		}
		_, _ = w.Write([]byte("{}"))
	default:
		http.NotFound(w, r)
	}
}

func newTestIndex(t *testing.T) (*Index, *fakePinecone) {
	t.Helper()
	fake := &fakePinecone{t: t, vectors: make(map[string]vector)}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	idx, err := New(context.Background(), Config{APIKey: "test-key", Host: srv.URL, Namespace: "pubs"})
	require.NoError(t, err)
	return idx, fake
}

func TestIndex_UpsertQueryDelete(t *testing.T) {
	idx, fake := newTestIndex(t)
	ctx := context.Background()

	records := []core.EmbeddingRecord{
		{ID: "doc-1-chunk-0", Vector: []float32{1, 0, 0}, Metadata: core.VectorMetadata{DocumentID: "doc-1", Title: "T", ChunkIndex: 0, Text: "first"}},
		{ID: "doc-1-chunk-1", Vector: []float32{0, 1, 0}, Metadata: core.VectorMetadata{DocumentID: "doc-1", Title: "T", ChunkIndex: 1, Text: "second"}},
	}
	require.NoError(t, idx.Upsert(ctx, records))
	assert.Len(t, fake.vectors, 2)

	matches, err := idx.Query(ctx, []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	for _, m := range matches {
		assert.Equal(t, "doc-1", m.Metadata.DocumentID)
		assert.Equal(t, m.ID, core.ChunkID("doc-1", m.Metadata.ChunkIndex))
	}

	require.NoError(t, idx.Delete(ctx, []string{"doc-1-chunk-0"}))
	assert.Len(t, fake.vectors, 1)
}

func TestIndex_DeletePrefix(t *testing.T) {
	idx, fake := newTestIndex(t)
	fake.pageSize = 2
	ctx := context.Background()

	var records []core.EmbeddingRecord
	for n := 0; n < 5; n++ {
		records = append(records, core.EmbeddingRecord{ID: core.ChunkID("doc-1", n), Vector: []float32{1, 0, 0}})
	}
	records = append(records, core.EmbeddingRecord{ID: core.ChunkID("doc-2", 0), Vector: []float32{0, 1, 0}})
	require.NoError(t, idx.Upsert(ctx, records))

	deleted, err := idx.DeletePrefix(ctx, "doc-1-chunk-")
	require.NoError(t, err)
	assert.Equal(t, 5, deleted)
	assert.Equal(t, 3, fake.lists)
	assert.Len(t, fake.vectors, 1)
	assert.Contains(t, fake.vectors, "doc-2-chunk-0")

	_, err = idx.DeletePrefix(ctx, "")
	assert.ErrorIs(t, err, storage.ErrEmptyPrefix)
}

func TestIndex_HTTPError(t *testing.T) {
	idx, fake := newTestIndex(t)
	fake.fail = true

	err := idx.Upsert(context.Background(), []core.EmbeddingRecord{{ID: "a", Vector: []float32{1}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestIndex_InvalidQuery(t *testing.T) {
	idx, _ := newTestIndex(t)

	_, err := idx.Query(context.Background(), nil, 3)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
	_, err = idx.Query(context.Background(), []float32{1}, 0)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}

func TestIndex_EmptyOperationsSkipRequests(t *testing.T) {
	idx, fake := newTestIndex(t)
	fake.fail = true

	assert.NoError(t, idx.Upsert(context.Background(), nil))
	assert.NoError(t, idx.Delete(context.Background(), nil))
}

func TestNew_ResolvesHost(t *testing.T) {
	fake := &fakePinecone{t: t, vectors: make(map[string]vector)}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	idx, err := New(context.Background(), Config{APIKey: "test-key", ControlURL: srv.URL, IndexName: "research"})
	require.NoError(t, err)
	assert.Equal(t, "research-abc.svc.pinecone.io", idx.host)
}

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New(context.Background(), Config{Host: "x"})
	assert.Error(t, err)
}

func TestDataURL(t *testing.T) {
	assert.Equal(t, "https://idx.pinecone.io/query", dataURL("idx.pinecone.io", "/query"))
	assert.Equal(t, "http://127.0.0.1:9/query", dataURL("http://127.0.0.1:9/", "/query"))
	assert.True(t, strings.HasPrefix(dataURL(" idx ", "/x"), "https://idx"))
}
