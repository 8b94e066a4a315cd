// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pinecone

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/poiesic/lectern/core"
	"github.com/poiesic/lectern/storage"
)

const (
	listPageSize    = 100  // Largest page the list endpoint returns
	deleteBatchSize = 1000 // Most IDs one delete request accepts
)

// Index implements storage.VectorIndex for one Pinecone index and namespace.
type Index struct {
	client    *client
	host      string
	namespace string
}

var _ storage.VectorIndex = (*Index)(nil)

// New creates an Index. When cfg.Host is empty the host is resolved from
// cfg.IndexName through the control plane.
func New(ctx context.Context, cfg Config) (*Index, error) {
	c, err := newClient(cfg)
	if err != nil {
		return nil, err
	}

	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		desc, err := c.describeIndex(ctx, cfg.IndexName)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve index host: %w", err)
		}
		host = desc.Host
		c.logger.Info("resolved index host", "index", desc.Name, "host", host, "dimension", desc.Dimension)
	}

	return &Index{
		client:    c,
		host:      host,
		namespace: cfg.Namespace,
	}, nil
}

// Upsert sends all records in one request.
func (i *Index) Upsert(ctx context.Context, records []core.EmbeddingRecord) error {
	if len(records) == 0 {
		return nil
	}

	req := upsertRequest{
		Vectors:   make([]vector, len(records)),
		Namespace: i.namespace,
	}
	for n, r := range records {
		req.Vectors[n] = vector{
			ID:       r.ID,
			Values:   r.Vector,
			Metadata: metadataToMap(r.Metadata),
		}
	}

	resp, err := doJSON[upsertResponse](ctx, i.client, http.MethodPost, dataURL(i.host, "/vectors/upsert"), req)
	if err != nil {
		return err
	}
	i.client.logger.Debug("upserted vectors", "requested", len(records), "upserted", resp.UpsertedCount)
	return nil
}

// Query returns up to topK matches with metadata.
func (i *Index) Query(ctx context.Context, vec []float32, topK int) ([]core.Match, error) {
	if topK < 1 || len(vec) == 0 {
		return nil, storage.ErrInvalidQuery
	}

	resp, err := doJSON[queryResponse](ctx, i.client, http.MethodPost, dataURL(i.host, "/query"), queryRequest{
		Namespace:       i.namespace,
		Vector:          vec,
		TopK:            topK,
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, err
	}

	matches := make([]core.Match, len(resp.Matches))
	for n, m := range resp.Matches {
		matches[n] = core.Match{
			ID:       m.ID,
			Score:    float32(m.Score),
			Metadata: metadataFromMap(m.Metadata),
		}
	}
	return matches, nil
}

// Delete removes vectors by ID.
func (i *Index) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := doJSON[struct{}](ctx, i.client, http.MethodPost, dataURL(i.host, "/vectors/delete"), deleteRequest{
		IDs:       ids,
		Namespace: i.namespace,
	})
	return err
}

// DeletePrefix lists every ID starting with prefix and then deletes them in
// batches. Listing by prefix requires a serverless index.
func (i *Index) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	if prefix == "" {
		return 0, storage.ErrEmptyPrefix
	}

	ids, err := i.listPrefix(ctx, prefix)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for batch := range slices.Chunk(ids, deleteBatchSize) {
		if err := i.Delete(ctx, batch); err != nil {
			return deleted, err
		}
		deleted += len(batch)
	}
	i.client.logger.Debug("deleted vectors by prefix", "prefix", prefix, "deleted", deleted)
	return deleted, nil
}

func (i *Index) listPrefix(ctx context.Context, prefix string) ([]string, error) {
	var ids []string
	token := ""
	for {
		q := url.Values{}
		q.Set("prefix", prefix)
		q.Set("limit", strconv.Itoa(listPageSize))
		if i.namespace != "" {
			q.Set("namespace", i.namespace)
		}
		if token != "" {
			q.Set("paginationToken", token)
		}
		resp, err := doJSON[listResponse](ctx, i.client, http.MethodGet, dataURL(i.host, "/vectors/list")+"?"+q.Encode(), nil)
		if err != nil {
			return nil, err
		}
		for _, v := range resp.Vectors {
			ids = append(ids, v.ID)
		}
		if resp.Pagination == nil || resp.Pagination.Next == "" {
			return ids, nil
		}
		token = resp.Pagination.Next
	}
}

// Close is a no-op.
func (i *Index) Close() error {
	return nil
}

func metadataToMap(m core.VectorMetadata) map[string]any {
	return map[string]any{
		"document_id": m.DocumentID,
		"title":       m.Title,
		"source":      m.Source,
		"chunk_index": m.ChunkIndex,
		"text":        m.Text,
	}
}

func metadataFromMap(m map[string]any) core.VectorMetadata {
	var md core.VectorMetadata
	md.DocumentID, _ = m["document_id"].(string)
	md.Title, _ = m["title"].(string)
	md.Source, _ = m["source"].(string)
	md.Text, _ = m["text"].(string)
	if f, ok := m["chunk_index"].(float64); ok {
		md.ChunkIndex = int(f)
	}
	return md
}
