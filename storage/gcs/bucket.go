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

// Package gcs implements storage.ObjectStore on a Google Cloud Storage bucket.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	gcstorage "cloud.google.com/go/storage"
	"github.com/poiesic/lectern/storage"
	"google.golang.org/api/option"
)

const (
	uploadTimeout = 2 * time.Minute
	statTimeout   = 30 * time.Second
)

// Config selects the bucket and how to reach it.
type Config struct {
	// Bucket is the bucket name.
	Bucket string

	// EmulatorHost, when set, points the client at a storage emulator
	// (e.g. fake-gcs-server) and disables authentication.
	EmulatorHost string

	// CredentialsFile is an optional service account key file. When empty the
	// application default credentials are used.
	CredentialsFile string
}

// Bucket implements storage.ObjectStore.
type Bucket struct {
	client *gcstorage.Client
	bucket string
	logger *slog.Logger
}

var _ storage.ObjectStore = (*Bucket)(nil)

// New creates a Bucket client.
func New(ctx context.Context, cfg Config) (*Bucket, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("gcs: bucket name is required")
	}

	client, err := newClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	logger := slog.Default().With("component", "gcs", "bucket", cfg.Bucket)
	logger.Info("object storage initialized", "emulator_host", cfg.EmulatorHost)

	return &Bucket{
		client: client,
		bucket: cfg.Bucket,
		logger: logger,
	}, nil
}

func newClient(ctx context.Context, cfg Config) (*gcstorage.Client, error) {
	if host := strings.TrimRight(strings.TrimSpace(cfg.EmulatorHost), "/"); host != "" {
		_ = os.Setenv("STORAGE_EMULATOR_HOST", host)
		return gcstorage.NewClient(ctx, option.WithoutAuthentication())
	}

	opts := []option.ClientOption{option.WithScopes(gcstorage.ScopeReadWrite)}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	return gcstorage.NewClient(ctx, opts...)
}

// Exists reports whether key is present in the bucket.
func (b *Bucket) Exists(ctx context.Context, key string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, statTimeout)
	defer cancel()

	_, err := b.client.Bucket(b.bucket).Object(key).Attrs(ctx)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, gcstorage.ErrObjectNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat %s: %w", b.Ref(key), err)
}

// Put uploads r to key. An empty contentType is inferred from the key's extension.
func (b *Bucket) Put(ctx context.Context, key string, r io.Reader, contentType string) error {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := b.client.Bucket(b.bucket).Object(key).NewWriter(ctx)
	if contentType == "" {
		contentType = ContentTypeForKey(key)
	}
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer: %w", err)
	}
	b.logger.Debug("uploaded object", "key", key)
	return nil
}

// Get opens key for reading.
func (b *Bucket) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	rc, err := b.client.Bucket(b.bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gcstorage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, b.Ref(key))
		}
		return nil, fmt.Errorf("failed to open %s: %w", b.Ref(key), err)
	}
	return rc, nil
}

// Ref returns "gs://<bucket>/<key>".
func (b *Bucket) Ref(key string) string {
	return Ref(b.bucket, key)
}

// Close closes the underlying client.
func (b *Bucket) Close() error {
	return b.client.Close()
}

// Ref formats a gs:// reference.
func Ref(bucket, key string) string {
	return "gs://" + bucket + "/" + strings.TrimLeft(key, "/")
}

// ContentTypeForKey infers a MIME type from the key's extension, or "" if unknown.
func ContentTypeForKey(key string) string {
	s := strings.ToLower(strings.TrimSpace(key))
	if i := strings.Index(s, "?"); i >= 0 {
		s = s[:i]
	}
	switch {
	case strings.HasSuffix(s, ".png"):
		return "image/png"
	case strings.HasSuffix(s, ".jpg"), strings.HasSuffix(s, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(s, ".webp"):
		return "image/webp"
	case strings.HasSuffix(s, ".gif"):
		return "image/gif"
	case strings.HasSuffix(s, ".svg"):
		return "image/svg+xml"
	case strings.HasSuffix(s, ".pdf"):
		return "application/pdf"
	default:
		return ""
	}
}
