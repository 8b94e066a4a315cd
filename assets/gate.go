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

// Package assets copies scraped images and documents into object storage,
// skipping objects that are already stored.
package assets

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net/url"
	"path"
	"strings"

	"github.com/poiesic/lectern/core"
	"github.com/poiesic/lectern/storage"
)

// Kind selects the key prefix an asset is stored under.
type Kind string

const (
	KindImage Kind = "images"
	KindFile  Kind = "pdfs"
)

// Gate uploads assets to an ObjectStore only when their key is absent.
// Keys are derived from the source URL alone, so the same source always maps
// to the same object and repeated runs never download it twice.
type Gate struct {
	store   storage.ObjectStore
	fetcher Fetcher
	logger  *slog.Logger
}

// NewGate creates a gate in front of store.
func NewGate(store storage.ObjectStore, fetcher Fetcher) *Gate {
	return &Gate{
		store:   store,
		fetcher: fetcher,
		logger:  slog.Default().With("component", "assets"),
	}
}

// Key returns the object key for sourceURL: the kind prefix followed by the
// last path segment of the URL.
func Key(kind Kind, sourceURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(sourceURL))
	if err != nil || !u.IsAbs() {
		return "", fmt.Errorf("%w: %q", ErrInvalidSource, sourceURL)
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return "", fmt.Errorf("%w: %q has no file name", ErrInvalidSource, sourceURL)
	}
	return string(kind) + "/" + name, nil
}

// Put stores the asset at sourceURL unless its key already exists, and
// returns the object reference in both cases. uploaded reports whether a
// transfer took place.
func (g *Gate) Put(ctx context.Context, kind Kind, sourceURL string) (ref string, uploaded bool, err error) {
	key, err := Key(kind, sourceURL)
	if err != nil {
		return "", false, err
	}
	ref = g.store.Ref(key)

	exists, err := g.store.Exists(ctx, key)
	if err != nil {
		return "", false, fmt.Errorf("failed to check %s: %w", key, err)
	}
	if exists {
		g.logger.Debug("asset already stored", "key", key)
		return ref, false, nil
	}

	body, contentType, err := g.fetcher.Fetch(ctx, sourceURL)
	if err != nil {
		return "", false, err
	}
	defer body.Close()

	if contentType == "" {
		contentType = mime.TypeByExtension(path.Ext(key))
	}
	if err := g.store.Put(ctx, key, body, contentType); err != nil {
		return "", false, fmt.Errorf("failed to upload %s: %w", key, err)
	}

	g.logger.Info("asset uploaded", "key", key, "ref", ref)
	return ref, true, nil
}

// StoreReport counts the outcome of Store.
type StoreReport struct {
	Uploaded int // Assets transferred
	Reused   int // Assets already present
	Failed   int // Assets that could not be stored
}

// Store puts the image and file of every publication and records the
// object references on the publications. A failing asset is logged and
// leaves its reference nil; it never stops the remaining assets.
func (g *Gate) Store(ctx context.Context, pubs []core.Publication) (StoreReport, error) {
	var report StoreReport
	for i := range pubs {
		pub := &pubs[i]
		pub.ImageObject = g.storeOne(ctx, KindImage, pub.Title, pub.ImageLink, &report)
		pub.FileObject = g.storeOne(ctx, KindFile, pub.Title, pub.FileLink, &report)
		if err := ctx.Err(); err != nil {
			return report, err
		}
	}
	g.logger.Info("stored assets",
		"publications", len(pubs),
		"uploaded", report.Uploaded,
		"reused", report.Reused,
		"failed", report.Failed)
	return report, nil
}

func (g *Gate) storeOne(ctx context.Context, kind Kind, title string, link *string, report *StoreReport) *string {
	if link == nil {
		return nil
	}
	ref, uploaded, err := g.Put(ctx, kind, *link)
	switch {
	case err != nil:
		report.Failed++
		g.logger.Warn("failed to store asset", "title", title, "kind", kind, "url", *link, "err", err)
		return nil
	case uploaded:
		report.Uploaded++
	default:
		report.Reused++
	}
	return &ref
}
