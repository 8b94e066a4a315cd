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

// Package storage defines the persistence boundaries of lectern.
//
// Four interfaces separate the pipeline from its backends:
//
//   - ObjectStore: content-addressed blobs (images and documents) keyed by
//     "<kind>/<basename>". Implemented by gcs, memory and badger.
//   - MetadataStore: one publication record per title with
//     insert-if-absent semantics. Implemented by mongo, sqlstore and badger.
//   - VectorIndex: chunk embeddings with metadata, queried by cosine
//     similarity. Implemented by pinecone and badger.
//   - CursorStore: resumable scrape cursors. Implemented by badger.
//
// Implementations wrap the sentinel errors of this package (ErrNotFound,
// ErrInvalidQuery, ...) so callers can test them with errors.Is regardless
// of the backend in use.
package storage
