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

package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidPublication indicates a Publication failed validation.
	ErrInvalidPublication = errors.New("invalid publication")

	// ErrInvalidChunk indicates a TextChunk failed validation.
	ErrInvalidChunk = errors.New("invalid chunk")

	// ErrInvalidEmbeddingRecord indicates an EmbeddingRecord failed validation.
	ErrInvalidEmbeddingRecord = errors.New("invalid embedding record")

	// ErrEmptyTitle indicates the Title field is empty or the N/A placeholder.
	ErrEmptyTitle = errors.New("title cannot be empty")

	// ErrInvalidLink indicates a link is not an absolute http(s) URL.
	ErrInvalidLink = errors.New("link must be an absolute http(s) URL")

	// ErrEmptyContent indicates the Text field is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrEmptyID indicates a record has no identifier.
	ErrEmptyID = errors.New("id cannot be empty")

	// ErrInvalidVector indicates a vector is empty or holds non-finite values.
	ErrInvalidVector = errors.New("vector must be non-empty and finite")
)
