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

import (
	"fmt"
	"math"
	"net/url"
	"unicode/utf8"
)

// ValidatePublication validates a Publication according to domain rules.
//
// Validation rules:
//   - Title must not be empty or the N/A placeholder (it is the identity key)
//   - Links, when present, must be absolute http(s) URLs
//
// NOT validated:
//   - Summary (free text)
//   - ImageObject, FileObject (set by the asset gate)
func ValidatePublication(pub *Publication) error {
	if pub == nil {
		return fmt.Errorf("%w: publication is nil", ErrInvalidPublication)
	}

	if pub.Title == "" || pub.Title == NotAvailable {
		return fmt.Errorf("%w: %w", ErrInvalidPublication, ErrEmptyTitle)
	}

	for _, link := range []*string{pub.ImageLink, pub.DetailLink, pub.FileLink} {
		if link == nil {
			continue
		}
		if !IsAbsoluteHTTP(*link) {
			return fmt.Errorf("%w: %w: %q", ErrInvalidPublication, ErrInvalidLink, *link)
		}
	}

	return nil
}

// ValidateChunk validates a TextChunk.
//
// Validation rules:
//   - Index must not be negative
//   - Text must not be empty
//   - Length must match the character count of Text
func ValidateChunk(chunk *TextChunk) error {
	if chunk == nil {
		return fmt.Errorf("%w: chunk is nil", ErrInvalidChunk)
	}

	if chunk.Index < 0 {
		return fmt.Errorf("%w: negative index %d", ErrInvalidChunk, chunk.Index)
	}

	if chunk.Text == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyContent)
	}

	if n := utf8.RuneCountInString(chunk.Text); n != chunk.Length {
		return fmt.Errorf("%w: length %d does not match text length %d", ErrInvalidChunk, chunk.Length, n)
	}

	return nil
}

// ValidateEmbeddingRecord validates an EmbeddingRecord before upsert.
func ValidateEmbeddingRecord(record *EmbeddingRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidEmbeddingRecord)
	}

	if record.ID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidEmbeddingRecord, ErrEmptyID)
	}

	if !IsFiniteVector(record.Vector) {
		return fmt.Errorf("%w: %w", ErrInvalidEmbeddingRecord, ErrInvalidVector)
	}

	return nil
}

// IsFiniteVector reports whether v is non-empty and contains no NaN or Inf values.
func IsFiniteVector(v []float32) bool {
	if len(v) == 0 {
		return false
	}
	for _, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

// IsAbsoluteHTTP reports whether s parses as an absolute http or https URL with a host.
func IsAbsoluteHTTP(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
