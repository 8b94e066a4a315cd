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

package storage

import (
	"fmt"
	"time"

	"github.com/poiesic/lectern/core"
	"go.mongodb.org/mongo-driver/bson"
)

// PublicationDocument is the persisted form of a publication. Missing
// optional fields are stored as core.NotAvailable.
type PublicationDocument struct {
	Title       string    `bson:"title"`
	Summary     string    `bson:"summary"`
	ImageLink   string    `bson:"image_link"`
	DetailLink  string    `bson:"detail_link"`
	FileLink    string    `bson:"file_link"`
	ImageObject string    `bson:"image_object"`
	FileObject  string    `bson:"file_object"`
	InsertedAt  time.Time `bson:"inserted_at"`
}

// ToDocument converts a publication to its persisted form.
func ToDocument(pub *core.Publication) *PublicationDocument {
	return &PublicationDocument{
		Title:       pub.Title,
		Summary:     core.OrNA(pub.Summary),
		ImageLink:   core.OrNA(pub.ImageLink),
		DetailLink:  core.OrNA(pub.DetailLink),
		FileLink:    core.OrNA(pub.FileLink),
		ImageObject: core.OrNA(pub.ImageObject),
		FileObject:  core.OrNA(pub.FileObject),
		InsertedAt:  pub.InsertedAt,
	}
}

// FromDocument converts a persisted document back to a publication.
func FromDocument(doc *PublicationDocument) *core.Publication {
	return &core.Publication{
		Title:       doc.Title,
		Summary:     core.FromNA(doc.Summary),
		ImageLink:   core.FromNA(doc.ImageLink),
		DetailLink:  core.FromNA(doc.DetailLink),
		FileLink:    core.FromNA(doc.FileLink),
		ImageObject: core.FromNA(doc.ImageObject),
		FileObject:  core.FromNA(doc.FileObject),
		InsertedAt:  doc.InsertedAt,
	}
}

// MarshalPublication serializes a Publication to bytes.
func MarshalPublication(pub *core.Publication) ([]byte, error) {
	data, err := bson.Marshal(ToDocument(pub))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return data, nil
}

// UnmarshalPublication deserializes a Publication from bytes.
func UnmarshalPublication(data []byte) (*core.Publication, error) {
	var doc PublicationDocument
	if err := bson.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return FromDocument(&doc), nil
}

// MarshalEmbeddingRecord serializes an EmbeddingRecord to bytes.
func MarshalEmbeddingRecord(record *core.EmbeddingRecord) ([]byte, error) {
	data, err := bson.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return data, nil
}

// UnmarshalEmbeddingRecord deserializes an EmbeddingRecord from bytes.
func UnmarshalEmbeddingRecord(data []byte) (*core.EmbeddingRecord, error) {
	var record core.EmbeddingRecord
	if err := bson.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &record, nil
}

// MarshalCursor serializes a ScrapeCursor to bytes.
func MarshalCursor(cursor *core.ScrapeCursor) ([]byte, error) {
	data, err := bson.Marshal(cursor)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return data, nil
}

// UnmarshalCursor deserializes a ScrapeCursor from bytes.
func UnmarshalCursor(data []byte) (*core.ScrapeCursor, error) {
	var cursor core.ScrapeCursor
	if err := bson.Unmarshal(data, &cursor); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	if cursor.Resolved == nil {
		cursor.Resolved = make(map[string]bool)
	}
	return &cursor, nil
}
