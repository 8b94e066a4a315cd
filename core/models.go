package core

import (
	"encoding/hex"
	"strconv"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// NotAvailable is the placeholder written at persistence boundaries for
// fields that could not be extracted.
const NotAvailable = "N/A"

// DocumentID derives a stable document identity from its source reference
// (object-store ref or URL) using BLAKE2b hashing.
// Identical sources always produce identical IDs.
func DocumentID(source string) string {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(source))
	return "doc-" + hex.EncodeToString(h.Sum(nil))
}

// ChunkID returns the vector identifier of the chunk at index within a document.
// Re-embedding a document overwrites vectors at the same positions.
func ChunkID(documentID string, index int) string {
	return ChunkIDPrefix(documentID) + strconv.Itoa(index)
}

// ChunkIDPrefix returns the prefix shared by every chunk ID of a document.
func ChunkIDPrefix(documentID string) string {
	return documentID + "-chunk-"
}

// Publication is a single research publication scraped from a listing.
// Optional fields are nil when they could not be extracted.
type Publication struct {
	Title      string  `bson:"title"`
	Summary    *string `bson:"summary"`
	ImageLink  *string `bson:"image_link"`
	DetailLink *string `bson:"detail_link"`
	FileLink   *string `bson:"file_link"`

	ImageObject *string   `bson:"image_object"` // Object-store reference of the uploaded image
	FileObject  *string   `bson:"file_object"`  // Object-store reference of the uploaded file
	InsertedAt  time.Time `bson:"inserted_at"`  // When the publication was stored in the metadata store
}

// Ptr returns a pointer to s, or nil when s is empty.
func Ptr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the value pointed to by s, or "" when s is nil.
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// OrNA returns the value pointed to by s, or NotAvailable when s is nil.
func OrNA(s *string) string {
	if s == nil {
		return NotAvailable
	}
	return *s
}

// FromNA converts a persisted value back into an optional field.
func FromNA(s string) *string {
	if s == NotAvailable {
		return nil
	}
	return Ptr(s)
}

// TextChunk is a sentence-aligned window of a source document.
type TextChunk struct {
	Index     int
	Text      string
	Length    int      // Length of Text in characters
	Sentences []string // Sentences joined to form Text
}

// VectorMetadata is stored alongside every vector in the index.
type VectorMetadata struct {
	DocumentID string `bson:"document_id" json:"document_id"`
	Title      string `bson:"title" json:"title"`
	Source     string `bson:"source" json:"source"`
	ChunkIndex int    `bson:"chunk_index" json:"chunk_index"`
	Text       string `bson:"text" json:"text"` // Bounded excerpt of the chunk text
}

// EmbeddingRecord is the unit of upsert into a vector index.
// Records are never mutated after upsert.
type EmbeddingRecord struct {
	ID       string         `bson:"_id"`
	Vector   []float32      `bson:"vector"`
	Metadata VectorMetadata `bson:"metadata"`
}

// Match is a single vector search hit.
type Match struct {
	ID       string
	Score    float32
	Metadata VectorMetadata
}

// ScrapeCursor is the resumable state of a listing traversal.
type ScrapeCursor struct {
	RunID     string          `bson:"run_id"`
	Page      int             `bson:"page"`      // Listing pages fully extracted so far
	Seen      []string        `bson:"seen"`      // Titles recorded in this run, in listing order
	Resolved  map[string]bool `bson:"resolved"`  // Titles whose detail page has been visited
	Done      bool            `bson:"done"`      // Listing traversal reached the last page
	Collected []Publication   `bson:"collected"` // Records extracted so far, so a resumed run can store them
	UpdatedAt time.Time       `bson:"updated_at"`
}

// NewScrapeCursor returns an empty cursor for the given run.
func NewScrapeCursor(runID string) *ScrapeCursor {
	return &ScrapeCursor{
		RunID:    runID,
		Resolved: make(map[string]bool),
	}
}

// HasSeen reports whether title was already recorded in this run.
func (c *ScrapeCursor) HasSeen(title string) bool {
	for _, s := range c.Seen {
		if s == title {
			return true
		}
	}
	return false
}
