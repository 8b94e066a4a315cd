package chunker

import (
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/lectern/core"
)

const (
	// DefaultMaxChars is the soft character budget per chunk.
	DefaultMaxChars = 15000

	// DefaultOverlap is the number of trailing sentences carried into the next chunk.
	DefaultOverlap = 5
)

// Chunker segments text into sentences and groups them into overlapping chunks.
type Chunker struct {
	maxChars  int
	overlap   int
	segmenter Segmenter
	logger    *slog.Logger
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithMaxChars sets the soft character budget per chunk.
func WithMaxChars(n int) Option {
	return func(c *Chunker) {
		c.maxChars = n
	}
}

// WithOverlap sets the number of sentences shared between consecutive chunks.
func WithOverlap(n int) Option {
	return func(c *Chunker) {
		c.overlap = n
	}
}

// WithSegmenter replaces the default Punkt segmenter.
func WithSegmenter(s Segmenter) Option {
	return func(c *Chunker) {
		c.segmenter = s
	}
}

// New creates a Chunker. Without WithSegmenter the English Punkt model is loaded.
func New(opts ...Option) (*Chunker, error) {
	c := &Chunker{
		maxChars: DefaultMaxChars,
		overlap:  DefaultOverlap,
		logger:   slog.Default().With("component", "chunker"),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.maxChars < 1 {
		return nil, ErrInvalidMaxChars
	}
	if c.overlap < 0 {
		return nil, ErrInvalidOverlap
	}
	if c.segmenter == nil {
		seg, err := NewPunktSegmenter()
		if err != nil {
			return nil, err
		}
		c.segmenter = seg
	}
	return c, nil
}

// Split segments text and chunks the resulting sentences.
func (c *Chunker) Split(text string) []core.TextChunk {
	sentences := c.segmenter.Segment(text)
	chunks := Chunk(sentences, c.maxChars, c.overlap)
	c.logger.Debug("split text", "chars", utf8.RuneCountInString(text), "sentences", len(sentences), "chunks", len(chunks))
	return chunks
}

// Chunk groups sentences into chunks whose joined length stays within maxChars
// unless a single sentence (or the overlap seed plus one sentence) is longer.
// Consecutive chunks share their boundary sentences: the first min(overlap, n)
// sentences of chunk i+1 are the last sentences of chunk i, where n is the
// sentence count of chunk i.
func Chunk(sentences []string, maxChars, overlap int) []core.TextChunk {
	if overlap < 0 {
		overlap = 0
	}

	var (
		chunks  []core.TextChunk
		current []string
		size    int
	)

	for _, s := range sentences {
		n := utf8.RuneCountInString(s)
		if len(current) > 0 && size+1+n > maxChars {
			chunks = append(chunks, newChunk(len(chunks), current))

			seed := min(overlap, len(current))
			current = append([]string(nil), current[len(current)-seed:]...)
			size = joinedLength(current)
		}

		if len(current) > 0 {
			size++
		}
		current = append(current, s)
		size += n
	}

	if len(current) > 0 {
		chunks = append(chunks, newChunk(len(chunks), current))
	}
	return chunks
}

func newChunk(index int, sentences []string) core.TextChunk {
	text := strings.Join(sentences, " ")
	return core.TextChunk{
		Index:     index,
		Text:      text,
		Length:    utf8.RuneCountInString(text),
		Sentences: append([]string(nil), sentences...),
	}
}

func joinedLength(sentences []string) int {
	if len(sentences) == 0 {
		return 0
	}
	n := len(sentences) - 1
	for _, s := range sentences {
		n += utf8.RuneCountInString(s)
	}
	return n
}
