package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/poiesic/lectern/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func texts(chunks []core.TextChunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Text
	}
	return out
}

func makeSentences(n int) []string {
	out := make([]string, n)
	for i := range out {
		// Varying lengths between 20 and 60 characters.
		out[i] = fmt.Sprintf("Sentence %d %s.", i, strings.Repeat("w", 10+(i*7)%40))
	}
	return out
}

func TestChunk_ThreeSentenceExample(t *testing.T) {
	sentences := []string{"Sentence one.", "Sentence two.", "Sentence three."}

	chunks := Chunk(sentences, 20, 1)

	assert.Equal(t, []string{
		"Sentence one.",
		"Sentence one. Sentence two.",
		"Sentence two. Sentence three.",
	}, texts(chunks))
	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1].Sentences
		assert.Equal(t, prev[len(prev)-1], chunks[i].Sentences[0])
	}
}

func TestChunk_ReconstructionWithoutOverlap(t *testing.T) {
	sentences := makeSentences(200)

	for _, maxChars := range []int{1, 50, 120, 1000, 100000} {
		t.Run(fmt.Sprintf("max_%d", maxChars), func(t *testing.T) {
			chunks := Chunk(sentences, maxChars, 0)

			parts := texts(chunks)
			assert.Equal(t, strings.Join(sentences, " "), strings.Join(parts, " "))

			var rebuilt []string
			for _, c := range chunks {
				rebuilt = append(rebuilt, c.Sentences...)
			}
			assert.Equal(t, sentences, rebuilt)
		})
	}
}

func TestChunk_SizeBound(t *testing.T) {
	sentences := makeSentences(300)
	maxChars := 200

	chunks := Chunk(sentences, maxChars, 0)
	require.NotEmpty(t, chunks)

	for _, c := range chunks {
		assert.LessOrEqual(t, c.Length, maxChars, "chunk %d", c.Index)
		require.NoError(t, core.ValidateChunk(&c))
	}
}

func TestChunk_OversizedSentence(t *testing.T) {
	long := strings.Repeat("x", 50) + "."
	sentences := []string{"Short one.", long, "Short two."}

	chunks := Chunk(sentences, 20, 0)

	assert.Equal(t, []string{"Short one.", long, "Short two."}, texts(chunks))
	assert.Greater(t, chunks[1].Length, 20)
}

func TestChunk_OverlapInvariant(t *testing.T) {
	sentences := makeSentences(150)

	for _, k := range []int{1, 2, 5} {
		t.Run(fmt.Sprintf("overlap_%d", k), func(t *testing.T) {
			chunks := Chunk(sentences, 400, k)
			require.Greater(t, len(chunks), 1)

			for i := 0; i+1 < len(chunks); i++ {
				prev := chunks[i].Sentences
				next := chunks[i+1].Sentences
				seed := min(k, len(prev))
				assert.Equal(t, prev[len(prev)-seed:], next[:seed], "boundary %d", i)
				assert.Greater(t, len(next), seed, "chunk %d adds no new sentence", i+1)
			}
		})
	}
}

func TestChunk_EdgeCases(t *testing.T) {
	assert.Empty(t, Chunk(nil, 100, 2))
	assert.Empty(t, Chunk([]string{}, 100, 0))

	chunks := Chunk([]string{"Only sentence."}, 100, 3)
	require.Len(t, chunks, 1)
	assert.Equal(t, "Only sentence.", chunks[0].Text)
	assert.Equal(t, 14, chunks[0].Length)

	// Negative overlap behaves as zero.
	assert.Equal(t, texts(Chunk(makeSentences(20), 80, 0)), texts(Chunk(makeSentences(20), 80, -3)))
}

func TestChunk_Deterministic(t *testing.T) {
	sentences := makeSentences(100)
	assert.Equal(t, Chunk(sentences, 300, 2), Chunk(sentences, 300, 2))
}

func TestChunk_CountsCharactersNotBytes(t *testing.T) {
	sentences := []string{"Zürich ist schön.", "Genève aussi."}

	chunks := Chunk(sentences, 31, 0)
	require.Len(t, chunks, 1)
	assert.Equal(t, 31, chunks[0].Length)

	chunks = Chunk(sentences, 30, 0)
	assert.Len(t, chunks, 2)
}

func TestNew(t *testing.T) {
	split := SegmenterFunc(func(text string) []string { return strings.SplitAfter(text, ". ") })

	t.Run("defaults", func(t *testing.T) {
		c, err := New(WithSegmenter(split))
		require.NoError(t, err)
		assert.Equal(t, DefaultMaxChars, c.maxChars)
		assert.Equal(t, DefaultOverlap, c.overlap)
	})

	t.Run("invalid max chars", func(t *testing.T) {
		_, err := New(WithSegmenter(split), WithMaxChars(0))
		assert.ErrorIs(t, err, ErrInvalidMaxChars)
	})

	t.Run("invalid overlap", func(t *testing.T) {
		_, err := New(WithSegmenter(split), WithOverlap(-1))
		assert.ErrorIs(t, err, ErrInvalidOverlap)
	})
}

func TestChunker_SplitWithPunkt(t *testing.T) {
	c, err := New(WithMaxChars(20), WithOverlap(1))
	require.NoError(t, err)

	chunks := c.Split("Sentence one. Sentence two. Sentence three.")

	assert.Equal(t, []string{
		"Sentence one.",
		"Sentence one. Sentence two.",
		"Sentence two. Sentence three.",
	}, texts(chunks))
}

func TestPunktSegmenter(t *testing.T) {
	seg, err := NewPunktSegmenter()
	require.NoError(t, err)

	got := seg.Segment("The portfolio returned 5% last year. Fees were modest.\n\nRisk remained high.")
	assert.Equal(t, []string{
		"The portfolio returned 5% last year.",
		"Fees were modest.",
		"Risk remained high.",
	}, got)
}
