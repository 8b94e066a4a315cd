package mock

import (
	"context"
	"math"
	"testing"

	"github.com/poiesic/lectern/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ ai.Embedder   = (*MockEmbedder)(nil)
	_ ai.Summarizer = (*MockSummarizer)(nil)
	_ ai.AIProvider = (*MockProvider)(nil)
)

func TestMockEmbedder_Deterministic(t *testing.T) {
	m := NewMockEmbedder()
	ctx := context.Background()

	v1, err := m.EmbedText(ctx, "hello")
	require.NoError(t, err)
	v2, err := m.EmbedText(ctx, "hello")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Len(t, v1, DefaultDimension)
	assert.Equal(t, 2, m.CallCount())

	var sum float64
	for _, x := range v1 {
		sum += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
}

func TestMockEmbedder_CustomDimension(t *testing.T) {
	m := &MockEmbedder{Dimension: 4}
	vs, err := m.EmbedTexts(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vs, 2)
	assert.Len(t, vs[0], 4)
	assert.NotEqual(t, vs[0], vs[1])

	m.Reset()
	assert.Equal(t, 0, m.CallCount())
}

func TestMockSummarizer(t *testing.T) {
	m := NewMockSummarizer()
	s, err := m.Summarize(context.Background(), "First sentence. Second one.")
	require.NoError(t, err)
	assert.Equal(t, "First sentence.", s)

	_, err = m.Summarize(context.Background(), "  ")
	assert.ErrorIs(t, err, ai.ErrEmptySummary)
	assert.Equal(t, 2, m.CallCount())
}

func TestMockProvider(t *testing.T) {
	p := NewMockProvider().(*MockProvider)
	assert.Same(t, p.GetMockEmbedder(), p.Embedder())
	assert.Same(t, p.GetMockSummarizer(), p.Summarizer())
	assert.NoError(t, p.Close())
}
