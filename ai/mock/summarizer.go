package mock

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/poiesic/lectern/ai"
)

// MockSummarizer is a test double for ai.Summarizer.
type MockSummarizer struct {
	// SummarizeFunc is called by Summarize if set.
	// If nil, returns the first sentence of the text.
	SummarizeFunc func(ctx context.Context, text string) (string, error)

	callCount atomic.Int64
}

// NewMockSummarizer creates a mock summarizer with default behavior.
func NewMockSummarizer() *MockSummarizer {
	return &MockSummarizer{}
}

// Summarize returns a deterministic summary.
func (m *MockSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	m.callCount.Add(1)

	if m.SummarizeFunc != nil {
		return m.SummarizeFunc(ctx, text)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", ai.ErrEmptySummary
	}
	if i := strings.IndexAny(text, ".!?"); i >= 0 {
		return text[:i+1], nil
	}
	return text, nil
}

// CallCount returns the number of times Summarize was called.
func (m *MockSummarizer) CallCount() int {
	return int(m.callCount.Load())
}

// Reset clears the call count and custom function.
func (m *MockSummarizer) Reset() {
	m.callCount.Store(0)
	m.SummarizeFunc = nil
}
