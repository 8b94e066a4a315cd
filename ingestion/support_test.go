package ingestion

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/poiesic/lectern/ai"
	"github.com/poiesic/lectern/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryWithBackoff_EventualSuccess(t *testing.T) {
	attempts := 0
	operation := func() error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	}

	err := RetryWithBackoff(context.Background(), operation, 3, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 3, attempts, "should succeed on third attempt")
}

func TestRetryWithBackoff_AllAttemptsFail(t *testing.T) {
	attempts := 0
	expectedErr := errors.New("persistent error")

	err := RetryWithBackoff(context.Background(), func() error {
		attempts++
		return expectedErr
	}, 3, time.Millisecond)
	assert.Equal(t, expectedErr, err, "should return the last error")
	assert.Equal(t, 3, attempts)
}

func TestRetryWithBackoff_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0

	err := RetryWithBackoff(ctx, func() error {
		attempts++
		if attempts == 2 {
			cancel()
		}
		return errors.New("error")
	}, 10, time.Millisecond)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, attempts)
}

func TestRetryWithBackoff_ExponentialBackoff(t *testing.T) {
	var stamps []time.Time
	_ = RetryWithBackoff(context.Background(), func() error {
		stamps = append(stamps, time.Now())
		return errors.New("error")
	}, 3, 20*time.Millisecond)

	require.Len(t, stamps, 3)
	assert.GreaterOrEqual(t, stamps[1].Sub(stamps[0]), 20*time.Millisecond)
	assert.GreaterOrEqual(t, stamps[2].Sub(stamps[1]), 40*time.Millisecond)
}

func TestRetryWithBackoff_InvalidMaxAttempts(t *testing.T) {
	for _, n := range []int{0, -1} {
		err := RetryWithBackoff(context.Background(), func() error { return nil }, n, time.Millisecond)
		assert.ErrorIs(t, err, ErrInvalidMaxAttempts)
	}
}

func TestProgressTracker(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, "documents", 10, 5)

	tracker.Increment(3)
	assert.Empty(t, buf.String(), "not started")

	tracker.Start()
	tracker.Increment(3)
	assert.Empty(t, buf.String(), "below report interval")
	tracker.Increment(3)
	assert.Contains(t, buf.String(), "6/10 documents (60.0%)")

	tracker.Increment(50)
	tracker.Finish()
	out := buf.String()
	assert.Contains(t, out, "10/10 documents (100.0%)", "capped at total")
	assert.True(t, strings.HasSuffix(out, "\n"))
	assert.Greater(t, tracker.Elapsed(), time.Duration(0))
}

func TestProgressTracker_FinishReportsReachedCount(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, "documents", 4, 10)
	tracker.Start()
	tracker.Increment(2)
	tracker.Finish()
	assert.Contains(t, buf.String(), "2/4 documents (50.0%)")
}

func TestNormalizeVector(t *testing.T) {
	v := NormalizeVector([]float32{3, 4})
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	assert.Equal(t, []float32{0, 0}, NormalizeVector([]float32{0, 0}))
	assert.Empty(t, NormalizeVector(nil))
}

func TestCheckVector(t *testing.T) {
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))

	tests := []struct {
		name      string
		vec       []float32
		dimension int
		want      error
	}{
		{"valid any dimension", []float32{1, 2, 3}, 0, nil},
		{"valid fixed dimension", []float32{1, 2, 3}, 3, nil},
		{"empty", nil, 0, ai.ErrEmptyEmbedding},
		{"wrong dimension", []float32{1, 2}, 3, ai.ErrDimensionMismatch},
		{"nan", []float32{1, nan}, 0, core.ErrInvalidVector},
		{"inf", []float32{inf}, 1, core.ErrInvalidVector},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkVector(tt.vec, tt.dimension)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "héll", truncateRunes("héllo", 4))
	assert.Equal(t, "héllo", truncateRunes("héllo", 5))
	assert.Equal(t, "héllo", truncateRunes("héllo", 50))
	assert.Equal(t, "héllo", truncateRunes("héllo", 0))
}

func TestExtractPDFText_Invalid(t *testing.T) {
	_, err := ExtractPDFText([]byte("not a pdf"))
	assert.Error(t, err)

	_, err = ExtractPDFText(nil)
	assert.Error(t, err)
}

func TestRetryWithBackoff_Permanent(t *testing.T) {
	attempts := 0
	cause := errors.New("gone")
	err := RetryWithBackoff(context.Background(), func() error {
		attempts++
		return fmt.Errorf("fetch: %w", Permanent(cause))
	}, 5, time.Millisecond)

	assert.Equal(t, 1, attempts)
	assert.ErrorIs(t, err, cause)
	assert.Nil(t, Permanent(nil))
}
