package rate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBucket(t *testing.T, burst int, interval time.Duration) (*Bucket, *fakeClock) {
	t.Helper()
	clk := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	b, err := NewBucket(burst, interval, 10*time.Minute)
	require.NoError(t, err)
	b.now = clk.now
	return b, clk
}

func TestBucket(t *testing.T) {
	b, clk := newTestBucket(t, 1, 10*time.Second)
	client := "203.0.113.7"

	tests := []struct {
		wait  time.Duration
		ok    bool
		retry time.Duration
	}{
		{0, true, 0},
		{time.Second, false, 9 * time.Second},
		{9 * time.Second, true, 0},
		{0, false, 10 * time.Second},
		{10 * time.Second, true, 0},
	}

	for i, tt := range tests {
		clk.advance(tt.wait)
		ok, retry := b.Take(client)
		require.Equal(t, tt.ok, ok, "attempt %d", i)
		assert.InDelta(t, tt.retry, retry, float64(time.Millisecond), "attempt %d", i)
	}
}

func TestBucketWithBurst(t *testing.T) {
	b, clk := newTestBucket(t, 10, 100*time.Millisecond)
	client := "203.0.113.7"

	for i := 0; i < 10; i++ {
		ok, _ := b.Take(client)
		require.True(t, ok, "attempt %d", i)
	}

	ok, retry := b.Take(client)
	assert.False(t, ok)
	assert.InDelta(t, 100*time.Millisecond, retry, float64(time.Millisecond))

	// A denied attempt does not spend the token that is refilling.
	clk.advance(100 * time.Millisecond)
	ok, _ = b.Take(client)
	assert.True(t, ok)

	ok, _ = b.Take("198.51.100.1")
	assert.True(t, ok, "an unrelated client has its own bucket")
}

func TestBucketForgetsIdleKeys(t *testing.T) {
	b, clk := newTestBucket(t, 1, time.Hour)

	ok, _ := b.Take("203.0.113.7")
	require.True(t, ok)
	require.Len(t, b.keys, 1)

	clk.advance(11 * time.Minute)
	ok, _ = b.Take("198.51.100.1")
	require.True(t, ok)

	assert.Len(t, b.keys, 1)
	assert.NotContains(t, b.keys, "203.0.113.7")
}

func TestNewBucketRejectsEmptyLimit(t *testing.T) {
	_, err := NewBucket(0, time.Second, time.Minute)
	assert.ErrorIs(t, err, ErrBadLimit)

	_, err = NewBucket(1, 0, time.Minute)
	assert.ErrorIs(t, err, ErrBadLimit)
}
