package backoff

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExponential_Delay(t *testing.T) {
	p := Exponential{Initial: time.Second, Max: 10 * time.Second}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 0, want: time.Second},
		{attempt: 1, want: time.Second},
		{attempt: 2, want: 2 * time.Second},
		{attempt: 3, want: 4 * time.Second},
		{attempt: 4, want: 8 * time.Second},
		{attempt: 5, want: 10 * time.Second},
		{attempt: 500, want: 10 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.Delay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestExponential_DelayCapsUnevenMax(t *testing.T) {
	p := Exponential{Initial: 3 * time.Second, Max: 5 * time.Second}

	assert.Equal(t, 3*time.Second, p.Delay(1))
	assert.Equal(t, 5*time.Second, p.Delay(2))
	assert.Equal(t, 5*time.Second, p.Delay(3))
}

func TestNewPolicy(t *testing.T) {
	assert.Equal(t, Fixed{Interval: time.Second}, NewPolicy(time.Second, time.Second))
	assert.Equal(t, Exponential{Initial: time.Second, Max: time.Minute}, NewPolicy(time.Second, time.Minute))
	assert.Equal(t, 3*time.Second, Fixed{Interval: 3 * time.Second}.Delay(42))
}

func TestRealClock_SleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RealClock{}.Sleep(ctx, time.Hour)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRealClock_Sleep(t *testing.T) {
	start := time.Now()
	err := RealClock{}.Sleep(context.Background(), 5*time.Millisecond)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)
}
