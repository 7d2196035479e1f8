package httpapi

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestIPRateLimiterSweepsIdleClients(t *testing.T) {
	clock := time.Unix(1_700_000_000, 0)
	l := NewIPRateLimiter(rate.Limit(0.001), 1, slog.New(slog.NewTextHandler(io.Discard, nil)))
	l.now = func() time.Time { return clock }
	l.lastSweep.Store(clock.UnixNano())

	require.True(t, l.limiter("10.0.0.1").Allow())
	require.True(t, l.limiter("10.0.0.2").Allow())
	assert.Equal(t, 2, l.Len())
	assert.False(t, l.limiter("10.0.0.1").Allow())

	clock = clock.Add(5 * time.Minute)
	l.limiter("10.0.0.2")
	assert.Equal(t, 2, l.Len(), "no sweep before the idle period elapses")

	clock = clock.Add(6 * time.Minute)
	l.limiter("10.0.0.3")
	assert.Equal(t, 2, l.Len())
	_, ok := l.limiters.Load("10.0.0.1")
	assert.False(t, ok, "idle client swept")
	_, ok = l.limiters.Load("10.0.0.2")
	assert.True(t, ok)

	assert.True(t, l.limiter("10.0.0.1").Allow(), "a returning client gets a fresh bucket")
}
