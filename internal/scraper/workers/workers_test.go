package workers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"channel-scout/internal/logging"
)

func TestSessionPoolBounds(t *testing.T) {
	pool := NewSessionPool(2, 50*time.Millisecond)

	a, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	b, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, pool.Active())

	_, err = pool.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrPoolExhausted)

	a.Release()
	a.Release()
	assert.Equal(t, 1, pool.Active())

	c, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	b.Release()
	c.Release()
	assert.Zero(t, pool.Active())
}

func TestSessionPoolHonoursContext(t *testing.T) {
	pool := NewSessionPool(1, 0)
	held, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	defer held.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = pool.Acquire(ctx)
	assert.ErrorIs(t, err, ErrPoolExhausted)
}

func TestDomainLimiterCircuitBreaker(t *testing.T) {
	dl := NewDomainLimiter(6000, logging.NewNopLogger())
	now := time.Now()
	dl.now = func() time.Time { return now }

	target := "https://www.youtube.com/@chef/about"
	for i := 0; i < 5; i++ {
		require.NoError(t, dl.Wait(context.Background(), target))
		dl.RecordFailure(target, errors.New("navigation timeout"))
	}
	assert.Equal(t, CircuitOpen, dl.State(target))
	assert.ErrorIs(t, dl.Wait(context.Background(), target), ErrCircuitOpen)

	// other hosts are unaffected
	assert.NoError(t, dl.Wait(context.Background(), "https://api.firecrawl.dev/v1/scrape"))

	now = now.Add(time.Minute)
	require.NoError(t, dl.Wait(context.Background(), target))
	assert.Equal(t, CircuitHalfOpen, dl.State(target))
	dl.RecordSuccess(target)
	assert.Equal(t, CircuitClosed, dl.State(target))
}

func TestDomainOf(t *testing.T) {
	assert.Equal(t, "www.youtube.com", DomainOf("https://WWW.YouTube.com/channel/UC1/about"))
	assert.Equal(t, "unknown", DomainOf("::bad"))
}
