package workers

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// ErrPoolExhausted is returned when no session slot frees up in time
var ErrPoolExhausted = fmt.Errorf("browser session pool exhausted")

// SessionPool bounds how many browser sessions run at once across all runs
type SessionPool struct {
	slots   chan struct{}
	timeout time.Duration
	active  atomic.Int64
	waiting atomic.Int64
}

// NewSessionPool creates a pool of size slots. Acquire waits at most timeout,
// or only on ctx when timeout is zero.
func NewSessionPool(size int, timeout time.Duration) *SessionPool {
	if size <= 0 {
		size = 1
	}
	return &SessionPool{
		slots:   make(chan struct{}, size),
		timeout: timeout,
	}
}

// Lease is one acquired slot. Release is idempotent.
type Lease struct {
	pool *SessionPool
	once sync.Once
}

// Acquire blocks until a slot is free, ctx ends or the acquisition timeout passes
func (p *SessionPool) Acquire(ctx context.Context) (*Lease, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	p.waiting.Add(1)
	defer p.waiting.Add(-1)

	select {
	case p.slots <- struct{}{}:
		p.active.Add(1)
		return &Lease{pool: p}, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrPoolExhausted, ctx.Err())
	}
}

// Release returns the slot to the pool
func (l *Lease) Release() {
	if l == nil {
		return
	}
	l.once.Do(func() {
		l.pool.active.Add(-1)
		<-l.pool.slots
	})
}

// Stats reports pool occupancy
func (p *SessionPool) Stats() map[string]interface{} {
	return map[string]interface{}{
		"capacity": cap(p.slots),
		"active":   p.active.Load(),
		"waiting":  p.waiting.Load(),
	}
}

// Active returns the number of held slots
func (p *SessionPool) Active() int {
	return int(p.active.Load())
}
