package service

import (
	"context"
	"sync"
	"time"
)

// ticker runs fn once immediately and then on every interval until stopped.
type ticker struct {
	interval time.Duration
	fn       func(context.Context)

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

func newTicker(interval time.Duration, fn func(context.Context)) *ticker {
	return &ticker{interval: interval, fn: fn}
}

func (t *ticker) start(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return
	}
	t.started = true

	ctx, t.cancel = context.WithCancel(ctx)
	t.done = make(chan struct{})
	go t.run(ctx, t.done)
}

func (t *ticker) stop() {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (t *ticker) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	t.fn(ctx)

	tk := time.NewTicker(t.interval)
	defer tk.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tk.C:
			t.fn(ctx)
		}
	}
}
