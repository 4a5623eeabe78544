// Package worker runs per-VM planning work on a bounded goroutine pool.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

// ErrPoolClosed is returned when submitting to a released pool.
var ErrPoolClosed = errors.New("worker pool is closed")

const DefaultPoolSize = 16

// Task is a context-aware unit of work.
type Task func(ctx context.Context)

// Pool wraps ants.Pool with context-aware submission.
type Pool struct {
	pool *ants.Pool
	name string
}

func NewPool(name string, size int) (*Pool, error) {
	if size <= 0 {
		size = DefaultPoolSize
	}

	panicHandler := func(p interface{}) {
		zap.S().Named("worker").Errorw("worker panic recovered", "pool", name, "panic", p)
	}

	p, err := ants.NewPool(size,
		ants.WithPanicHandler(panicHandler),
		ants.WithNonblocking(false),
		ants.WithExpiryDuration(10*time.Second),
	)
	if err != nil {
		return nil, err
	}

	return &Pool{pool: p, name: name}, nil
}

// Submit queues task. A context cancelled before or while queued skips the task.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	err := p.pool.Submit(func() {
		select {
		case <-ctx.Done():
			zap.S().Named("worker").Debugw("task skipped: context cancelled", "pool", p.name, "error", ctx.Err())
			return
		default:
		}
		task(ctx)
	})
	if errors.Is(err, ants.ErrPoolClosed) {
		return ErrPoolClosed
	}
	return err
}

// Map applies fn to every index in [0, n) on the pool and returns the results
// in index order, so the output never depends on scheduling.
// It returns ctx.Err() if the context is cancelled before all items ran.
func Map[T any](ctx context.Context, p *Pool, n int, fn func(ctx context.Context, i int) T) ([]T, error) {
	results := make([]T, n)
	if n == 0 {
		return results, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		idx := i
		if err := p.pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			results[idx] = fn(ctx, idx)
		}); err != nil {
			wg.Done()
			wg.Wait()
			if errors.Is(err, ants.ErrPoolClosed) {
				return nil, ErrPoolClosed
			}
			return nil, err
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// Release waits up to timeout for running tasks and frees the pool.
func (p *Pool) Release(timeout time.Duration) {
	if err := p.pool.ReleaseTimeout(timeout); err != nil {
		zap.S().Named("worker").Warnw("pool shutdown timeout", "pool", p.name, "error", err)
	}
}

func (p *Pool) Stats() map[string]int {
	return map[string]int{
		"running": p.pool.Running(),
		"free":    p.pool.Free(),
		"cap":     p.pool.Cap(),
	}
}
