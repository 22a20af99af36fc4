// Package async provides goroutine lifecycle primitives for background work:
// panic recovery, per-task timeouts and graceful worker shutdown.
package async

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/ghxstship/atlvs-sub007/pkg/observability"
)

// SafeGo runs fn in a goroutine with panic recovery and a timeout. Use it
// instead of a bare go statement for fire-and-forget work off the request
// path; a panicking task must never take the process down. A non-positive
// timeout runs fn until the parent context ends.
func SafeGo(parent context.Context, timeout time.Duration, name string, logger *observability.Logger, fn func(context.Context) error) {
	go func() {
		ctx := parent
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(parent, timeout)
			defer cancel()
		}

		defer func() {
			if r := recover(); r != nil && logger != nil {
				logger.WithFields(map[string]interface{}{
					"task":  name,
					"panic": fmt.Sprint(r),
					"stack": string(debug.Stack()),
				}).Error("background task panicked")
			}
		}()

		if err := fn(ctx); err != nil && logger != nil {
			logger.WithError(err).WithField("task", name).Warn("background task failed")
		}
	}()
}

// WorkerPool processes submitted tasks on a fixed number of workers. Tasks
// run with the pool's per-task timeout and panic recovery.
type WorkerPool struct {
	name    string
	timeout time.Duration
	logger  *observability.Logger

	tasks chan func(context.Context) error
	done  chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// NewWorkerPool starts workers goroutines consuming submitted tasks.
func NewWorkerPool(ctx context.Context, workers int, name string, timeout time.Duration, logger *observability.Logger) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(ctx)
	p := &WorkerPool{
		name:    name,
		timeout: timeout,
		logger:  logger,
		tasks:   make(chan func(context.Context) error, workers*2),
		done:    make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}

	go func() {
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				p.worker()
			}()
		}
		wg.Wait()
		close(p.done)
	}()
	return p
}

// Submit queues a task. It fails once the pool is shut down.
func (p *WorkerPool) Submit(fn func(context.Context) error) error {
	select {
	case <-p.done:
		return fmt.Errorf("worker pool %q shut down", p.name)
	default:
	}

	defer func() {
		// Shutdown can close the task channel between the check above and
		// the send below.
		recover()
	}()

	select {
	case p.tasks <- fn:
		return nil
	case <-p.done:
		return fmt.Errorf("worker pool %q shut down", p.name)
	}
}

// Shutdown drains queued tasks, waiting at most timeout for workers to stop.
func (p *WorkerPool) Shutdown(timeout time.Duration) error {
	var err error
	p.once.Do(func() {
		close(p.tasks)
		select {
		case <-p.done:
			p.cancel()
		case <-time.After(timeout):
			p.cancel()
			err = fmt.Errorf("worker pool %q shutdown timed out after %v", p.name, timeout)
		}
	})
	return err
}

func (p *WorkerPool) worker() {
	for {
		select {
		case <-p.ctx.Done():
			return
		case fn, ok := <-p.tasks:
			if !ok {
				return
			}
			p.runTask(fn)
		}
	}
}

func (p *WorkerPool) runTask(fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(p.ctx, p.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil && p.logger != nil {
			p.logger.WithFields(map[string]interface{}{
				"pool":  p.name,
				"panic": fmt.Sprint(r),
				"stack": string(debug.Stack()),
			}).Error("worker task panicked")
		}
	}()

	if err := fn(ctx); err != nil && p.logger != nil {
		p.logger.WithError(err).WithField("pool", p.name).Warn("worker task failed")
	}
}
