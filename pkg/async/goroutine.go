package async

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrPoolClosed is returned by Submit after Shutdown.
var ErrPoolClosed = errors.New("worker pool shut down")

func orDefault(logger logrus.FieldLogger) logrus.FieldLogger {
	if logger == nil {
		return logrus.StandardLogger()
	}
	return logger
}

// SafeGo runs fn in a goroutine with a timeout, recovering panics and logging
// errors against taskName. Nothing waits on it unless the caller reads the
// returned channel, which is closed when fn returns.
//
// Use this instead of bare `go func()` for background work the load pipeline
// must never block on, like update checks.
//
//	async.SafeGo(ctx, log, 30*time.Second, "update check", func(ctx context.Context) error {
//		return checker.Check(ctx, mods)
//	})
func SafeGo(parentCtx context.Context, logger logrus.FieldLogger, timeout time.Duration, taskName string, fn func(context.Context) error) <-chan struct{} {
	logger = orDefault(logger)
	done := make(chan struct{})

	go func() {
		defer close(done)

		ctx, cancel := context.WithTimeout(parentCtx, timeout)
		defer cancel()

		defer func() {
			if r := recover(); r != nil {
				logger.WithField("task", taskName).
					WithField("panic", r).
					WithField("stack", string(debug.Stack())).
					Error("Background task panicked")
			}
		}()

		if err := fn(ctx); err != nil {
			logger.WithField("task", taskName).WithError(err).Warn("Background task failed")
		}
	}()

	return done
}

// WorkerPool runs submitted tasks on a fixed number of goroutines.
type WorkerPool struct {
	taskName string
	timeout  time.Duration
	logger   logrus.FieldLogger

	workCh chan func(context.Context) error
	doneCh chan struct{}
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool

	errMu sync.Mutex
	errs  []error
}

// NewWorkerPool starts workers goroutines. Each task gets its own timeout.
//
//	pool := async.NewWorkerPool(ctx, log, 4, "update check", 10*time.Second)
//	defer pool.Shutdown(5 * time.Second)
func NewWorkerPool(ctx context.Context, logger logrus.FieldLogger, workers int, taskName string, timeout time.Duration) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(ctx)

	pool := &WorkerPool{
		taskName: taskName,
		timeout:  timeout,
		logger:   orDefault(logger),
		workCh:   make(chan func(context.Context) error, workers*2),
		doneCh:   make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			pool.worker(id)
		}(i)
	}
	go func() {
		wg.Wait()
		close(pool.doneCh)
	}()

	return pool
}

// Submit queues a task. It blocks while the queue is full.
func (p *WorkerPool) Submit(fn func(context.Context) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.workCh <- fn:
		return nil
	case <-p.ctx.Done():
		return ErrPoolClosed
	}
}

// Wait stops accepting tasks and blocks until every queued task finished.
func (p *WorkerPool) Wait() {
	p.close()
	<-p.doneCh
}

// Shutdown stops accepting tasks and waits up to timeout for running ones.
func (p *WorkerPool) Shutdown(timeout time.Duration) error {
	p.close()
	defer p.cancel()

	select {
	case <-p.doneCh:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("worker pool shutdown timed out after %v", timeout)
	}
}

func (p *WorkerPool) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.workCh)
	}
}

// Errors returns the errors collected so far.
func (p *WorkerPool) Errors() []error {
	p.errMu.Lock()
	defer p.errMu.Unlock()
	return append([]error(nil), p.errs...)
}

func (p *WorkerPool) record(err error) {
	p.errMu.Lock()
	defer p.errMu.Unlock()
	p.errs = append(p.errs, err)
}

func (p *WorkerPool) worker(id int) {
	for fn := range p.workCh {
		if p.ctx.Err() != nil {
			p.record(p.ctx.Err())
			continue
		}
		p.run(id, fn)
	}
}

func (p *WorkerPool) run(id int, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(p.ctx, p.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			p.logger.WithField("task", p.taskName).
				WithField("worker", id).
				WithField("stack", string(debug.Stack())).
				Errorf("Task panicked: %v", r)
			p.record(fmt.Errorf("panic: %v", r))
		}
	}()

	if err := fn(ctx); err != nil {
		p.record(err)
	}
}

// Batch runs fn for every item on a pool of workers and returns the errors.
//
//	errs := async.Batch(ctx, log, batches, 4, "update check", 10*time.Second, func(ctx context.Context, batch []Request) error {
//		return client.Search(ctx, batch)
//	})
func Batch[T any](ctx context.Context, logger logrus.FieldLogger, items []T, workers int, taskName string, timeout time.Duration,
	fn func(context.Context, T) error) []error {

	pool := NewWorkerPool(ctx, logger, workers, taskName, timeout)
	defer pool.cancel()

	for _, item := range items {
		if err := pool.Submit(func(ctx context.Context) error {
			return fn(ctx, item)
		}); err != nil {
			pool.Wait()
			return append(pool.Errors(), err)
		}
	}

	pool.Wait()
	return pool.Errors()
}
