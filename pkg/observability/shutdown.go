package observability

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

// ShutdownFunc is a function to call during shutdown
type ShutdownFunc func(context.Context) error

type namedShutdown struct {
	name string
	fn   ShutdownFunc
}

// ShutdownManager runs registered cleanup in reverse registration order, so
// whatever started last stops first.
type ShutdownManager struct {
	logger  logrus.FieldLogger
	timeout time.Duration

	mu    sync.Mutex
	funcs []namedShutdown
	once  sync.Once
	err   error
}

// NewShutdownManager creates a new shutdown manager
func NewShutdownManager(logger logrus.FieldLogger, timeout time.Duration) *ShutdownManager {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &ShutdownManager{
		logger:  logger,
		timeout: timeout,
	}
}

// Register adds a cleanup step.
func (sm *ShutdownManager) Register(name string, fn ShutdownFunc) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.funcs = append(sm.funcs, namedShutdown{name: name, fn: fn})
}

// WaitForSignal blocks until SIGINT/SIGTERM or ctx is done.
func (sm *ShutdownManager) WaitForSignal(ctx context.Context) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		sm.logger.Infof("Received signal %s, shutting down", sig)
	case <-ctx.Done():
	}
}

// Shutdown runs every step once, even when earlier steps fail. Later calls
// return the first call's result.
func (sm *ShutdownManager) Shutdown(ctx context.Context) error {
	sm.once.Do(func() {
		ctx, cancel := context.WithTimeout(ctx, sm.timeout)
		defer cancel()

		sm.mu.Lock()
		funcs := append([]namedShutdown(nil), sm.funcs...)
		sm.mu.Unlock()

		var errs []error
		for i := len(funcs) - 1; i >= 0; i-- {
			step := funcs[i]
			if ctx.Err() != nil {
				errs = append(errs, fmt.Errorf("%s: %w", step.name, ctx.Err()))
				continue
			}
			sm.logger.Debugf("Shutting down %s", step.name)
			if err := step.fn(ctx); err != nil {
				sm.logger.WithError(err).Errorf("Shutdown of %s failed", step.name)
				errs = append(errs, fmt.Errorf("%s: %w", step.name, err))
			}
		}
		sm.err = errors.Join(errs...)
	})
	return sm.err
}
