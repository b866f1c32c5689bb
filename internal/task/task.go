// Package task runs the long-lived goroutines owned by a link, such as the
// background reader, with cooperative cancellation and bounded shutdown.
package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/SDP-Group-CIE-04/ridlink/internal/pool"
	"github.com/SDP-Group-CIE-04/ridlink/logger"
)

// startTimeout bounds how long Start waits for a goroutine to report that it is running.
const startTimeout = 5 * time.Second

// ErrStopped is returned when a task is started on a stopped manager.
var ErrStopped = errors.New("task: manager already stopped")

// Func is one iteration of a task. It returns true to keep running, or false
// to stop the goroutine.
type Func func() bool

// ExitFunc is called once when a task goroutine exits, whatever the reason.
type ExitFunc func()

// Manager manages the lifecycle of task goroutines.
//
// Stop cancels the manager context; each task observes it between iterations.
// Wait blocks until all tasks have exited and re-arms the manager so that it
// can be reused after the owning link is re-opened.
//
//	mgr := task.NewManager(ctx, logger)
//	_ = mgr.Start("reader", func() bool {
//	    // ... one read ...
//	    return true
//	}, nil)
//
//	mgr.Stop()
//	mgr.Wait()
type Manager struct {
	pctx   context.Context
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger logger.Logger
	count  atomic.Int32
	mu     sync.RWMutex // protect ctx and cancel
	taskMu sync.RWMutex // protect task creation during Wait()
}

// NewManager creates a Manager using ctx as parent context.
func NewManager(ctx context.Context, l logger.Logger) *Manager {
	mgr := &Manager{pctx: ctx, logger: l}
	mgr.ctx, mgr.cancel = context.WithCancel(ctx)

	return mgr
}

// Context returns the context that is cancelled by Stop.
func (mgr *Manager) Context() context.Context {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()

	return mgr.ctx
}

// Start starts a goroutine named name that calls fn until fn returns false or
// the manager is stopped. onExit, if not nil, runs when the goroutine exits.
func (mgr *Manager) Start(name string, fn Func, onExit ExitFunc) error {
	mgr.logger.Debug("start task", "name", name)

	ctx := mgr.Context()
	select {
	case <-ctx.Done():
		return ErrStopped
	default:
	}

	started := make(chan struct{})

	mgr.taskMu.RLock()
	mgr.wg.Add(1)
	go func() {
		defer mgr.wg.Done()

		mgr.count.Add(1)
		close(started)

		defer func() {
			mgr.count.Add(-1)
			mgr.logger.Debug("task terminated", "name", name, "task_count", mgr.TaskCount())
		}()

		if onExit != nil {
			defer mgr.callWithRecover(name, onExit)
		}

		mgr.runLoop(ctx, name, fn)
	}()
	mgr.taskMu.RUnlock()

	timer := pool.GetTimer(startTimeout)
	defer pool.PutTimer(timer)

	select {
	case <-started:
		return nil
	case <-timer.C:
		return fmt.Errorf("task: timeout waiting for %s to start", name)
	}
}

// Stop signals all running goroutines to exit.
func (mgr *Manager) Stop() {
	mgr.mu.Lock()
	if mgr.cancel != nil {
		mgr.cancel()
	}
	mgr.mu.Unlock()
}

// Wait waits for all goroutines to terminate, then re-arms the manager.
func (mgr *Manager) Wait() {
	mgr.taskMu.Lock()
	defer mgr.taskMu.Unlock()

	mgr.wg.Wait()

	mgr.mu.Lock()
	mgr.ctx, mgr.cancel = context.WithCancel(mgr.pctx)
	mgr.mu.Unlock()
}

// WaitTimeout is like Wait but gives up after d. It reports whether all
// goroutines terminated in time.
func (mgr *Manager) WaitTimeout(d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		mgr.Wait()
		close(done)
	}()

	timer := pool.GetTimer(d)
	defer pool.PutTimer(timer)

	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}

// TaskCount returns the number of currently running goroutines.
func (mgr *Manager) TaskCount() int {
	return int(mgr.count.Load())
}

func (mgr *Manager) runLoop(ctx context.Context, name string, fn Func) {
	defer func() {
		if r := recover(); r != nil {
			mgr.logger.Error("panic in task loop", "name", name, "panic", r)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			if !fn() {
				return
			}
		}
	}
}

func (mgr *Manager) callWithRecover(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			mgr.logger.Error("panic in task", "name", name, "panic", r)
		}
	}()

	fn()
}
