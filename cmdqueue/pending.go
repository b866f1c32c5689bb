package cmdqueue

import (
	"context"
	"time"
)

// Pending is the caller's handle on an enqueued command.
type Pending struct {
	proc *Processor
	cmd  Command
	done chan struct{}

	// guarded by proc.mu
	timer   *time.Timer
	armed   bool
	settled bool
	value   any
	err     error
}

// Name returns the command name.
func (pd *Pending) Name() string { return pd.cmd.Name }

// Done is closed once the command is resolved or rejected.
func (pd *Pending) Done() <-chan struct{} { return pd.done }

// Result blocks until the command settles and returns its outcome.
func (pd *Pending) Result() (any, error) {
	<-pd.done
	return pd.value, pd.err
}

// Wait is like Result but gives up when ctx is done.
//
// A command still waiting in the queue is removed and rejected with
// ctx.Err(). A command that is already active keeps its slot until it
// settles, so that a late response is never attributed to the next command.
func (pd *Pending) Wait(ctx context.Context) (any, error) {
	select {
	case <-pd.done:
		return pd.value, pd.err
	case <-ctx.Done():
	}

	pd.proc.withdraw(pd, ctx.Err())

	select {
	case <-pd.done:
		return pd.value, pd.err
	default:
		return nil, ctx.Err()
	}
}
