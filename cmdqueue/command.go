package cmdqueue

import (
	"errors"
	"time"
)

// DefaultTimeout is used for commands with a parser and no explicit timeout.
const DefaultTimeout = time.Second

type outcomeKind uint8

const (
	needMore outcomeKind = iota
	accepted
	failed
)

// Outcome is the result of running a parser against the buffered bytes.
type Outcome struct {
	kind  outcomeKind
	value any
	err   error
}

// NeedMore signals that the buffer is a valid but incomplete prefix of a
// response. The buffer is kept and the parser is retried on the next chunk.
func NeedMore() Outcome {
	return Outcome{kind: needMore}
}

// Accept resolves the active command with v and consumes the whole buffer.
func Accept(v any) Outcome {
	return Outcome{kind: accepted, value: v}
}

// Fail rejects the active command with err and discards the buffer.
func Fail(err error) Outcome {
	if err == nil {
		err = errors.New("cmdqueue: parser failed")
	}
	return Outcome{kind: failed, err: err}
}

// IsNeedMore reports whether the parser asked for more data.
func (o Outcome) IsNeedMore() bool { return o.kind == needMore }

// IsAccepted reports whether the parser accepted the buffer.
func (o Outcome) IsAccepted() bool { return o.kind == accepted }

// IsFailed reports whether the parser signalled a hard failure.
func (o Outcome) IsFailed() bool { return o.kind == failed }

// Value returns the accepted value.
func (o Outcome) Value() any { return o.value }

// Err returns the hard failure.
func (o Outcome) Err() error { return o.err }

// ParseFunc inspects the whole accumulation buffer.
//
// It runs with the processor locked: it must not block, must not call back
// into the Processor, and must not retain buf after returning.
type ParseFunc func(buf []byte) Outcome

// Command describes one request/response exchange.
type Command struct {
	// Name identifies the command in logs and errors, e.g. "GET_INFO".
	Name string
	// Transmit writes the request. It runs outside the processor lock and
	// may block on the physical write.
	Transmit func() error
	// Parse is nil for commands that expect no reply.
	Parse ParseFunc
	// Timeout bounds the wait for an accepted response, measured from the
	// end of Transmit. Zero means DefaultTimeout.
	Timeout time.Duration
	// OnTimeout, if set, gets a last look at the buffer when the timeout
	// fires. Accept or Fail settle the command; NeedMore yields a *TimeoutError.
	OnTimeout ParseFunc
}

func (c *Command) timeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Timeout
}
