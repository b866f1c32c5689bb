package link

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/SDP-Group-CIE-04/ridlink/cmdqueue"
	"github.com/SDP-Group-CIE-04/ridlink/internal/pool"
	"github.com/SDP-Group-CIE-04/ridlink/internal/task"
	"github.com/SDP-Group-CIE-04/ridlink/logger"
)

// Link is a command/response connection to one remote ID module.
//
// All operations are safe for concurrent use; commands are serialized
// through a single queue so that at most one is in flight at a time.
type Link struct {
	cfg    *LinkConfig
	logger logger.Logger

	qp      *cmdqueue.Processor
	taskMgr *task.Manager
	state   atomicState
	metrics LinkMetrics

	// lifecycleMu serializes Open, Close and fail.
	lifecycleMu sync.Mutex

	mu         sync.Mutex // guards the fields below
	port       Port
	session    uint64    // incremented on every successful channel open
	cause      error     // transport failure that closed the link
	quietUntil time.Time // no transmit before this instant
}

// New creates a closed link for cfg.
func New(cfg *LinkConfig) (*Link, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}

	l := cfg.logger.With("port", cfg.portName)

	return &Link{
		cfg:     cfg,
		logger:  l,
		qp:      cmdqueue.NewProcessor(l),
		taskMgr: task.NewManager(context.Background(), l),
	}, nil
}

// Open opens the channel at baudRate and starts the background reader.
// A baudRate of zero uses the configured rate.
//
// Opening an open link is a no-op. Failures are reported as *ConnectionError.
func (l *Link) Open(baudRate int) error {
	l.lifecycleMu.Lock()
	defer l.lifecycleMu.Unlock()

	if l.state.IsOpen() {
		return nil
	}
	if !l.state.ToOpening() {
		return fmt.Errorf("link: cannot open in %s state", l.state.Get())
	}

	if baudRate <= 0 {
		baudRate = l.cfg.baudRate
	}

	port, err := l.cfg.opener.Open(l.cfg.portName, baudRate)
	if err != nil {
		l.state.Set(StateClosed)
		cerr := &ConnectionError{Op: "open", Port: l.cfg.portName, Kind: connKindOf(err), Err: err}
		l.logger.Error("link: open failed", "kind", cerr.Kind.String(), "error", err)

		return cerr
	}

	// a re-opened link never sees bytes from a previous session
	l.qp.Clear()

	l.mu.Lock()
	l.port = port
	l.session++
	session := l.session
	l.cause = nil
	l.quietUntil = time.Time{}
	l.mu.Unlock()

	l.state.ToOpen()
	if err := l.taskMgr.Start("reader", l.readLoop(port, session), nil); err != nil {
		cerr := &ConnectionError{Op: "open", Port: l.cfg.portName, Kind: ConnIO, Err: err}
		l.state.Set(StateClosing)
		_ = l.teardown(cerr)

		return cerr
	}

	l.metrics.incOpenCount()
	l.logger.Info("link: opened", "baud_rate", baudRate)

	return nil
}

// Close stops the reader, closes the channel and rejects every pending
// command with an error wrapping ErrLinkClosed. Closing a closed link is a no-op.
func (l *Link) Close() error {
	l.lifecycleMu.Lock()
	defer l.lifecycleMu.Unlock()

	if !l.state.ToClosing() {
		return nil
	}

	err := l.teardown(&ConnectionError{Op: "close", Port: l.cfg.portName, Kind: ConnClosed, Err: ErrLinkClosed})
	l.logger.Info("link: closed")

	return err
}

// fail closes the link after a transport failure in session. A failure
// reported for an earlier session is ignored.
func (l *Link) fail(session uint64, op string, cause error) {
	l.lifecycleMu.Lock()
	defer l.lifecycleMu.Unlock()

	l.mu.Lock()
	current := l.session
	l.mu.Unlock()
	if session != current {
		l.logger.Debug("link: stale transport failure", "op", op, "error", cause)
		return
	}

	if !l.state.ToClosing() {
		return
	}

	l.metrics.incLinkFailureCount()
	cerr := &ConnectionError{Op: op, Port: l.cfg.portName, Kind: ConnIO, Err: cause}
	l.logger.Error("link: transport failure", "op", op, "error", cause)

	l.mu.Lock()
	l.cause = cerr
	l.mu.Unlock()

	_ = l.teardown(cerr)
}

// teardown must be called with lifecycleMu held and the state set to closing.
func (l *Link) teardown(abortErr error) error {
	l.taskMgr.Stop()

	l.mu.Lock()
	port := l.port
	l.port = nil
	l.mu.Unlock()

	if port != nil {
		if err := port.Close(); err != nil {
			l.logger.Debug("link: close port", "error", err)
		}
	}

	var err error
	if !l.taskMgr.WaitTimeout(l.cfg.closeTimeout) {
		l.logger.Warn("link: reader did not stop in time", "timeout", l.cfg.closeTimeout)
		err = fmt.Errorf("link: reader did not stop within %s", l.cfg.closeTimeout)
	}

	l.qp.Abort(abortErr)
	l.state.ToClosed()

	return err
}

func (l *Link) readLoop(port Port, session uint64) task.Func {
	buf := make([]byte, l.cfg.readBufferSize)

	return func() bool {
		n, err := port.Read(buf)
		if n > 0 {
			l.metrics.addBytesRecv(n)
			l.logger.Debug("link: rx", "bytes", n)
			l.qp.Feed(buf[:n])
		}

		if err == nil {
			return true
		}

		if l.state.Get() != StateOpen {
			// closed underneath by Close or fail
			return false
		}

		if errors.Is(err, io.EOF) {
			l.logger.Info("link: device stream ended")
		}
		go l.fail(session, "read", err)

		return false
	}
}

// write transmits data, honoring the settle window of a previous BASIC_SET.
func (l *Link) write(command string, data []byte) error {
	l.mu.Lock()
	port := l.port
	session := l.session
	quiet := time.Until(l.quietUntil)
	l.mu.Unlock()

	if port == nil {
		return l.notOpenError(command)
	}
	if quiet > 0 {
		time.Sleep(quiet)
	}

	for written := 0; written < len(data); {
		n, err := port.Write(data[written:])
		written += n
		l.metrics.addBytesSent(n)
		if err != nil {
			if l.state.Get() != StateOpen {
				// port closed underneath by Close
				return &ConnectionError{Op: command, Port: l.cfg.portName, Kind: ConnClosed, Err: ErrLinkClosed}
			}
			go l.fail(session, "write", err)

			return &ConnectionError{Op: "write", Port: l.cfg.portName, Kind: ConnIO, Err: err}
		}
	}
	l.logger.Debug("link: tx", "command", command, "bytes", len(data))

	return nil
}

func (l *Link) holdQuiet(d time.Duration) {
	if d <= 0 {
		return
	}

	l.mu.Lock()
	l.quietUntil = time.Now().Add(d)
	l.mu.Unlock()
}

func (l *Link) notOpenError(op string) error {
	l.mu.Lock()
	cause := l.cause
	l.mu.Unlock()

	err := ErrLinkNotOpen
	if cause != nil {
		err = fmt.Errorf("%w: %w", ErrLinkNotOpen, cause)
	}

	return &ConnectionError{Op: op, Port: l.cfg.portName, Kind: ConnClosed, Err: err}
}

// execute sends line as cmd and waits for its outcome.
func (l *Link) execute(ctx context.Context, cmd cmdqueue.Command, line string) (any, error) {
	if !l.state.IsOpen() {
		return nil, l.notOpenError(cmd.Name)
	}

	cmd.Transmit = func() error {
		return l.write(cmd.Name, []byte(line))
	}

	l.metrics.incCommandCount()
	v, err := l.qp.Enqueue(cmd).Wait(ctx)
	if err != nil {
		l.metrics.incCommandErrCount()
		if errors.Is(err, cmdqueue.ErrTimeout) {
			l.metrics.incCommandTimeoutCount()
		}
		l.logger.Debug("link: command failed", "command", cmd.Name, "error", err)

		return nil, err
	}

	return v, nil
}

// Flush drops all pending commands and buffered input, waits for the
// configured flush delay so that in-flight bytes arrive, and drops them too.
func (l *Link) Flush(ctx context.Context) error {
	if !l.state.IsOpen() {
		return l.notOpenError("flush")
	}

	l.qp.Clear()
	if err := pool.Sleep(ctx, l.cfg.flushDelay); err != nil {
		return err
	}
	l.qp.Clear()

	return nil
}

// State returns the current lifecycle state.
func (l *Link) State() State { return l.state.Get() }

// Busy reports whether a command is in flight or queued.
func (l *Link) Busy() bool { return l.qp.Busy() }

// PortName returns the port name of the link.
func (l *Link) PortName() string { return l.cfg.portName }

// Metrics returns the link counters.
func (l *Link) Metrics() *LinkMetrics { return &l.metrics }

// PortInfo returns the USB details of the port. It works whether or not the
// link is open.
func (l *Link) PortInfo() (*PortInfo, error) {
	return LookupPortInfo(l.cfg.portName)
}
