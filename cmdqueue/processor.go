package cmdqueue

import (
	"sync"
	"time"

	"github.com/SDP-Group-CIE-04/ridlink/internal/queue"
	"github.com/SDP-Group-CIE-04/ridlink/logger"
)

// Processor serializes commands over one byte stream.
//
// A mutex guards the buffer, the active slot and the queue. Transmit runs
// outside the lock; parsers run inside it.
type Processor struct {
	mu     sync.Mutex
	buf    []byte
	queue  *queue.Queue[*Pending]
	active *Pending
	logger logger.Logger
}

// NewProcessor creates an idle Processor. A nil logger selects the default logger.
func NewProcessor(l logger.Logger) *Processor {
	if l == nil {
		l = logger.GetLogger()
	}

	return &Processor{
		queue:  queue.New[*Pending](4),
		logger: l,
	}
}

// Enqueue appends cmd to the FIFO and returns its handle.
//
// If the processor is idle the command is promoted at once and its Transmit
// runs in the calling goroutine before Enqueue returns.
func (p *Processor) Enqueue(cmd Command) *Pending {
	pd := &Pending{proc: p, cmd: cmd, done: make(chan struct{})}

	p.mu.Lock()
	if cmd.Transmit == nil {
		p.settleLocked(pd, nil, ErrNoTransmit)
		p.mu.Unlock()

		return pd
	}

	p.queue.Enqueue(pd)
	next := p.promoteLocked()
	p.mu.Unlock()

	if next != nil {
		p.start(next)
	}

	return pd
}

// Feed appends data to the accumulation buffer and retries the active
// command's parser against the whole buffer.
func (p *Processor) Feed(data []byte) {
	if len(data) == 0 {
		return
	}

	p.mu.Lock()
	p.buf = append(p.buf, data...)

	var next *Pending
	if pd := p.active; pd != nil && pd.armed {
		next = p.parseLocked(pd)
	}
	p.mu.Unlock()

	p.launch(next)
}

// Clear drops every queued and active command and empties the buffer.
// Dropped commands are rejected with ErrCleared.
func (p *Processor) Clear() {
	p.Abort(ErrCleared)
}

// Abort drops every queued and active command, rejecting each with err, and
// empties the buffer.
func (p *Processor) Abort(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	dropped := p.queue.Drain()
	if p.active != nil {
		dropped = append([]*Pending{p.active}, dropped...)
		p.active = nil
	}
	p.buf = nil

	for _, pd := range dropped {
		p.settleLocked(pd, nil, err)
	}

	if len(dropped) > 0 {
		p.logger.Debug("cmdqueue: dropped pending commands", "count", len(dropped), "error", err)
	}
}

// Busy reports whether a command is active.
func (p *Processor) Busy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.active != nil
}

// Len returns the number of commands waiting behind the active one.
func (p *Processor) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.queue.Length()
}

// Buffered returns the number of bytes received but not yet consumed.
func (p *Processor) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.buf)
}

// start transmits pd and, if it expects a reply, arms its timeout.
func (p *Processor) start(pd *Pending) {
	p.logger.Debug("cmdqueue: transmit", "command", pd.cmd.Name)

	err := pd.cmd.Transmit()

	p.mu.Lock()
	if p.active != pd {
		// cleared while transmitting
		p.mu.Unlock()
		return
	}

	var next *Pending
	switch {
	case err != nil:
		p.logger.Debug("cmdqueue: transmit failed", "command", pd.cmd.Name, "error", err)
		next = p.completeLocked(pd, nil, err, true)
	case pd.cmd.Parse == nil:
		next = p.completeLocked(pd, nil, nil, false)
	default:
		pd.armed = true
		timeout := pd.cmd.timeout()
		pd.timer = time.AfterFunc(timeout, func() { p.expire(pd) })
		if len(p.buf) > 0 {
			next = p.parseLocked(pd)
		}
	}
	p.mu.Unlock()

	p.launch(next)
}

// expire handles the timeout of pd.
func (p *Processor) expire(pd *Pending) {
	p.mu.Lock()
	if p.active != pd || pd.settled {
		p.mu.Unlock()
		return
	}

	out := NeedMore()
	if pd.cmd.OnTimeout != nil {
		out = p.callParser(pd, pd.cmd.OnTimeout)
	}

	var next *Pending
	switch out.kind {
	case accepted:
		next = p.completeLocked(pd, out.value, nil, true)
	case failed:
		next = p.completeLocked(pd, nil, out.err, true)
	default:
		timeout := pd.cmd.timeout()
		p.logger.Warn("cmdqueue: command timeout",
			"command", pd.cmd.Name,
			"timeout", timeout,
			"buffered", len(p.buf))
		next = p.completeLocked(pd, nil, &TimeoutError{Command: pd.cmd.Name, Timeout: timeout}, true)
	}
	p.mu.Unlock()

	p.launch(next)
}

// withdraw removes pd from the queue if it has not been promoted yet.
func (p *Processor) withdraw(pd *Pending, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if pd.settled {
		return
	}

	if p.queue.Remove(func(item *Pending) bool { return item == pd }) {
		p.settleLocked(pd, nil, err)
	}
}

// parseLocked runs the active parser and settles pd unless it needs more data.
func (p *Processor) parseLocked(pd *Pending) *Pending {
	out := p.callParser(pd, pd.cmd.Parse)

	switch out.kind {
	case accepted:
		return p.completeLocked(pd, out.value, nil, true)
	case failed:
		p.logger.Debug("cmdqueue: parser failed", "command", pd.cmd.Name, "error", out.err)
		return p.completeLocked(pd, nil, out.err, true)
	default:
		p.logger.Debug("cmdqueue: waiting for more data", "command", pd.cmd.Name, "buffered", len(p.buf))
		return nil
	}
}

func (p *Processor) callParser(pd *Pending, parse ParseFunc) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = Fail(&panicError{command: pd.cmd.Name, value: r})
		}
	}()

	return parse(p.buf)
}

// completeLocked settles the active command, optionally consumes the buffer,
// and promotes the next queued command, which the caller must start.
func (p *Processor) completeLocked(pd *Pending, value any, err error, consume bool) *Pending {
	p.settleLocked(pd, value, err)
	if consume {
		p.buf = nil
	}
	p.active = nil

	return p.promoteLocked()
}

// promoteLocked makes the queue head active when idle.
func (p *Processor) promoteLocked() *Pending {
	if p.active != nil {
		return nil
	}

	next, ok := p.queue.Dequeue()
	if !ok {
		return nil
	}
	p.active = next

	return next
}

func (p *Processor) settleLocked(pd *Pending, value any, err error) {
	if pd.settled {
		return
	}
	pd.settled = true
	pd.value = value
	pd.err = err
	if pd.timer != nil {
		pd.timer.Stop()
	}
	close(pd.done)
}

// launch starts a promoted command without blocking the reader or timer goroutine.
func (p *Processor) launch(next *Pending) {
	if next != nil {
		go p.start(next)
	}
}
