// Package registry keeps the open links of a host with several remote ID
// modules attached, keyed by serial port name.
package registry

import (
	"errors"
	"fmt"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/SDP-Group-CIE-04/ridlink/link"
	"github.com/SDP-Group-CIE-04/ridlink/logger"
)

// ErrUnknownPort indicates that no link is registered for a port.
var ErrUnknownPort = errors.New("registry: unknown port")

// Registry is a concurrent map of port name to link.
type Registry struct {
	links  *xsync.MapOf[string, *link.Link]
	opts   []link.LinkOption
	logger logger.Logger
}

// New creates an empty registry. opts are applied to every link it opens.
func New(opts ...link.LinkOption) *Registry {
	return &Registry{
		links:  xsync.NewMapOf[string, *link.Link](),
		opts:   opts,
		logger: logger.With("component", "registry"),
	}
}

// Open returns the link for portName, opening it at baudRate if it is not
// registered or no longer open. A baudRate of zero uses the configured rate.
//
// The entry is created under the map lock but the channel is opened outside
// it, so a slow open never stalls other ports. Concurrent opens of the same
// port share one link. Links that fail to open are not kept.
func (r *Registry) Open(portName string, baudRate int) (*link.Link, error) {
	var newErr error
	l, ok := r.links.Compute(portName, func(old *link.Link, loaded bool) (*link.Link, bool) {
		if loaded {
			return old, false
		}

		cfg, err := link.NewLinkConfig(portName, r.opts...)
		if err != nil {
			newErr = err
			return nil, true
		}
		l, err := link.New(cfg)
		if err != nil {
			newErr = err
			return nil, true
		}

		return l, false
	})
	if newErr != nil {
		r.logger.Warn("registry: open failed", "port", portName, "error", newErr)
		return nil, newErr
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPort, portName)
	}

	if err := l.Open(baudRate); err != nil {
		r.links.Compute(portName, func(old *link.Link, loaded bool) (*link.Link, bool) {
			if loaded && old == l && l.State() != link.StateOpen {
				return nil, true
			}
			return old, !loaded
		})
		r.logger.Warn("registry: open failed", "port", portName, "error", err)

		return nil, err
	}

	// a concurrent failed open may have dropped the entry
	if actual, loaded := r.links.LoadOrStore(portName, l); loaded && actual != l {
		_ = l.Close()
		return actual, nil
	}

	return l, nil
}

// Get returns the link registered for portName.
func (r *Registry) Get(portName string) (*link.Link, bool) {
	return r.links.Load(portName)
}

// Len returns the number of registered links.
func (r *Registry) Len() int {
	return r.links.Size()
}

// Range calls fn for every registered link until fn returns false.
func (r *Registry) Range(fn func(portName string, l *link.Link) bool) {
	r.links.Range(fn)
}

// Close closes and removes the link for portName.
func (r *Registry) Close(portName string) error {
	l, ok := r.links.LoadAndDelete(portName)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPort, portName)
	}

	return l.Close()
}

// CloseAll closes and removes every link. Errors are joined.
func (r *Registry) CloseAll() error {
	var errs []error

	r.links.Range(func(portName string, _ *link.Link) bool {
		if l, ok := r.links.LoadAndDelete(portName); ok {
			if err := l.Close(); err != nil {
				errs = append(errs, fmt.Errorf("registry: close %s: %w", portName, err))
			}
		}
		return true
	})

	return errors.Join(errs...)
}
