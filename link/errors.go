package link

import (
	"errors"
	"fmt"

	"github.com/SDP-Group-CIE-04/ridlink/cmdqueue"
)

var (
	// ErrLinkClosed is returned to commands still pending when the link is closed.
	ErrLinkClosed = errors.New("link: closed")

	// ErrLinkNotOpen indicates an operation on a link that is not open.
	ErrLinkNotOpen = errors.New("link: not open")

	// ErrInvalidFieldValue indicates a BASIC_SET value that would break the wire framing.
	ErrInvalidFieldValue = errors.New("link: invalid field value")

	// ErrMissingField indicates a BASIC_SET without operator or aircraft id.
	ErrMissingField = errors.New("link: missing required field")

	// ErrPortInfoUnavailable indicates that no USB details are known for the port.
	ErrPortInfoUnavailable = errors.New("link: port info unavailable")

	// ErrConfigNil indicates that a nil LinkConfig was provided.
	ErrConfigNil = errors.New("link: config is nil")
)

// TimeoutError reports that no acceptable response arrived in time.
type TimeoutError = cmdqueue.TimeoutError

// ConnKind classifies a ConnectionError.
type ConnKind uint8

const (
	ConnIO ConnKind = iota
	ConnNotFound
	ConnBusy
	ConnPermissionDenied
	ConnInvalidConfig
	ConnClosed
)

func (k ConnKind) String() string {
	switch k {
	case ConnIO:
		return "i/o error"
	case ConnNotFound:
		return "port not found"
	case ConnBusy:
		return "port busy"
	case ConnPermissionDenied:
		return "permission denied"
	case ConnInvalidConfig:
		return "invalid port configuration"
	case ConnClosed:
		return "link closed"
	default:
		return fmt.Sprintf("ConnKind(%d)", uint8(k))
	}
}

// ConnectionError reports that the channel could not be opened or used.
// It is fatal to the link.
type ConnectionError struct {
	Op   string
	Port string
	Kind ConnKind
	Err  error
}

func (e *ConnectionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("link: %s %s: %s", e.Op, e.Port, e.Kind)
	}
	return fmt.Sprintf("link: %s %s: %s: %v", e.Op, e.Port, e.Kind, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// MalformedResponseError reports a complete response that does not have the
// expected shape. The link stays usable.
type MalformedResponseError struct {
	Command string
	Raw     string
	Err     error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("link: malformed %s response %q: %v", e.Command, e.Raw, e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// DeviceReportedError reports a response in which the device itself signals failure.
type DeviceReportedError struct {
	Command string
	Message string
}

func (e *DeviceReportedError) Error() string {
	return fmt.Sprintf("link: device rejected %s: %s", e.Command, e.Message)
}
