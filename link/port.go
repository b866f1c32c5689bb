package link

import (
	"errors"
	"io"
	"io/fs"
	"syscall"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// DefaultPollInterval is the serial read timeout. Reads return (0, nil) when
// it elapses so the reader loop can notice a stop request.
const DefaultPollInterval = 50 * time.Millisecond

// Port is an open byte channel to a device.
type Port interface {
	io.ReadWriteCloser
}

// Opener opens the physical channel for a link.
//
// A Read on the returned Port may return (0, nil); io.EOF ends the stream.
type Opener interface {
	Open(name string, baudRate int) (Port, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(name string, baudRate int) (Port, error)

// Open calls f(name, baudRate).
func (f OpenerFunc) Open(name string, baudRate int) (Port, error) {
	return f(name, baudRate)
}

// SerialOpener opens serial ports with go.bug.st/serial.
// The zero value uses 8 data bits, no parity and one stop bit.
type SerialOpener struct {
	DataBits     int
	Parity       serial.Parity
	StopBits     serial.StopBits
	PollInterval time.Duration
}

// Open opens the named serial port and discards any input already buffered by the OS.
func (o SerialOpener) Open(name string, baudRate int) (Port, error) {
	dataBits := o.DataBits
	if dataBits == 0 {
		dataBits = 8
	}
	poll := o.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}

	port, err := serial.Open(name, &serial.Mode{
		BaudRate: baudRate,
		DataBits: dataBits,
		Parity:   o.Parity,
		StopBits: o.StopBits,
	})
	if err != nil {
		return nil, err
	}

	if err := port.SetReadTimeout(poll); err != nil {
		_ = port.Close()
		return nil, err
	}

	if err := port.ResetInputBuffer(); err != nil {
		_ = port.Close()
		return nil, err
	}

	return port, nil
}

// connKindOf classifies an error returned while opening a port.
func connKindOf(err error) ConnKind {
	var portErr *serial.PortError
	if errors.As(err, &portErr) {
		switch portErr.Code() { //nolint:exhaustive
		case serial.PortNotFound:
			return ConnNotFound
		case serial.PortBusy:
			return ConnBusy
		case serial.PermissionDenied:
			return ConnPermissionDenied
		case serial.InvalidSerialPort, serial.InvalidSpeed, serial.InvalidDataBits,
			serial.InvalidParity, serial.InvalidStopBits, serial.InvalidTimeoutValue:
			return ConnInvalidConfig
		case serial.PortClosed:
			return ConnClosed
		}
	}

	switch {
	case errors.Is(err, fs.ErrNotExist):
		return ConnNotFound
	case errors.Is(err, fs.ErrPermission):
		return ConnPermissionDenied
	case errors.Is(err, syscall.EBUSY):
		return ConnBusy
	default:
		return ConnIO
	}
}

// PortInfo describes the USB device behind a serial port.
type PortInfo struct {
	Name         string `json:"name"`
	IsUSB        bool   `json:"is_usb"`
	VID          string `json:"vid,omitempty"`
	PID          string `json:"pid,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
	Product      string `json:"product,omitempty"`
}

// LookupPortInfo returns the details of the named port as reported by the OS.
func LookupPortInfo(name string) (*PortInfo, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, errors.Join(ErrPortInfoUnavailable, err)
	}

	for _, p := range ports {
		if p.Name != name {
			continue
		}

		return &PortInfo{
			Name:         p.Name,
			IsUSB:        p.IsUSB,
			VID:          p.VID,
			PID:          p.PID,
			SerialNumber: p.SerialNumber,
			Product:      p.Product,
		}, nil
	}

	return nil, ErrPortInfoUnavailable
}

// ListPorts returns the details of all serial ports known to the OS.
func ListPorts() ([]PortInfo, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, err
	}

	infos := make([]PortInfo, 0, len(ports))
	for _, p := range ports {
		infos = append(infos, PortInfo{
			Name:         p.Name,
			IsUSB:        p.IsUSB,
			VID:          p.VID,
			PID:          p.PID,
			SerialNumber: p.SerialNumber,
			Product:      p.Product,
		})
	}

	return infos, nil
}
