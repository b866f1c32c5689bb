package link

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/SDP-Group-CIE-04/ridlink/logger"
)

// Default values.
const (
	DefaultBaudRate = 115200

	DefaultStatusTimeout = 2 * time.Second        // GET_INFO
	DefaultFieldsTimeout = 700 * time.Millisecond // GET_FIELDS
	DefaultSetTimeout    = 2 * time.Second        // BASIC_SET, includes EEPROM commit
	DefaultDumpTimeout   = 5 * time.Second        // READ_EEPROM

	DefaultSettleDelay  = 300 * time.Millisecond
	DefaultFlushDelay   = 100 * time.Millisecond
	DefaultCloseTimeout = 3 * time.Second

	DefaultReadBufferSize = 256
	DefaultMinDumpFields  = 10
)

// Range limits.
const (
	MinCommandTimeout = 50 * time.Millisecond
	MaxCommandTimeout = 60 * time.Second

	MaxSettleDelay  = 5 * time.Second
	MaxFlushDelay   = 5 * time.Second
	MinCloseTimeout = 10 * time.Millisecond
	MaxCloseTimeout = 30 * time.Second

	MinReadBufferSize = 16
	MaxReadBufferSize = 64 * 1024

	MaxBaudRate = 4_000_000
)

// LinkConfig holds the configuration of one link.
type LinkConfig struct {
	portName string
	baudRate int

	statusTimeout time.Duration
	fieldsTimeout time.Duration
	setTimeout    time.Duration
	dumpTimeout   time.Duration

	// settleDelay follows a successful BASIC_SET so the device can finish
	// committing before the next command goes out.
	settleDelay  time.Duration
	flushDelay   time.Duration
	closeTimeout time.Duration

	readBufferSize int
	minDumpFields  int

	opener Opener
	logger logger.Logger
}

// NewLinkConfig creates a configuration for the serial port portName,
// e.g. "/dev/ttyUSB0" or "COM3".
//
// opts are functional options applied in order; see With* functions.
func NewLinkConfig(portName string, opts ...LinkOption) (*LinkConfig, error) {
	portName = strings.TrimSpace(portName)
	if portName == "" {
		return nil, errors.New("link: port name is empty")
	}

	cfg := &LinkConfig{
		portName:       portName,
		baudRate:       DefaultBaudRate,
		statusTimeout:  DefaultStatusTimeout,
		fieldsTimeout:  DefaultFieldsTimeout,
		setTimeout:     DefaultSetTimeout,
		dumpTimeout:    DefaultDumpTimeout,
		settleDelay:    DefaultSettleDelay,
		flushDelay:     DefaultFlushDelay,
		closeTimeout:   DefaultCloseTimeout,
		readBufferSize: DefaultReadBufferSize,
		minDumpFields:  DefaultMinDumpFields,
		opener:         SerialOpener{},
		logger:         logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// --- Getters ---

// PortName returns the serial port name.
func (cfg *LinkConfig) PortName() string { return cfg.portName }

// BaudRate returns the default transmission rate used by Open(0).
func (cfg *LinkConfig) BaudRate() int { return cfg.baudRate }

// StatusTimeout returns the GET_INFO timeout.
func (cfg *LinkConfig) StatusTimeout() time.Duration { return cfg.statusTimeout }

// FieldsTimeout returns the GET_FIELDS timeout.
func (cfg *LinkConfig) FieldsTimeout() time.Duration { return cfg.fieldsTimeout }

// SetTimeout returns the BASIC_SET timeout.
func (cfg *LinkConfig) SetTimeout() time.Duration { return cfg.setTimeout }

// DumpTimeout returns the READ_EEPROM timeout.
func (cfg *LinkConfig) DumpTimeout() time.Duration { return cfg.dumpTimeout }

// SettleDelay returns the pause that follows a successful BASIC_SET.
func (cfg *LinkConfig) SettleDelay() time.Duration { return cfg.settleDelay }

// FlushDelay returns the wait used by Link.Flush.
func (cfg *LinkConfig) FlushDelay() time.Duration { return cfg.flushDelay }

// CloseTimeout returns how long Close waits for the reader to stop.
func (cfg *LinkConfig) CloseTimeout() time.Duration { return cfg.closeTimeout }

// ReadBufferSize returns the size of a single read.
func (cfg *LinkConfig) ReadBufferSize() int { return cfg.readBufferSize }

// MinDumpFields returns the number of field lines a READ_EEPROM dump must contain.
func (cfg *LinkConfig) MinDumpFields() int { return cfg.minDumpFields }

// GetLogger returns the configured logger.
func (cfg *LinkConfig) GetLogger() logger.Logger { return cfg.logger }

// --- LinkOption ---

// LinkOption is a functional option for configuring a LinkConfig.
type LinkOption interface {
	apply(*LinkConfig) error
}

type linkOptFunc func(*LinkConfig) error

func (f linkOptFunc) apply(cfg *LinkConfig) error { return f(cfg) }

// WithBaudRate sets the default transmission rate.
func WithBaudRate(rate int) LinkOption {
	return linkOptFunc(func(cfg *LinkConfig) error {
		if rate <= 0 || rate > MaxBaudRate {
			return fmt.Errorf("link: baud rate %d out of range (0, %d]", rate, MaxBaudRate)
		}
		cfg.baudRate = rate
		return nil
	})
}

func checkCommandTimeout(name string, d time.Duration) error {
	if d < MinCommandTimeout || d > MaxCommandTimeout {
		return fmt.Errorf("link: %s timeout %s out of range [%s, %s]", name, d, MinCommandTimeout, MaxCommandTimeout)
	}
	return nil
}

// WithStatusTimeout sets the GET_INFO timeout. Slower devices may need more
// than the default.
func WithStatusTimeout(d time.Duration) LinkOption {
	return linkOptFunc(func(cfg *LinkConfig) error {
		if err := checkCommandTimeout("status", d); err != nil {
			return err
		}
		cfg.statusTimeout = d
		return nil
	})
}

// WithFieldsTimeout sets the GET_FIELDS timeout.
func WithFieldsTimeout(d time.Duration) LinkOption {
	return linkOptFunc(func(cfg *LinkConfig) error {
		if err := checkCommandTimeout("fields", d); err != nil {
			return err
		}
		cfg.fieldsTimeout = d
		return nil
	})
}

// WithSetTimeout sets the BASIC_SET timeout.
func WithSetTimeout(d time.Duration) LinkOption {
	return linkOptFunc(func(cfg *LinkConfig) error {
		if err := checkCommandTimeout("set", d); err != nil {
			return err
		}
		cfg.setTimeout = d
		return nil
	})
}

// WithDumpTimeout sets the READ_EEPROM timeout.
func WithDumpTimeout(d time.Duration) LinkOption {
	return linkOptFunc(func(cfg *LinkConfig) error {
		if err := checkCommandTimeout("dump", d); err != nil {
			return err
		}
		cfg.dumpTimeout = d
		return nil
	})
}

// WithSettleDelay sets the pause after a successful BASIC_SET. Zero disables it.
func WithSettleDelay(d time.Duration) LinkOption {
	return linkOptFunc(func(cfg *LinkConfig) error {
		if d < 0 || d > MaxSettleDelay {
			return fmt.Errorf("link: settle delay %s out of range [0, %s]", d, MaxSettleDelay)
		}
		cfg.settleDelay = d
		return nil
	})
}

// WithFlushDelay sets the wait used by Link.Flush.
func WithFlushDelay(d time.Duration) LinkOption {
	return linkOptFunc(func(cfg *LinkConfig) error {
		if d < 0 || d > MaxFlushDelay {
			return fmt.Errorf("link: flush delay %s out of range [0, %s]", d, MaxFlushDelay)
		}
		cfg.flushDelay = d
		return nil
	})
}

// WithCloseTimeout sets how long Close waits for the background reader.
func WithCloseTimeout(d time.Duration) LinkOption {
	return linkOptFunc(func(cfg *LinkConfig) error {
		if d < MinCloseTimeout || d > MaxCloseTimeout {
			return fmt.Errorf("link: close timeout %s out of range [%s, %s]", d, MinCloseTimeout, MaxCloseTimeout)
		}
		cfg.closeTimeout = d
		return nil
	})
}

// WithReadBufferSize sets the maximum chunk size of a single read.
func WithReadBufferSize(n int) LinkOption {
	return linkOptFunc(func(cfg *LinkConfig) error {
		if n < MinReadBufferSize || n > MaxReadBufferSize {
			return fmt.Errorf("link: read buffer size %d out of range [%d, %d]", n, MinReadBufferSize, MaxReadBufferSize)
		}
		cfg.readBufferSize = n
		return nil
	})
}

// WithMinDumpFields sets how many "name : value" lines a READ_EEPROM dump
// must contain before it is accepted.
func WithMinDumpFields(n int) LinkOption {
	return linkOptFunc(func(cfg *LinkConfig) error {
		if n < 0 {
			return fmt.Errorf("link: min dump fields %d is negative", n)
		}
		cfg.minDumpFields = n
		return nil
	})
}

// WithOpener replaces the physical channel opener. The default is SerialOpener.
func WithOpener(o Opener) LinkOption {
	return linkOptFunc(func(cfg *LinkConfig) error {
		if o == nil {
			return errors.New("link: opener is nil")
		}
		cfg.opener = o
		return nil
	})
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) LinkOption {
	return linkOptFunc(func(cfg *LinkConfig) error {
		if l == nil {
			return errors.New("link: logger is nil")
		}
		cfg.logger = l
		return nil
	})
}
