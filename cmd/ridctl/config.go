package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/SDP-Group-CIE-04/ridlink/link"
	"github.com/SDP-Group-CIE-04/ridlink/logger"
)

// ridctl config.toml keys.
type fileConfig struct {
	Port          string        `toml:"port"`
	BaudRate      int           `toml:"baud_rate"`
	LogLevel      string        `toml:"log_level"`
	StatusTimeout time.Duration `toml:"status_timeout"`
	FieldsTimeout time.Duration `toml:"fields_timeout"`
	SetTimeout    time.Duration `toml:"set_timeout"`
	DumpTimeout   time.Duration `toml:"dump_timeout"`
	SettleDelay   time.Duration `toml:"settle_delay"`
}

type config struct {
	Port          string
	BaudRate      int
	LogLevel      logger.LogLevel
	StatusTimeout time.Duration
	FieldsTimeout time.Duration
	SetTimeout    time.Duration
	DumpTimeout   time.Duration
	SettleDelay   time.Duration
}

func defaultConfig() config {
	return config{
		BaudRate:      link.DefaultBaudRate,
		LogLevel:      logger.InfoLevel,
		StatusTimeout: link.DefaultStatusTimeout,
		FieldsTimeout: link.DefaultFieldsTimeout,
		SetTimeout:    link.DefaultSetTimeout,
		DumpTimeout:   link.DefaultDumpTimeout,
		SettleDelay:   link.DefaultSettleDelay,
	}
}

// loadConfig overlays the keys defined in the TOML file at path onto cfg.
func loadConfig(path string, cfg *config) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load ridctl config: %w", err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("load ridctl config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("port") {
		cfg.Port = strings.TrimSpace(raw.Port)
	}
	if meta.IsDefined("baud_rate") {
		cfg.BaudRate = raw.BaudRate
	}
	if meta.IsDefined("log_level") {
		level, err := logger.ParseLevel(raw.LogLevel)
		if err != nil {
			return fmt.Errorf("load ridctl config: %w", err)
		}
		cfg.LogLevel = level
	}
	if meta.IsDefined("status_timeout") {
		cfg.StatusTimeout = raw.StatusTimeout
	}
	if meta.IsDefined("fields_timeout") {
		cfg.FieldsTimeout = raw.FieldsTimeout
	}
	if meta.IsDefined("set_timeout") {
		cfg.SetTimeout = raw.SetTimeout
	}
	if meta.IsDefined("dump_timeout") {
		cfg.DumpTimeout = raw.DumpTimeout
	}
	if meta.IsDefined("settle_delay") {
		cfg.SettleDelay = raw.SettleDelay
	}

	return nil
}

// linkConfig validates cfg through the link options.
func (c config) linkConfig(opts ...link.LinkOption) (*link.LinkConfig, error) {
	if c.Port == "" {
		return nil, fmt.Errorf("%w: no port given, use -port or the port key", errUsage)
	}

	base := []link.LinkOption{
		link.WithBaudRate(c.BaudRate),
		link.WithStatusTimeout(c.StatusTimeout),
		link.WithFieldsTimeout(c.FieldsTimeout),
		link.WithSetTimeout(c.SetTimeout),
		link.WithDumpTimeout(c.DumpTimeout),
		link.WithSettleDelay(c.SettleDelay),
	}

	return link.NewLinkConfig(c.Port, append(base, opts...)...)
}
