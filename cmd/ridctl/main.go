// Command ridctl queries and configures a remote ID module over a serial port.
//
// Usage:
//
//	ridctl [-config file.toml] [-port P] [-baud N] [-log-level L] <command> [flags]
//
// Commands:
//
//	info    print the module ESN and status
//	fields  print the stored operator, aircraft and RID ids
//	set     store identity fields (-operator, -aircraft, -rid, -serial)
//	dump    print the EEPROM dump
//	ports   list the serial ports known to the OS
//	rid     print the RID id generated from -operator, -aircraft and -esn
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/SDP-Group-CIE-04/ridlink/link"
	"github.com/SDP-Group-CIE-04/ridlink/logger"
)

var errUsage = errors.New("usage")

type app struct {
	stdout io.Writer
	stderr io.Writer
	// opener overrides the serial opener when set.
	opener link.Opener
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{stdout: os.Stdout, stderr: os.Stderr}
	if err := a.run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "ridctl: %v\n", err)
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func (a *app) run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("ridctl", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	configPath := fs.String("config", "", "path to a TOML config file")
	port := fs.String("port", "", "serial port, e.g. /dev/ttyUSB0 or COM3")
	baud := fs.Int("baud", 0, "baud rate")
	logLevel := fs.String("log-level", "", "debug, info, warn or error")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}

	cfg := defaultConfig()
	if *configPath != "" {
		if err := loadConfig(*configPath, &cfg); err != nil {
			return err
		}
	}

	var flagErr error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Port = *port
		case "baud":
			cfg.BaudRate = *baud
		case "log-level":
			level, err := logger.ParseLevel(*logLevel)
			if err != nil {
				flagErr = fmt.Errorf("%w: %w", errUsage, err)
			}
			cfg.LogLevel = level
		}
	})
	if flagErr != nil {
		return flagErr
	}

	logger.SetLogger(logger.NewSlogWriter(a.stderr, cfg.LogLevel, false, os.Getenv("ENV") == "development"))

	if fs.NArg() == 0 {
		fs.Usage()
		return fmt.Errorf("%w: missing command", errUsage)
	}
	cmd, cmdArgs := fs.Arg(0), fs.Args()[1:]

	switch cmd {
	case "rid":
		return a.runRID(cmdArgs)
	case "ports":
		ports, err := link.ListPorts()
		if err != nil {
			return err
		}
		return a.print(ports)
	case "info", "fields", "set", "dump":
		return a.runLink(ctx, cfg, cmd, cmdArgs)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func (a *app) runRID(args []string) error {
	fs := flag.NewFlagSet("rid", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	operator := fs.String("operator", "", "operator id")
	aircraft := fs.String("aircraft", "", "aircraft id")
	esn := fs.String("esn", "", "module ESN")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}

	return a.print(map[string]string{"rid_id": link.GenerateRIDID(*operator, *aircraft, *esn)})
}

func (a *app) runLink(ctx context.Context, cfg config, cmd string, args []string) error {
	var fieldSet link.FieldSet
	if cmd == "set" {
		fs := flag.NewFlagSet("set", flag.ContinueOnError)
		fs.SetOutput(a.stderr)
		fs.StringVar(&fieldSet.OperatorID, "operator", "", "operator id")
		fs.StringVar(&fieldSet.AircraftID, "aircraft", "", "aircraft id")
		fs.StringVar(&fieldSet.RIDID, "rid", "", "RID id, generated when empty")
		fs.StringVar(&fieldSet.SerialNumber, "serial", "", "serial number")
		if err := fs.Parse(args); err != nil {
			return fmt.Errorf("%w: %w", errUsage, err)
		}
	}

	var opts []link.LinkOption
	if a.opener != nil {
		opts = append(opts, link.WithOpener(a.opener))
	}
	linkCfg, err := cfg.linkConfig(opts...)
	if err != nil {
		return err
	}

	l, err := link.New(linkCfg)
	if err != nil {
		return err
	}
	if err := l.Open(0); err != nil {
		return err
	}
	defer func() {
		if err := l.Close(); err != nil {
			logger.Warn("ridctl: close link", "error", err)
		}
	}()

	var result any
	switch cmd {
	case "info":
		result, err = l.QueryStatus(ctx)
	case "fields":
		result, err = l.QueryFields(ctx)
	case "set":
		result, err = l.SetFields(ctx, fieldSet)
	case "dump":
		result, err = l.ReadDump(ctx)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", cmd, err)
	}

	return a.print(result)
}

func (a *app) print(v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}
