// Package link talks to a remote ID broadcast module over a serial line.
//
// The module speaks a line-oriented text protocol: the host writes a command
// terminated by a newline, and the module answers with a JSON object
// (GET_INFO, GET_FIELDS), a bracketed status line (BASIC_SET) or a multi-line
// report (READ_EEPROM). Replies arrive in arbitrary chunks and may be
// preceded by boot noise, so every reply is parsed from the cumulative
// receive buffer by a cmdqueue.ParseFunc.
//
// Typical usage:
//
//	cfg, err := link.NewLinkConfig("/dev/ttyUSB0")
//	if err != nil {
//		return err
//	}
//	l, _ := link.New(cfg)
//	if err := l.Open(0); err != nil {
//		return err
//	}
//	defer l.Close()
//
//	status, err := l.QueryStatus(ctx)
//
// Errors are typed. *ConnectionError is fatal to the link, *TimeoutError,
// *MalformedResponseError and *DeviceReportedError affect a single command.
package link
