package link

import (
	"context"
	"strings"

	"github.com/SDP-Group-CIE-04/ridlink/cmdqueue"
	"github.com/SDP-Group-CIE-04/ridlink/internal/pool"
)

// QueryStatus sends GET_INFO and returns the module ESN and status.
func (l *Link) QueryStatus(ctx context.Context) (*Status, error) {
	v, err := l.execute(ctx, cmdqueue.Command{
		Name:    CmdGetInfo,
		Parse:   ParseStatus,
		Timeout: l.cfg.statusTimeout,
	}, CmdGetInfo+"\n")
	if err != nil {
		return nil, err
	}

	return v.(*Status), nil
}

// QueryFields sends GET_FIELDS and returns the stored identity fields.
// A module that stays silent is reported as having empty fields.
func (l *Link) QueryFields(ctx context.Context) (*Fields, error) {
	v, err := l.execute(ctx, cmdqueue.Command{
		Name:      CmdGetFields,
		Parse:     ParseFields,
		Timeout:   l.cfg.fieldsTimeout,
		OnTimeout: FieldsOnTimeout,
	}, CmdGetFields+"\n")
	if err != nil {
		return nil, err
	}

	return v.(*Fields), nil
}

// SetFields sends BASIC_SET with fs and, once the module accepts, waits for
// the settle delay so the EEPROM write can complete.
//
// An empty RIDID is generated from the operator and aircraft ids and the
// serial number, or the module ESN reported by GET_INFO when no serial
// number is given.
func (l *Link) SetFields(ctx context.Context, fs FieldSet) (*SetResult, error) {
	if err := fs.validate(); err != nil {
		return nil, err
	}

	if fs.RIDID == "" {
		esn := fs.SerialNumber
		if esn == "" {
			st, err := l.QueryStatus(ctx)
			if err != nil {
				return nil, err
			}
			esn = st.ESN
		}
		fs.RIDID = GenerateRIDID(fs.OperatorID, fs.AircraftID, esn)
	}

	line, err := fs.line()
	if err != nil {
		return nil, err
	}

	v, err := l.execute(ctx, cmdqueue.Command{
		Name:    CmdBasicSet,
		Parse:   l.settleOnAccept(ParseSetResponse),
		Timeout: l.cfg.setTimeout,
	}, line)
	if err != nil {
		return nil, err
	}

	res := v.(*SetResult)
	res.Command = strings.TrimSuffix(line, "\n")

	_ = pool.Sleep(ctx, l.cfg.settleDelay)

	return res, nil
}

// settleOnAccept arms the quiet window when parse accepts. The processor
// promotes the next command only after the parser returns, so its write
// already observes the window.
func (l *Link) settleOnAccept(parse cmdqueue.ParseFunc) cmdqueue.ParseFunc {
	return func(buf []byte) cmdqueue.Outcome {
		out := parse(buf)
		if out.IsAccepted() {
			l.holdQuiet(l.cfg.settleDelay)
		}

		return out
	}
}

// ReadDump sends READ_EEPROM and returns the parsed memory dump.
func (l *Link) ReadDump(ctx context.Context) (*Dump, error) {
	v, err := l.execute(ctx, cmdqueue.Command{
		Name:    CmdReadEEPROM,
		Parse:   NewDumpParser(l.cfg.minDumpFields),
		Timeout: l.cfg.dumpTimeout,
	}, CmdReadEEPROM+"\n")
	if err != nil {
		return nil, err
	}

	return v.(*Dump), nil
}
