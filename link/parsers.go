package link

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/SDP-Group-CIE-04/ridlink/cmdqueue"
)

const (
	dumpHeader  = "[EEPROM] Dump:"
	dumpTrailer = "Registered"
	dumpSep     = " : "
)

var errNotObject = errors.New("not a JSON object")

// findJSONObject returns the first balanced {...} region of buf.
// Braces inside JSON strings are ignored, and a '{' that cannot open an
// object, such as one in boot noise, is skipped. ok is false while the object
// is still incomplete or when no '{' has arrived yet.
func findJSONObject(buf []byte) (obj []byte, ok bool) {
	start := -1
	for from := 0; start < 0; {
		idx := bytes.IndexByte(buf[from:], '{')
		if idx < 0 {
			return nil, false
		}
		if opensObject(buf[from+idx+1:]) {
			start = from + idx
		}
		from += idx + 1
	}

	depth := 0
	inString, escaped := false, false
	for i := start; i < len(buf); i++ {
		c := buf[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return buf[start : i+1], true
			}
		}
	}

	return nil, false
}

// opensObject reports whether rest, the bytes after a '{', can continue a
// JSON object: a member name or '}' after optional whitespace. An empty rest
// may still turn into one.
func opensObject(rest []byte) bool {
	rest = bytes.TrimLeft(rest, " \t\r\n")
	if len(rest) == 0 {
		return true
	}

	return rest[0] == '"' || rest[0] == '}'
}

func decodeObject(obj []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(obj))
	dec.UseNumber()

	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, errNotObject
	}

	return m, nil
}

// member returns the first present member of m as a string.
// Nested objects and arrays are rendered with fmt.
func member(m map[string]any, keys ...string) (string, bool) {
	for _, key := range keys {
		v, ok := m[key]
		if !ok || v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			return s, true
		}

		return fmt.Sprint(v), true
	}

	return "", false
}

// deviceError returns the message of an "error" member, if any.
func deviceError(m map[string]any) string {
	msg, ok := member(m, "error")
	if !ok {
		return ""
	}

	return strings.TrimSpace(msg)
}

// ParseStatus parses a GET_INFO reply: a JSON object that may be preceded by
// boot noise or split across reads.
func ParseStatus(buf []byte) cmdqueue.Outcome {
	obj, ok := findJSONObject(buf)
	if !ok {
		return cmdqueue.NeedMore()
	}

	m, err := decodeObject(obj)
	if err != nil {
		return cmdqueue.Fail(&MalformedResponseError{Command: CmdGetInfo, Raw: string(obj), Err: err})
	}
	if msg := deviceError(m); msg != "" {
		return cmdqueue.Fail(&DeviceReportedError{Command: CmdGetInfo, Message: msg})
	}

	st := &Status{ESN: "UNKNOWN", Status: "ready"}
	if esn, ok := member(m, "esn", "ESN"); ok && esn != "" {
		st.ESN = esn
	}
	if status, ok := member(m, "status"); ok && status != "" {
		st.Status = status
	}

	return cmdqueue.Accept(st)
}

// ParseFields parses a GET_FIELDS reply. Missing members yield empty fields.
func ParseFields(buf []byte) cmdqueue.Outcome {
	obj, ok := findJSONObject(buf)
	if !ok {
		return cmdqueue.NeedMore()
	}

	m, err := decodeObject(obj)
	if err != nil {
		return cmdqueue.Fail(&MalformedResponseError{Command: CmdGetFields, Raw: string(obj), Err: err})
	}
	if msg := deviceError(m); msg != "" {
		return cmdqueue.Fail(&DeviceReportedError{Command: CmdGetFields, Message: msg})
	}

	get := func(key string) string {
		s, _ := member(m, key)
		return strings.TrimSpace(s)
	}

	return cmdqueue.Accept(&Fields{
		OperatorID:   get("operator_id"),
		AircraftID:   get("aircraft_id"),
		RIDID:        get("rid_id"),
		SerialNumber: get("serial_number"),
	})
}

// FieldsOnTimeout treats silence from an unconfigured module as empty fields.
func FieldsOnTimeout(buf []byte) cmdqueue.Outcome {
	if len(bytes.TrimSpace(buf)) == 0 {
		return cmdqueue.Accept(&Fields{})
	}

	return cmdqueue.NeedMore()
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}

	return false
}

// ParseSetResponse parses a BASIC_SET reply.
//
// Error markers fail the command. Success markers accept it. A reply that
// looks like the start of a bracketed marker waits for more data, and any
// other non-empty text is accepted as is.
func ParseSetResponse(buf []byte) cmdqueue.Outcome {
	text := strings.TrimSpace(string(buf))
	if text == "" {
		return cmdqueue.NeedMore()
	}

	upper := strings.ToUpper(text)
	switch {
	case containsAny(upper, "[ERROR]", "[FAIL"):
		return cmdqueue.Fail(&DeviceReportedError{Command: CmdBasicSet, Message: text})
	case containsAny(upper, "[SUCCESS]", "[INFO]", "STORED", "PROCESSED"):
		return cmdqueue.Accept(&SetResult{
			Response: text,
			Stored:   containsAny(upper, "[SUCCESS]", "STORED"),
		})
	case strings.Contains(text, "[") || containsAny(upper, "INFO", "SUCCESS"):
		return cmdqueue.NeedMore()
	default:
		return cmdqueue.Accept(&SetResult{Response: text})
	}
}

// registrationStates are the values the trailer may carry.
var registrationStates = []string{"YES", "NO", "TEMPORARY", "PERMANENT"}

// completeTrailer reports whether line is a full trailer even without its
// newline. A prefix such as "Registered : YE" is not.
func completeTrailer(line string) bool {
	name, value, found := strings.Cut(strings.TrimSpace(line), dumpSep)
	if !found || strings.TrimSpace(name) != dumpTrailer {
		return false
	}

	return slices.Contains(registrationStates, strings.ToUpper(strings.TrimSpace(value)))
}

// NewDumpParser returns a parser for READ_EEPROM replies that requires the
// header line, at least minFields "name : value" lines and the
// "Registered : ..." trailer.
func NewDumpParser(minFields int) cmdqueue.ParseFunc {
	return func(buf []byte) cmdqueue.Outcome {
		// only newline-terminated lines are considered, except a complete trailer
		end := bytes.LastIndexByte(buf, '\n')
		if completeTrailer(string(buf[end+1:])) {
			end = len(buf)
		}
		if end < 0 {
			return cmdqueue.NeedMore()
		}
		text := string(buf[:end])

		hdr := strings.Index(text, dumpHeader)
		if hdr < 0 {
			if idx := strings.Index(strings.ToUpper(text), "[ERROR]"); idx >= 0 {
				return cmdqueue.Fail(&DeviceReportedError{
					Command: CmdReadEEPROM,
					Message: strings.TrimSpace(text[idx:]),
				})
			}
			return cmdqueue.NeedMore()
		}

		dump := &Dump{}
		trailerAt := -1
		offset := hdr
		for _, raw := range strings.SplitAfter(text[hdr:], "\n") {
			line := strings.TrimSpace(raw)
			offset += len(raw)
			if line == "" || strings.Contains(line, "[EEPROM]") {
				continue
			}

			name, value, found := strings.Cut(line, dumpSep)
			if !found {
				// "Registered :" with an empty value
				name, found = strings.CutSuffix(line, strings.TrimRight(dumpSep, " "))
				if !found {
					continue
				}
			}
			name, value = strings.TrimSpace(name), strings.TrimSpace(value)
			if name == dumpTrailer {
				dump.Registered = value
				trailerAt = offset
				break
			}
			dump.Fields = append(dump.Fields, DumpField{Name: name, Value: value})
		}

		if trailerAt < 0 || len(dump.Fields) < minFields {
			return cmdqueue.NeedMore()
		}
		dump.Raw = strings.TrimSpace(text[hdr:trailerAt])

		return cmdqueue.Accept(dump)
	}
}
