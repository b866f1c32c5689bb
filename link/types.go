package link

import (
	"fmt"
	"strings"
)

// Wire command names.
const (
	CmdGetInfo    = "GET_INFO"
	CmdGetFields  = "GET_FIELDS"
	CmdBasicSet   = "BASIC_SET"
	CmdReadEEPROM = "READ_EEPROM"
)

// Status is the GET_INFO reply.
type Status struct {
	ESN    string `json:"esn"`
	Status string `json:"status"`
}

// Fields holds the identity fields stored on the module.
// A module that has never been configured reports all of them empty.
type Fields struct {
	OperatorID   string `json:"operator_id"`
	AircraftID   string `json:"aircraft_id"`
	RIDID        string `json:"rid_id"`
	SerialNumber string `json:"serial_number,omitempty"`
}

// IsEmpty reports whether no identity field is set.
func (f *Fields) IsEmpty() bool {
	return f.OperatorID == "" && f.AircraftID == "" && f.RIDID == "" && f.SerialNumber == ""
}

// FieldSet is the input of a BASIC_SET command.
type FieldSet struct {
	OperatorID string
	AircraftID string
	// RIDID is generated with GenerateRIDID when empty.
	RIDID string
	// SerialNumber is optional and omitted from the command when empty.
	SerialNumber string
}

// validate checks the required fields and rejects values that would break
// the key=value|key=value framing.
func (fs FieldSet) validate() error {
	if fs.OperatorID == "" {
		return fmt.Errorf("%w: operator_id", ErrMissingField)
	}
	if fs.AircraftID == "" {
		return fmt.Errorf("%w: aircraft_id", ErrMissingField)
	}

	for _, kv := range fs.pairs() {
		if strings.ContainsAny(kv[1], "|=\r\n") {
			return fmt.Errorf("%w: %s contains a reserved character", ErrInvalidFieldValue, kv[0])
		}
	}

	return nil
}

func (fs FieldSet) pairs() [][2]string {
	pairs := [][2]string{
		{"operator_id", fs.OperatorID},
		{"aircraft_id", fs.AircraftID},
	}
	if fs.SerialNumber != "" {
		pairs = append(pairs, [2]string{"serial_number", fs.SerialNumber})
	}

	return append(pairs, [2]string{"rid_id", fs.RIDID})
}

// line renders the BASIC_SET command line, newline included.
func (fs FieldSet) line() (string, error) {
	if err := fs.validate(); err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(CmdBasicSet)
	sb.WriteByte(' ')
	for i, kv := range fs.pairs() {
		if i > 0 {
			sb.WriteByte('|')
		}
		sb.WriteString(kv[0])
		sb.WriteByte('=')
		sb.WriteString(kv[1])
	}
	sb.WriteByte('\n')

	return sb.String(), nil
}

// SetResult is the outcome of an accepted BASIC_SET.
type SetResult struct {
	// Command is the command line sent, without the trailing newline.
	Command string `json:"command"`
	// Response is the trimmed device reply.
	Response string `json:"response"`
	// Stored reports whether the reply confirmed an EEPROM write.
	Stored bool `json:"stored"`
}

// DumpField is one "name : value" line of an EEPROM dump.
type DumpField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Dump is the READ_EEPROM reply.
type Dump struct {
	Fields     []DumpField `json:"fields"`
	Registered string      `json:"registered"`
	Raw        string      `json:"raw"`
}

// Get returns the value of the first field with the given name.
func (d *Dump) Get(name string) (string, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}

	return "", false
}
