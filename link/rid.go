package link

import (
	"strings"
	"unicode/utf8"
)

const unknownPart = "UNKNOWN"

// GenerateRIDID derives a remote ID identifier from the operator id, the
// aircraft id and the module ESN, e.g. "RID-OP123-AC456-ESN00012".
//
// Each part is limited to eight characters and upper-cased. Non alphanumeric
// characters are dropped from the ESN. Empty parts become "UNKNOWN".
func GenerateRIDID(operatorID, aircraftID, esn string) string {
	return "RID-" + idPart(operatorID) + "-" + idPart(aircraftID) + "-" + esnPart(esn)
}

func idPart(s string) string {
	s = strings.ToUpper(truncate(s, 8))
	if s == "" {
		return unknownPart
	}

	return s
}

func esnPart(s string) string {
	s = strings.Map(func(r rune) rune {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return -1
	}, strings.ToUpper(s))

	s = truncate(s, 8)
	if s == "" {
		return unknownPart
	}

	return s
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}

	return string([]rune(s)[:n])
}
