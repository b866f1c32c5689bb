package link

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateRIDID(t *testing.T) {
	tests := []struct {
		op, ac, esn string
		want        string
	}{
		{"op123", "ac456", "esn-0001", "RID-OP123-AC456-ESN0001"},
		{"operator-long-name", "aircraft-long", "a1:b2:c3:d4:e5", "RID-OPERATOR-AIRCRAFT-A1B2C3D4"},
		{"", "", "", "RID-UNKNOWN-UNKNOWN-UNKNOWN"},
		{"op", "ac", "--::", "RID-OP-AC-UNKNOWN"},
		{"ñandú-operator", "x", "1", "RID-ÑANDÚ-OP-X-1"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, GenerateRIDID(tt.op, tt.ac, tt.esn))
	}
}
