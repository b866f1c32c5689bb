package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    LogLevel
		wantErr bool
	}{
		{name: "debug", input: "debug", want: DebugLevel},
		{name: "upper case", input: "WARN", want: WarnLevel},
		{name: "warning alias", input: "warning", want: WarnLevel},
		{name: "empty defaults to info", input: "", want: InfoLevel},
		{name: "error", input: " error ", want: ErrorLevel},
		{name: "unknown", input: "verbose", want: InfoLevel, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSlogLogger_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogWriter(&buf, InfoLevel, false, false)

	l.Debug("hidden")
	require.Zero(t, buf.Len())

	l.With("port", "/dev/ttyUSB0").Info("link opened", "baud", 115200)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "link opened", rec["msg"])
	assert.Equal(t, "/dev/ttyUSB0", rec["port"])
	assert.EqualValues(t, 115200, rec["baud"])
	assert.Contains(t, rec, "ts")
}

func TestSlogLogger_SetLevelSharedWithChild(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogWriter(&buf, ErrorLevel, false, false)
	child := l.With("component", "test")

	child.Warn("dropped")
	require.Zero(t, buf.Len())

	l.SetLevel(DebugLevel)
	assert.Equal(t, DebugLevel, child.Level())

	child.Debug("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestSlogLogger_ConsoleOutput(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogWriter(&buf, InfoLevel, false, true)

	l.Info("console record", "cmd", "GET_INFO")
	assert.Contains(t, buf.String(), "console record")
	assert.Contains(t, buf.String(), "GET_INFO")
}

func TestLogLevel_String(t *testing.T) {
	assert.Equal(t, "debug", DebugLevel.String())
	assert.Equal(t, "fatal", FatalLevel.String())
	assert.Equal(t, "LogLevel(9)", LogLevel(9).String())
}
