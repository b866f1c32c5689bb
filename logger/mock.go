package logger

import (
	"github.com/stretchr/testify/mock"
)

// MockLogger is a testify mock implementing Logger.
type MockLogger struct {
	mock.Mock
}

var _ Logger = (*MockLogger)(nil)

func NewMockLogger() *MockLogger {
	return &MockLogger{}
}

// AllowAll registers permissive expectations for every logging method and
// returns the mock itself.
func (m *MockLogger) AllowAll() *MockLogger {
	for _, method := range []string{"Debug", "Info", "Warn", "Error"} {
		m.On(method, mock.Anything, mock.Anything).Return().Maybe()
	}
	return m
}

// Expect registers a single expected call of method ("Debug", "Info", "Warn"
// or "Error") with msg and any key/value pairs. Register expectations before
// AllowAll so they take precedence.
func (m *MockLogger) Expect(method, msg string) *mock.Call {
	return m.On(method, msg, mock.Anything).Return().Once()
}

// Messages returns the messages logged through method, in call order.
func (m *MockLogger) Messages(method string) []string {
	var msgs []string
	for _, call := range m.Calls {
		if call.Method != method || len(call.Arguments) == 0 {
			continue
		}
		if msg, ok := call.Arguments[0].(string); ok {
			msgs = append(msgs, msg)
		}
	}

	return msgs
}

func (m *MockLogger) Debug(msg string, keysAndValues ...any) {
	m.Called(msg, keysAndValues)
}

func (m *MockLogger) Info(msg string, keysAndValues ...any) {
	m.Called(msg, keysAndValues)
}

func (m *MockLogger) Warn(msg string, keysAndValues ...any) {
	m.Called(msg, keysAndValues)
}

func (m *MockLogger) Error(msg string, keysAndValues ...any) {
	m.Called(msg, keysAndValues)
}

func (m *MockLogger) Fatal(msg string, keysAndValues ...any) {
	m.Called(msg, keysAndValues)
}

func (m *MockLogger) SetLevel(level LogLevel) {
	m.Called(level)
}

func (m *MockLogger) Level() LogLevel {
	args := m.Called()
	return args.Get(0).(LogLevel)
}

// With returns the mock itself so expectations keep applying to child loggers.
func (m *MockLogger) With(_ ...any) Logger {
	return m
}
