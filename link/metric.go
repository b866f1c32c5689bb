package link

import "sync/atomic"

// LinkMetrics contains atomic counters for a link.
// They are exported to Prometheus by the registry package.
type LinkMetrics struct {
	// BytesSent indicates the number of bytes written to the device.
	BytesSent atomic.Uint64
	// BytesRecv indicates the number of bytes read from the device.
	BytesRecv atomic.Uint64

	// CommandCount indicates the number of commands submitted.
	CommandCount atomic.Uint64
	// CommandErrCount indicates the number of commands that ended with an error,
	// timeouts included.
	CommandErrCount atomic.Uint64
	// CommandTimeoutCount indicates the number of commands that timed out.
	CommandTimeoutCount atomic.Uint64

	// OpenCount indicates the number of successful opens.
	OpenCount atomic.Uint64
	// LinkFailureCount indicates the number of transport failures that closed the link.
	LinkFailureCount atomic.Uint64
}

func (m *LinkMetrics) addBytesSent(n int) {
	m.BytesSent.Add(uint64(n))
}

func (m *LinkMetrics) addBytesRecv(n int) {
	m.BytesRecv.Add(uint64(n))
}

func (m *LinkMetrics) incCommandCount() {
	m.CommandCount.Add(1)
}

func (m *LinkMetrics) incCommandErrCount() {
	m.CommandErrCount.Add(1)
}

func (m *LinkMetrics) incCommandTimeoutCount() {
	m.CommandTimeoutCount.Add(1)
}

func (m *LinkMetrics) incOpenCount() {
	m.OpenCount.Add(1)
}

func (m *LinkMetrics) incLinkFailureCount() {
	m.LinkFailureCount.Add(1)
}
