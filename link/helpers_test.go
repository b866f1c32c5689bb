package link

import (
	"bufio"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/SDP-Group-CIE-04/ridlink/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	level, err := logger.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		level = logger.InfoLevel
	}
	logger.SetLevel(level)

	os.Exit(m.Run())
}

// fakeDevice is the module end of a net.Pipe.
type fakeDevice struct {
	conn net.Conn
	r    *bufio.Reader
}

// readLine returns the next command line without its newline.
func (d *fakeDevice) readLine() (string, error) {
	_ = d.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := d.r.ReadString('\n')

	return strings.TrimSuffix(line, "\n"), err
}

// send writes each chunk with a separate write.
func (d *fakeDevice) send(chunks ...string) error {
	for _, c := range chunks {
		_ = d.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
		if _, err := d.conn.Write([]byte(c)); err != nil {
			return err
		}
	}

	return nil
}

// respond answers the next command in the background after checking its line.
// It returns a channel that is closed once the reply has been written.
func (d *fakeDevice) respond(t *testing.T, wantLine string, chunks ...string) <-chan struct{} {
	t.Helper()

	done := make(chan struct{})
	go func() {
		defer close(done)

		line, err := d.readLine()
		if !assert.NoError(t, err) {
			return
		}
		assert.Equal(t, wantLine, line)
		assert.NoError(t, d.send(chunks...))
	}()

	return done
}

// pipeOpener hands out the link end of a fresh net.Pipe on every Open and
// publishes the device end on devices.
type pipeOpener struct {
	devices chan *fakeDevice
	bauds   chan int
	err     error
}

func newPipeOpener() *pipeOpener {
	return &pipeOpener{
		devices: make(chan *fakeDevice, 4),
		bauds:   make(chan int, 4),
	}
}

func (o *pipeOpener) Open(_ string, baudRate int) (Port, error) {
	if o.err != nil {
		return nil, o.err
	}

	local, remote := net.Pipe()
	o.bauds <- baudRate
	o.devices <- &fakeDevice{conn: remote, r: bufio.NewReader(remote)}

	return local, nil
}

func (o *pipeOpener) nextDevice(t *testing.T) *fakeDevice {
	t.Helper()

	select {
	case dev := <-o.devices:
		t.Cleanup(func() { _ = dev.conn.Close() })
		return dev
	case <-time.After(time.Second):
		t.Fatal("no device opened")
		return nil
	}
}

// newTestLink creates an open link with short timeouts and its fake device.
func newTestLink(t *testing.T, opts ...LinkOption) (*Link, *fakeDevice, *pipeOpener) {
	t.Helper()

	opener := newPipeOpener()
	defaults := []LinkOption{
		WithOpener(opener),
		WithStatusTimeout(500 * time.Millisecond),
		WithFieldsTimeout(200 * time.Millisecond),
		WithSetTimeout(500 * time.Millisecond),
		WithDumpTimeout(500 * time.Millisecond),
		WithSettleDelay(0),
		WithFlushDelay(20 * time.Millisecond),
		WithCloseTimeout(time.Second),
	}

	cfg, err := NewLinkConfig("/dev/ttyTEST0", append(defaults, opts...)...)
	require.NoError(t, err)

	l, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, l.Open(0))
	dev := opener.nextDevice(t)
	t.Cleanup(func() { _ = l.Close() })

	return l, dev, opener
}

// dumpReply builds a READ_EEPROM reply with n field lines.
func dumpReply(n int) string {
	var sb strings.Builder
	sb.WriteString("[EEPROM] Dump:\n")
	for i := 0; i < n; i++ {
		sb.WriteString("Field")
		sb.WriteByte(byte('A' + i))
		sb.WriteString(" : value")
		sb.WriteByte(byte('0' + i%10))
		sb.WriteString("\n")
	}
	sb.WriteString("Registered : YES\n")

	return sb.String()
}
