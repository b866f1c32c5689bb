package registry

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SDP-Group-CIE-04/ridlink/link"
)

// pipes opens a net.Pipe per port and keeps the device ends.
type pipes struct {
	mu      sync.Mutex
	devices map[string]net.Conn
	opens   map[string]int
	fail    map[string]error
	gate    map[string]chan struct{} // open blocks until the channel closes
}

func newPipes(t *testing.T) *pipes {
	p := &pipes{
		devices: make(map[string]net.Conn),
		opens:   make(map[string]int),
		fail:    make(map[string]error),
		gate:    make(map[string]chan struct{}),
	}
	t.Cleanup(func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		for _, c := range p.devices {
			_ = c.Close()
		}
	})

	return p
}

func (p *pipes) open(name string, _ int) (link.Port, error) {
	p.mu.Lock()
	gate := p.gate[name]
	p.mu.Unlock()
	if gate != nil {
		<-gate
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.fail[name]; err != nil {
		return nil, err
	}

	local, remote := net.Pipe()
	p.devices[name] = remote
	p.opens[name]++

	return local, nil
}

func (p *pipes) openCount(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.opens[name]
}

func newTestRegistry(t *testing.T) (*Registry, *pipes) {
	p := newPipes(t)
	reg := New(link.WithOpener(link.OpenerFunc(p.open)), link.WithSettleDelay(0))
	t.Cleanup(func() { _ = reg.CloseAll() })

	return reg, p
}

func TestRegistry_OpenReusesLink(t *testing.T) {
	reg, p := newTestRegistry(t)

	l1, err := reg.Open("/dev/ttyA", 0)
	require.NoError(t, err)
	l2, err := reg.Open("/dev/ttyA", 0)
	require.NoError(t, err)

	assert.Same(t, l1, l2)
	assert.Equal(t, 1, p.openCount("/dev/ttyA"))
	assert.Equal(t, 1, reg.Len())

	got, ok := reg.Get("/dev/ttyA")
	require.True(t, ok)
	assert.Same(t, l1, got)
}

func TestRegistry_OpenReopensClosedLink(t *testing.T) {
	reg, p := newTestRegistry(t)

	l1, err := reg.Open("/dev/ttyA", 0)
	require.NoError(t, err)
	require.NoError(t, l1.Close())

	l2, err := reg.Open("/dev/ttyA", 0)
	require.NoError(t, err)
	assert.Same(t, l1, l2)
	assert.Equal(t, link.StateOpen, l2.State())
	assert.Equal(t, 2, p.openCount("/dev/ttyA"))
}

func TestRegistry_FailedOpenIsNotStored(t *testing.T) {
	reg, p := newTestRegistry(t)
	boom := errors.New("boom")
	p.fail["/dev/ttyB"] = boom

	_, err := reg.Open("/dev/ttyB", 0)
	require.ErrorIs(t, err, boom)

	var cerr *link.ConnectionError
	require.ErrorAs(t, err, &cerr)

	_, ok := reg.Get("/dev/ttyB")
	assert.False(t, ok)
	assert.Zero(t, reg.Len())

	_, err = reg.Open("", 0)
	require.Error(t, err)
	assert.Zero(t, reg.Len())
}

func TestRegistry_Close(t *testing.T) {
	reg, _ := newTestRegistry(t)

	l, err := reg.Open("/dev/ttyA", 0)
	require.NoError(t, err)

	require.NoError(t, reg.Close("/dev/ttyA"))
	assert.Equal(t, link.StateClosed, l.State())
	assert.Zero(t, reg.Len())

	err = reg.Close("/dev/ttyA")
	require.ErrorIs(t, err, ErrUnknownPort)
	assert.Contains(t, err.Error(), "/dev/ttyA")
}

func TestRegistry_CloseAllAndRange(t *testing.T) {
	reg, _ := newTestRegistry(t)

	ports := []string{"/dev/ttyA", "/dev/ttyB", "/dev/ttyC"}
	for _, port := range ports {
		_, err := reg.Open(port, 0)
		require.NoError(t, err)
	}

	var seen []string
	reg.Range(func(portName string, l *link.Link) bool {
		assert.Equal(t, portName, l.PortName())
		seen = append(seen, portName)
		return true
	})
	assert.ElementsMatch(t, ports, seen)

	count := 0
	reg.Range(func(string, *link.Link) bool {
		count++
		return false
	})
	assert.Equal(t, 1, count)

	require.NoError(t, reg.CloseAll())
	assert.Zero(t, reg.Len())
}

func TestRegistry_ConcurrentOpen(t *testing.T) {
	reg, p := newTestRegistry(t)

	var wg sync.WaitGroup
	links := make([]*link.Link, 8)
	for i := range links {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			l, err := reg.Open("/dev/ttyA", 0)
			assert.NoError(t, err)
			links[i] = l
		}(i)
	}
	wg.Wait()

	for _, l := range links {
		assert.Same(t, links[0], l)
	}
	assert.Equal(t, 1, p.openCount("/dev/ttyA"))
}

func TestRegistry_SlowOpenDoesNotBlockOtherPorts(t *testing.T) {
	reg, p := newTestRegistry(t)

	release := make(chan struct{})
	p.gate["/dev/ttySLOW"] = release

	slowDone := make(chan error, 1)
	go func() {
		_, err := reg.Open("/dev/ttySLOW", 0)
		slowDone <- err
	}()
	require.Eventually(t, func() bool { return reg.Len() == 1 }, time.Second, time.Millisecond)

	// enough ports that some share a map bucket with the slow one
	var wg sync.WaitGroup
	for i := 0; i < 128; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := reg.Open(fmt.Sprintf("/dev/ttyF%d", i), 0)
			assert.NoError(t, err)
		}(i)
	}

	fastDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(fastDone)
	}()
	select {
	case <-fastDone:
	case <-time.After(5 * time.Second):
		close(release)
		t.Fatal("opening other ports waited for the slow open")
	}

	close(release)
	require.NoError(t, <-slowDone)
	assert.Equal(t, 129, reg.Len())
}

func TestRegistry_Collector(t *testing.T) {
	reg, _ := newTestRegistry(t)
	c := reg.Collector()

	assert.Zero(t, testutil.CollectAndCount(c))

	_, err := reg.Open("/dev/ttyA", 0)
	require.NoError(t, err)
	_, err = reg.Open("/dev/ttyB", 0)
	require.NoError(t, err)

	// seven counters and two gauges per link
	assert.Equal(t, 18, testutil.CollectAndCount(c))

	expected := `
# HELP ridlink_link_opens_total Number of successful opens.
# TYPE ridlink_link_opens_total counter
ridlink_link_opens_total{port="/dev/ttyA"} 1
ridlink_link_opens_total{port="/dev/ttyB"} 1
# HELP ridlink_link_up Whether the link is open.
# TYPE ridlink_link_up gauge
ridlink_link_up{port="/dev/ttyA"} 1
ridlink_link_up{port="/dev/ttyB"} 1
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected),
		"ridlink_link_opens_total", "ridlink_link_up"))
}
