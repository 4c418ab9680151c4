package serial

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"windrig/internal/config"
)

// mockPort entrega as linhas enviadas em lines e bloqueia até receber mais
type mockPort struct {
	lines     chan string
	closed    chan struct{}
	closeOnce sync.Once
	pending   []byte

	mutex   sync.Mutex
	written []string
}

func newMockPort() *mockPort {
	return &mockPort{lines: make(chan string, 16), closed: make(chan struct{})}
}

func (m *mockPort) Read(p []byte) (int, error) {
	if len(m.pending) == 0 {
		select {
		case l := <-m.lines:
			m.pending = []byte(l)
		case <-m.closed:
			return 0, io.EOF
		}
	}
	n := copy(p, m.pending)
	m.pending = m.pending[n:]
	return n, nil
}

func (m *mockPort) Write(p []byte) (int, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.written = append(m.written, string(p))
	return len(p), nil
}

func (m *mockPort) Close() error {
	m.closeOnce.Do(func() { close(m.closed) })
	return nil
}

func (m *mockPort) Written() []string {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return append([]string(nil), m.written...)
}

// failingPort falha em toda leitura
type failingPort struct {
	reads atomic.Int64
}

func (f *failingPort) Read(p []byte) (int, error) {
	f.reads.Add(1)
	return 0, errors.New("dispositivo desconectado")
}

func (f *failingPort) Write(p []byte) (int, error) { return 0, errors.New("dispositivo desconectado") }
func (f *failingPort) Close() error               { return nil }

func openerFor(ports map[string]Port) Opener {
	return func(device string, baud int) (Port, error) {
		p, ok := ports[device]
		if !ok {
			return nil, errors.New("não encontrado")
		}
		return p, nil
	}
}

func TestOpenRequiresPorts(t *testing.T) {
	_, err := Open(nil, Options{})
	var cerr *config.ConfigError
	assert.True(t, errors.As(err, &cerr))
}

func TestFailingChannelDoesNotBlockSiblings(t *testing.T) {
	bad := &failingPort{}
	good := newMockPort()

	tr, err := Open(
		[]PortConfig{{Name: "LF", Device: "bad"}, {Name: "KASA", Device: "good"}},
		Options{RetryDelay: time.Millisecond, Opener: openerFor(map[string]Port{"bad": bad, "good": good})},
	)
	require.NoError(t, err)
	defer tr.Close()

	good.lines <- "1,2,3,a\r\n"
	good.lines <- "4,5,"
	good.lines <- "6,b\n"

	var events []Event
	require.Eventually(t, func() bool {
		events = append(events, tr.Poll()...)
		return len(events) >= 2
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, 1, events[0].Channel)
	assert.Equal(t, "KASA", events[0].Name)
	assert.Equal(t, "1,2,3,a", events[0].Line)
	assert.Equal(t, "4,5,6,b", events[1].Line)

	require.Eventually(t, func() bool { return bad.reads.Load() > 5 }, 2*time.Second, 5*time.Millisecond,
		"failing channel keeps retrying")
	assert.Greater(t, tr.Stats()[0].ReadErrors, uint64(0))
}

func TestWrite(t *testing.T) {
	port := newMockPort()
	tr, err := Open([]PortConfig{{Name: "LF", Device: "a"}, {Name: "RF", Device: "missing"}},
		Options{ReconnectDelay: time.Hour, Opener: openerFor(map[string]Port{"a": port})})
	require.NoError(t, err)

	require.NoError(t, tr.Write(0, "43b"))
	assert.Equal(t, []string{"43b"}, port.Written(), "no line terminator is appended")

	var ioErr *IOError
	err = tr.Write(1, "43b")
	require.True(t, errors.As(err, &ioErr))
	assert.True(t, errors.Is(err, ErrNotOpen))
	assert.Equal(t, "write", ioErr.Op)

	assert.True(t, errors.Is(tr.Write(7, "x"), ErrUnknownChannel))

	tr.Close()
	assert.True(t, errors.Is(tr.Write(0, "43b"), ErrClosed))
}

func TestReconnectAfterOpenFailure(t *testing.T) {
	port := newMockPort()
	var attempts atomic.Int64
	opener := func(device string, baud int) (Port, error) {
		if attempts.Add(1) < 3 {
			return nil, errors.New("porta ocupada")
		}
		return port, nil
	}

	tr, err := Open([]PortConfig{{Name: "NF", Device: "x"}}, Options{ReconnectDelay: 5 * time.Millisecond, Opener: opener})
	require.NoError(t, err)
	defer tr.Close()

	assert.False(t, tr.Stats()[0].Open)
	require.Eventually(t, func() bool { return tr.Stats()[0].Open }, 2*time.Second, 5*time.Millisecond)

	port.lines <- "hello\n"
	require.Eventually(t, func() bool { return len(tr.Poll()) == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestFullQueueDropsNewestLines(t *testing.T) {
	port := newMockPort()
	tr, err := Open([]PortConfig{{Name: "KASA", Device: "k"}}, Options{QueueSize: 2, Opener: openerFor(map[string]Port{"k": port})})
	require.NoError(t, err)
	defer tr.Close()

	for _, l := range []string{"a\n", "b\n", "c\n", "d\n", "e\n"} {
		port.lines <- l
	}

	require.Eventually(t, func() bool { return tr.Stats()[0].Dropped == 3 }, 2*time.Second, 5*time.Millisecond)
	events := tr.Poll()
	require.Len(t, events, 2)
	assert.Equal(t, "a", events[0].Line)
	assert.Equal(t, "b", events[1].Line)
	assert.Equal(t, uint64(2), tr.Stats()[0].Received)
}

func TestCloseJoinsReadersAndIsIdempotent(t *testing.T) {
	port := newMockPort()
	tr, err := Open([]PortConfig{{Name: "LF", Device: "a"}}, Options{Opener: openerFor(map[string]Port{"a": port})})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		tr.Close()
		tr.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return")
	}
	assert.False(t, tr.Stats()[0].Open)
	assert.Empty(t, tr.Poll())
}
