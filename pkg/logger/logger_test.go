package logger

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   DEBUG,
		"INFO":    INFO,
		" warn ":  WARN,
		"warning": WARN,
		"error":   ERROR,
		"fatal":   FATAL,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
	assert.Equal(t, "warn", WARN.String())
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Init()
	SetOutput(&buf)
	defer SetOutput(nopWriter{})

	SetLevel(WARN)
	Infof("descartada %d", 1)
	Warnf("mantida %d", 2)

	out := buf.String()
	assert.NotContains(t, out, "descartada")
	assert.Contains(t, out, "WARN")
	assert.Contains(t, out, "mantida 2")
	assert.Contains(t, out, "logger_test.go")
}

func TestLimiter(t *testing.T) {
	l := NewLimiter(time.Second)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	ok, _ := l.allowAt(base)
	assert.True(t, ok)

	for i := 1; i <= 3; i++ {
		ok, _ = l.allowAt(base.Add(time.Duration(i) * 100 * time.Millisecond))
		assert.False(t, ok)
	}

	ok, suppressed := l.allowAt(base.Add(1500 * time.Millisecond))
	assert.True(t, ok)
	assert.Equal(t, 3, suppressed)

	l.Reset()
	ok, _ = l.allowAt(base.Add(1600 * time.Millisecond))
	assert.True(t, ok)
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestLimiterWarnfWritesOncePerInterval(t *testing.T) {
	var buf bytes.Buffer
	Init()
	SetOutput(&buf)
	defer SetOutput(nopWriter{})

	l := NewLimiter(time.Hour)
	for i := 0; i < 3; i++ {
		l.Warnf("porta %s sem resposta", "LF")
	}
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("porta LF sem resposta")))
}
