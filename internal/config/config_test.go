package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := getDefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 115200, cfg.Serial.BaudRate)
	assert.Equal(t, 5*time.Second, cfg.Control.CyclePeriod.Duration)
	assert.Equal(t, 3*time.Second, cfg.Control.JudgeWindow.Duration)
	assert.Equal(t, 0.8, cfg.Control.SimilarityThreshold)
	assert.Equal(t, 7*time.Second, cfg.Control.UpReadyTime.Duration)
}

func TestPortsOrder(t *testing.T) {
	cfg := getDefaultConfig()
	ports := cfg.Serial.Ports()
	require.Len(t, ports, 6)
	assert.Equal(t, PortEntry{Name: "LF", Device: "COM1"}, ports[0])
	assert.Equal(t, PortEntry{Name: "KASA", Device: "COM6"}, ports[TelemetryChannel])
}

func TestLoadFileMergesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body := `{
		"serial": {"lf": "/dev/ttyUSB0", "retryDelay": "50ms"},
		"control": {"windMode": "demo", "cyclePeriod": "8s"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", cfg.Serial.LF)
	assert.Equal(t, "COM2", cfg.Serial.RF)
	assert.Equal(t, 50*time.Millisecond, cfg.Serial.RetryDelay.Duration)
	assert.Equal(t, "demo", cfg.Control.WindMode)
	assert.Equal(t, 8*time.Second, cfg.Control.CyclePeriod.Duration)
	assert.Equal(t, 3*time.Second, cfg.Control.JudgeWindow.Duration)
}

func TestLoadFileMissingUsesDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("WINDRIG_PORT_KASA", "/dev/ttyACM0")
	t.Setenv("WINDRIG_BAUD", "9600")
	t.Setenv("WINDRIG_DEMO", "true")
	t.Setenv("WINDRIG_SERVER_PORT", "9090")
	t.Setenv("WINDRIG_LOG_LEVEL", "DEBUG")

	cfg, err := LoadFile(filepath.Join(t.TempDir(), "none.json"))
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyACM0", cfg.Serial.Kasa)
	assert.Equal(t, 9600, cfg.Serial.BaudRate)
	assert.Equal(t, "demo", cfg.Control.WindMode)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestValidateReturnsConfigError(t *testing.T) {
	cases := map[string]func(c *Config){
		"empty port":      func(c *Config) { c.Serial.NF = " " },
		"bad wind mode":   func(c *Config) { c.Control.WindMode = "chaos" },
		"short cycle":     func(c *Config) { c.Control.CyclePeriod = d(time.Second) },
		"inverted height": func(c *Config) { c.Control.UpHeight = 100 },
		"threshold":       func(c *Config) { c.Control.SimilarityThreshold = 1.5 },
		"server port":     func(c *Config) { c.Server.Port = 0 },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := getDefaultConfig()
			mutate(&cfg)
			var cerr *ConfigError
			assert.True(t, errors.As(cfg.Validate(), &cerr))
		})
	}
}

func TestDurationJSON(t *testing.T) {
	var v struct {
		A Duration `json:"a"`
		B Duration `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"1.5s","b":20000000}`), &v))
	assert.Equal(t, 1500*time.Millisecond, v.A.Duration)
	assert.Equal(t, 20*time.Millisecond, v.B.Duration)

	out, err := json.Marshal(v.A)
	require.NoError(t, err)
	assert.JSONEq(t, `"1.5s"`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"a":"soon"}`), &v))
}
