package discovery

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"windrig/internal/config"
)

func TestInstanceNameUsesBase(t *testing.T) {
	assert.True(t, strings.HasPrefix(InstanceName("cabine"), "cabine"))
	assert.True(t, strings.HasPrefix(InstanceName(""), "windrig"))
}

func TestTXTRecords(t *testing.T) {
	s := NewDiscoveryService(config.DiscoveryConfig{Instance: "cabine"}, 8080, "sess-1")
	txt := s.TXTRecords("10.0.0.5")

	assert.Contains(t, txt, "ip=10.0.0.5")
	assert.Contains(t, txt, "session=sess-1")
	assert.Contains(t, txt, "version="+Version)
}

func TestDisabledDoesNotRegister(t *testing.T) {
	s := NewDiscoveryService(config.DiscoveryConfig{Enabled: false}, 8080, "x")
	require.NoError(t, s.Start())
	assert.False(t, s.IsRunning())
	s.Stop()
}
