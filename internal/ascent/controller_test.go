package ascent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		StartUpHeight: 110,
		UpHeight:      130,
		LeadTime:      7 * time.Second,
		FallRate:      1,
	}
}

func TestPrepareHeight(t *testing.T) {
	assert.Equal(t, 117.0, testConfig().PrepareHeight())
}

func TestFastLinearDescentOrdering(t *testing.T) {
	c := NewController(testConfig())

	var seen []Transition
	h := 200.0
	for ; h > 100; h -= 5 {
		seen = append(seen, c.Update(h)...)
		switch {
		case h >= 117:
			require.Equal(t, Falling, c.Phase(), "h=%v", h)
			require.True(t, c.FreeControl())
		case h >= 110:
			require.Equal(t, PrepareAscent, c.Phase(), "h=%v", h)
			require.True(t, c.Locked())
			require.False(t, c.Rising())
		default:
			require.Equal(t, Ascending, c.Phase(), "h=%v", h)
			require.True(t, c.Rising())
		}
	}

	// subindo de volta até passar do topo
	for ; h <= 135; h += 5 {
		seen = append(seen, c.Update(h)...)
		if h <= 130 {
			require.Equal(t, Ascending, c.Phase(), "h=%v", h)
		}
	}
	assert.Equal(t, HoldAtTop, c.Phase())
	assert.False(t, c.Locked())

	require.Len(t, seen, 3)
	assert.Equal(t, Transition{From: Falling, To: PrepareAscent, Height: 115}, seen[0])
	assert.Equal(t, Transition{From: PrepareAscent, To: Ascending, Height: 105}, seen[1])
	assert.Equal(t, Transition{From: Ascending, To: HoldAtTop, Height: 135}, seen[2])
}

func TestSingleTickDropStillPassesThroughPrepare(t *testing.T) {
	c := NewController(testConfig())
	c.Update(150)

	got := c.Update(90)
	require.Len(t, got, 2)
	assert.Equal(t, PrepareAscent, got[0].To)
	assert.Equal(t, Ascending, got[1].To)
	assert.True(t, c.Locked())
}

func TestFinishFlag(t *testing.T) {
	c := NewController(testConfig())
	c.SignalFinish()
	assert.True(t, c.Finished())

	// entrar na janela de preparação zera o término
	c.Update(116)
	assert.False(t, c.Finished())

	c.SignalFinish()
	c.Update(120)
	assert.True(t, c.Finished(), "only the lead-time window clears the finish flag")
}

func TestReleaseFromHold(t *testing.T) {
	c := NewController(testConfig())
	assert.False(t, c.Release(), "release only applies to HoldAtTop")

	c.Update(100)
	c.Update(140)
	require.Equal(t, HoldAtTop, c.Phase())

	assert.True(t, c.Release())
	assert.Equal(t, Falling, c.Phase())
	assert.True(t, c.FreeControl())
	assert.Empty(t, c.Update(139))
}
