package match

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"windrig/internal/geom"
	"windrig/internal/wind"
)

const dt = 20 * time.Millisecond

func newTestEngine() *Engine {
	return NewEngine(Config{
		Threshold:    0.8,
		JudgeWindow:  3 * time.Second,
		Speed:        2,
		FallVelocity: geom.V(0, -1, 0),
	})
}

// tiltWithSimilarity devolve uma inclinação com a similaridade pedida em relação ao norte
func tiltWithSimilarity(s float64) geom.Vec3 {
	return geom.V(math.Sqrt(1-s*s), 0.3, s)
}

func TestObserveThreshold(t *testing.T) {
	e := newTestEngine()

	v := e.Observe(tiltWithSimilarity(0.9), wind.North)
	assert.Equal(t, Matching, e.State())
	assert.InDelta(t, 0.9, e.LastSimilarity(), 1e-9)
	assert.Equal(t, wind.North.Velocity(2), v)

	v = e.Observe(tiltWithSimilarity(0.5), wind.North)
	assert.Equal(t, Unmatched, e.State())
	assert.Equal(t, geom.V(0, -1, 0), v)
}

func TestObserveUpWindNeverMatches(t *testing.T) {
	e := newTestEngine()
	e.Observe(geom.V(0, 1, 1), wind.Up)
	assert.Equal(t, Unmatched, e.State())
	assert.Equal(t, 0.0, e.LastSimilarity())
}

func TestSustainedMatchFinalizesExactlyOnce(t *testing.T) {
	e := newTestEngine()
	tilt := tiltWithSimilarity(0.9)

	finalizations := 0
	elapsed := time.Duration(0)
	for elapsed < 6*time.Second {
		e.Observe(tilt, wind.North)
		if e.Tick(dt) {
			finalizations++
			assert.Greater(t, elapsed+dt, 3*time.Second, "must not finalize before the judge window")
		}
		elapsed += dt

		if elapsed > 3*time.Second+dt {
			require.True(t, e.Finalized())
			require.True(t, e.FinalVerdict())
		}
	}

	assert.Equal(t, 1, finalizations)
	assert.True(t, e.FinalVerdict(), "verdict stays latched until the cycle resets")

	// um desalinhamento depois de finalizado não altera o veredito
	e.Observe(tiltWithSimilarity(0.1), wind.North)
	e.Tick(dt)
	assert.True(t, e.Finalized())
	assert.True(t, e.FinalVerdict())

	e.ResetCycle()
	assert.False(t, e.Finalized())
	assert.False(t, e.FinalVerdict())
	assert.Equal(t, Unmatched, e.State())
	assert.Equal(t, time.Duration(0), e.JudgeTimer())
}

func TestOscillatingMatchNeverFinalizes(t *testing.T) {
	e := newTestEngine()
	above := tiltWithSimilarity(0.85)
	below := tiltWithSimilarity(0.75)

	// 2.5s alinhado, 1 tick desalinhado, repetido por um ciclo longo
	for cycle := 0; cycle < 8; cycle++ {
		for i := 0; i < 125; i++ {
			e.Observe(above, wind.North)
			require.False(t, e.Tick(dt))
		}
		e.Observe(below, wind.North)
		require.False(t, e.Tick(dt))
		assert.Equal(t, time.Duration(0), e.JudgeTimer(), "judge timer resets when alignment is lost")
	}

	assert.False(t, e.Finalized())
	assert.False(t, e.FinalVerdict())
}

func TestHoldDropsAlignment(t *testing.T) {
	e := newTestEngine()
	e.Observe(tiltWithSimilarity(0.95), wind.North)
	e.Tick(dt)
	require.Equal(t, Matching, e.State())

	v := e.Hold()
	assert.Equal(t, Unmatched, e.State())
	assert.Equal(t, time.Duration(0), e.JudgeTimer())
	assert.Equal(t, geom.V(0, -1, 0), v)
}
