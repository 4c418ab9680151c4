package motion

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTelemetry(t *testing.T) {
	s, err := ParseTelemetry("12.7,-3.9,40,b\r\n")
	require.NoError(t, err)
	assert.Equal(t, RawSample{X: 12, Y: -3, Z: 40, Button: 'b'}, s)
}

func TestParseTelemetryRejectsMalformedLines(t *testing.T) {
	cases := map[string]string{
		"too few fields":  "1,2,3",
		"too many fields": "1,2,3,a,5",
		"not numeric":     "1,abc,3,a",
		"not finite":      "NaN,2,3,a",
		"empty button":    "1,2,3, ",
		"long button":     "1,2,3,ab",
		"empty line":      "",
	}

	for name, line := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseTelemetry(line)
			var perr *ParseError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, line, perr.Line)
		})
	}
}

func TestFilterPublishesOnlyCompleteBatches(t *testing.T) {
	f := NewFilter(3)

	assert.False(t, f.Ingest(RawSample{X: 10, Y: 20, Button: 'n'}))
	assert.False(t, f.Ingest(RawSample{X: 20, Y: 40, Button: 'n'}))
	assert.False(t, f.Ready())
	assert.Equal(t, 2, f.Pending())
	assert.Equal(t, 'n', f.Button(), "button follows every sample")

	assert.True(t, f.Ingest(RawSample{X: 30, Y: 60, Button: 'b'}))
	assert.True(t, f.Ready())
	assert.Equal(t, 0, f.Pending())

	// rotação aplicada = última amostra, com eixos trocados e invertidos
	assert.Equal(t, Rotation{X: -60, Z: -30}, f.Sample())
	assert.Equal(t, Rotation{X: -40, Z: -20}, f.Average())
	assert.Equal(t, uint64(1), f.Batches())
}

func TestFilterDiscardsPartialBatch(t *testing.T) {
	f := NewFilter(3)
	for i := 0; i < 3; i++ {
		f.Ingest(RawSample{X: 1, Y: 1})
	}
	published := f.Sample()

	f.Ingest(RawSample{X: 90, Y: 90})
	f.Ingest(RawSample{X: 90, Y: 90})
	f.Reset()
	assert.Equal(t, 0, f.Pending())
	assert.Equal(t, published, f.Sample())

	// o lote recomeça do zero depois do reset
	assert.False(t, f.Ingest(RawSample{X: 5, Y: 5}))
}

func TestTilt(t *testing.T) {
	up := Tilt(Rotation{})
	assert.InDelta(t, 0, up.X, 1e-9)
	assert.InDelta(t, 1, up.Y, 1e-9)
	assert.InDelta(t, 0, up.Z, 1e-9)

	// inclinar em x aponta o eixo para +z
	north := Tilt(Rotation{X: 90})
	assert.InDelta(t, 0, north.X, 1e-9)
	assert.InDelta(t, 0, north.Y, 1e-9)
	assert.InDelta(t, 1, north.Z, 1e-9)

	// inclinar em z aponta o eixo para -x
	west := Tilt(Rotation{Z: 90})
	assert.InDelta(t, -1, west.X, 1e-9)
	assert.InDelta(t, 0, west.Z, 1e-9)
}
