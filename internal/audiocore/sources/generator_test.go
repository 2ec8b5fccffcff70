package sources

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wavescope/wavescope/internal/audiocore"
)

func newTestGenerator(t *testing.T, kind string) (*generator, *time.Time) {
	t.Helper()
	src := mustSource(t, "gen:"+kind)
	g, ok := src.(*generator)
	require.True(t, ok)

	now := time.Unix(1000, 0)
	g.now = func() time.Time { return now }
	require.NoError(t, g.Open())
	return g, &now
}

func TestGeneratorFollowsWallClock(t *testing.T) {
	g, now := newTestGenerator(t, "sine")

	g.Poll()
	assert.Equal(t, 0, g.Available())

	*now = now.Add(100 * time.Millisecond)
	g.Poll()
	assert.Equal(t, testRate/10, g.Available())

	*now = now.Add(50 * time.Millisecond)
	g.Poll()
	assert.Equal(t, testRate*15/100, g.Available())
}

func TestGeneratorWaveforms(t *testing.T) {
	for _, kind := range []string{"sine", "square", "saw", "triangle", "noise", "sweep", "silence"} {
		t.Run(kind, func(t *testing.T) {
			g, now := newTestGenerator(t, kind)
			*now = now.Add(time.Second)
			g.Poll()

			frames := g.Frames(g.Available())
			require.Len(t, frames, testRate)

			amp := genAmplitude
			limit := int16(amp*32767) + 1
			var peak int16
			for _, v := range frames {
				assert.LessOrEqual(t, v, limit)
				assert.GreaterOrEqual(t, v, -limit)
				peak = max(peak, v)
			}
			if kind == "silence" {
				assert.Zero(t, peak)
			} else {
				assert.Greater(t, peak, int16(amp*32767*0.9))
			}
		})
	}
}

func TestGeneratorRejectsUnknownType(t *testing.T) {
	d, err := audiocore.ParseDescriptor("gen:chirp", testRate)
	require.NoError(t, err)
	_, err = New(d, testOptions())
	assert.Error(t, err)
}

func TestGeneratorResumeRestartsClock(t *testing.T) {
	g, now := newTestGenerator(t, "sine")

	*now = now.Add(10 * time.Millisecond)
	g.Poll()
	require.Equal(t, testRate/100, g.Available())

	// Disabled for half a second: nothing is polled.
	*now = now.Add(500 * time.Millisecond)
	g.Resume()
	assert.Zero(t, g.Available())

	g.Poll()
	assert.Zero(t, g.Available(), "the disabled interval is not synthesized")

	*now = now.Add(10 * time.Millisecond)
	g.Poll()
	assert.Equal(t, testRate/100, g.Available())
}
