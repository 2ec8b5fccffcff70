package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wavescope/wavescope/internal/buildinfo"
	"github.com/wavescope/wavescope/internal/conf"
	"github.com/wavescope/wavescope/internal/errors"
)

func testSettings(t *testing.T, overrides map[string]any) *conf.Settings {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())

	base := map[string]any{
		"samplerate":             8000,
		"sources":                []string{"gen:sine"},
		"output.backend":         "none",
		"capture.buffer_seconds": 2.0,
		"capture.mapped":         false,
		"spectrogram.fft_size":   256,
		"spectrogram.hop":        64,
		"spectrogram.width":      64,
		"spectrogram.height":     32,
		"spectrogram.workers":    2,
		"spectrogram.interval":   10 * time.Millisecond,
	}
	for k, v := range overrides {
		base[k] = v
	}
	s, err := conf.Load("", base)
	require.NoError(t, err)
	return s
}

func TestRunCapturesRendersAndSnapshots(t *testing.T) {
	snap := filepath.Join(t.TempDir(), "out", "snapshot.png")
	s := testSettings(t, map[string]any{
		"sources":              []string{"gen:sine", "gen:noise"},
		"ui.snapshot_path":     snap,
		"ui.snapshot_interval": 50 * time.Millisecond,
	})

	a, err := New(s, buildinfo.NewContext("test", "", ""))
	require.NoError(t, err)
	assert.Equal(t, 2, a.Stream().Channels())

	ctx, cancel := context.WithTimeout(context.Background(), 400*time.Millisecond)
	defer cancel()
	require.NoError(t, a.Run(ctx))

	st := a.Status()
	assert.NotZero(t, st.Captured, "capture events reach the UI loop")
	assert.NotZero(t, st.Renders)
	assert.NotZero(t, st.Events.Published)

	_, total := a.Stream().Frames()
	assert.GreaterOrEqual(t, total, st.Captured)

	info, err := os.Stat(snap)
	require.NoError(t, err)
	assert.NotZero(t, info.Size())

	// Run already shut everything down.
	a.Close()
}

func TestNewRejectsBadSource(t *testing.T) {
	s := testSettings(t, map[string]any{"sources": []string{"bogus:thing"}})

	_, err := New(s, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestSaveConfigPersistsPlayerState(t *testing.T) {
	s := testSettings(t, nil)
	a, err := New(s, nil)
	require.NoError(t, err)
	defer a.Close()

	cfg := a.Engine().Config()
	cfg.Pitch = 2
	cfg.LowPass = 3000
	a.Engine().SetConfig(cfg)
	ch := a.Engine().Channel(0)
	ch.Pan = -0.5
	a.Engine().SetChannel(0, ch)

	path := filepath.Join(t.TempDir(), "wavescope.yaml")
	require.NoError(t, a.SaveConfig(path))

	loaded, err := conf.Load(path, nil)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, loaded.Player.Pitch, 0)
	assert.InDelta(t, 3000.0, loaded.Player.FilterLP, 0)
	assert.InDelta(t, -0.5, loaded.Player.Channel["0"].Pan, 0)
	assert.Equal(t, []string{"gen:sine"}, loaded.Sources)
}

func TestSetCapturePausesAndResumes(t *testing.T) {
	a, err := New(testSettings(t, nil), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	defer func() {
		cancel()
		require.NoError(t, <-done)
	}()

	total := func() uint64 {
		_, n := a.Stream().Frames()
		return n
	}
	require.Eventually(t, func() bool { return total() > 0 }, time.Second, 5*time.Millisecond)

	a.SetCapture(false)
	assert.False(t, a.Status().Capturing)
	time.Sleep(50 * time.Millisecond)
	paused := total()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, paused, total(), "nothing is captured while paused")

	a.SetCapture(true)
	assert.True(t, a.Status().Capturing)
	require.Eventually(t, func() bool { return total() > paused }, time.Second, 5*time.Millisecond)
	// 150 ms paused at 8 kHz: the generator does not make up the gap.
	assert.Less(t, total()-paused, uint64(1000))
}
