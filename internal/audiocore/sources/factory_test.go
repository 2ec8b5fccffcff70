package sources

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wavescope/wavescope/internal/audiocore"
	"github.com/wavescope/wavescope/internal/errors"
)

func TestKindsCoverDescriptorSyntax(t *testing.T) {
	assert.ElementsMatch(t, []audiocore.Kind{
		audiocore.KindAudio, audiocore.KindFile, audiocore.KindGen, audiocore.KindJack,
		audiocore.KindRaw, audiocore.KindStdin, audiocore.KindTCP, audiocore.KindWS,
	}, Kinds())
}

func TestBuild(t *testing.T) {
	srcs, err := Build([]string{"gen:sine", "gen:noise", "raw:/dev/null:f32:3"}, testOptions())
	require.NoError(t, err)
	t.Cleanup(func() {
		for _, s := range srcs {
			_ = s.Close()
		}
	})

	require.Len(t, srcs, 3)
	assert.Equal(t, "gen:noise", srcs[1].Name())
	assert.Equal(t, 3, srcs[2].Channels())
}

func TestBuildFatalErrors(t *testing.T) {
	_, err := Build(nil, testOptions())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))

	_, err = Build([]string{"gen:sine", "bogus:1"}, testOptions())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestBaseSourceDefaults(t *testing.T) {
	src := mustSource(t, "gen:silence")
	// Generators have no hardware; pause and resume are no-ops.
	src.Pause()
	src.Resume()
	assert.NoError(t, src.Err())
}
