package sources

import (
	"io"

	"github.com/wavescope/wavescope/internal/audiocore"
	"github.com/wavescope/wavescope/internal/errors"
)

const componentSources = "audiocore.sources"

// sourceError wraps a failure that disables a source.
func sourceError(desc audiocore.Descriptor, err error) error {
	category := errors.CategoryAudioSource
	switch {
	case err == nil, errors.Is(err, io.EOF):
		err = errors.NewStd("end of input")
	case errors.IsCategory(err, errors.CategoryNetwork):
		category = errors.CategoryNetwork
	}
	return errors.New(err).
		Component(componentSources).
		Category(category).
		Context("source", desc.Raw).
		Context("kind", string(desc.Kind)).
		Build()
}
