package audiocore

import "github.com/wavescope/wavescope/internal/errors"

// ComponentAudioCore identifies audiocore errors.
const ComponentAudioCore = "audiocore"

// ErrInvalidDescriptor is returned for source descriptors that cannot be parsed.
// errors.Is matches any validation error against it.
var ErrInvalidDescriptor = errors.New(nil).
	Component(ComponentAudioCore).
	Category(errors.CategoryValidation).
	Context("resource", "source_descriptor").
	Build()

func descriptorError(desc, format string, args ...any) error {
	return errors.Newf(format, args...).
		Component(ComponentAudioCore).
		Category(errors.CategoryValidation).
		Context("descriptor", desc).
		Build()
}
