// Package sources implements the concrete capture sources: raw and decoded
// files, standard input, generators, capture devices and network clients.
// Sources are built from descriptors through an explicit constructor table.
package sources

import (
	"maps"
	"slices"

	"github.com/wavescope/wavescope/internal/audiocore"
	"github.com/wavescope/wavescope/internal/errors"
	"github.com/wavescope/wavescope/internal/logger"
)

const defaultBufferSeconds = 2.0

// Options apply to every source built by New.
type Options struct {
	SampleRate    int     // stream rate every source converts to
	BufferSeconds float64 // per-source queue length
}

func (o Options) bufferFrames() int {
	secs := o.BufferSeconds
	if secs <= 0 {
		secs = defaultBufferSeconds
	}
	return max(1024, int(secs*float64(o.SampleRate)))
}

// Constructor builds a source from a parsed descriptor. It must not touch
// hardware or the network; that happens in Open.
type Constructor func(desc audiocore.Descriptor, opts Options) (audiocore.Source, error)

var constructors = map[audiocore.Kind]Constructor{
	audiocore.KindRaw:   newRawFile,
	audiocore.KindFile:  newDecodedFile,
	audiocore.KindStdin: newStdin,
	audiocore.KindGen:   newGenerator,
	audiocore.KindAudio: newCaptureDevice,
	audiocore.KindJack:  newJackDevice,
	audiocore.KindTCP:   newTCP,
	audiocore.KindWS:    newWebSocket,
}

// Kinds lists the supported descriptor kinds.
func Kinds() []audiocore.Kind {
	return slices.Sorted(maps.Keys(constructors))
}

// New builds the source for desc.
func New(desc audiocore.Descriptor, opts Options) (audiocore.Source, error) {
	ctor, ok := constructors[desc.Kind]
	if !ok {
		return nil, errors.Newf("no constructor for source kind %q", desc.Kind).
			Component(componentSources).
			Category(errors.CategoryConfiguration).
			Context("source", desc.Raw).
			Build()
	}
	return ctor(desc, opts)
}

// Build parses every descriptor and constructs its source. Any failure is a
// fatal setup error; sources built so far are closed.
func Build(descs []string, opts Options) ([]audiocore.Source, error) {
	if len(descs) == 0 {
		return nil, errors.Newf("no input sources configured").
			Component(componentSources).
			Category(errors.CategoryConfiguration).
			Build()
	}

	out := make([]audiocore.Source, 0, len(descs))
	fail := func(err error) ([]audiocore.Source, error) {
		for _, s := range out {
			_ = s.Close()
		}
		return nil, err
	}

	for _, raw := range descs {
		desc, err := audiocore.ParseDescriptor(raw, opts.SampleRate)
		if err != nil {
			return fail(err)
		}
		src, err := New(desc, opts)
		if err != nil {
			return fail(err)
		}
		GetLogger().Debug("source created",
			logger.String("source", desc.Raw),
			logger.Int("channels", src.Channels()),
			logger.String("spec", desc.Spec.String()))
		out = append(out, src)
	}
	return out, nil
}
