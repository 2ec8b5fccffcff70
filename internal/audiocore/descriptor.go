package audiocore

import (
	"strconv"
	"strings"
)

// Kind tags a source variant in a descriptor string.
type Kind string

const (
	KindRaw   Kind = "raw"   // raw:FILE[:SPEC]
	KindFile  Kind = "file"  // file:PATH, decoded by extension
	KindStdin Kind = "stdin" // stdin[:SPEC]
	KindAudio Kind = "audio" // audio[:SPEC], default capture device
	KindGen   Kind = "gen"   // gen:TYPE
	KindJack  Kind = "jack"  // jack:CHANNELS
	KindTCP   Kind = "tcp"   // tcp:HOST:PORT[:SPEC]
	KindWS    Kind = "ws"    // ws:URL[#SPEC]
)

// Descriptor is a parsed source descriptor.
type Descriptor struct {
	Raw    string
	Kind   Kind
	Target string // file path, generator type, host:port or URL
	Spec   Spec
}

// ParseDescriptor parses a source descriptor. Fields omitted from the SPEC
// part default to s16, one channel and sampleRate.
func ParseDescriptor(s string, sampleRate int) (Descriptor, error) {
	s = strings.TrimSpace(s)
	d := Descriptor{Raw: s, Spec: DefaultSpec(sampleRate)}
	if s == "" {
		return d, descriptorError(s, "empty source descriptor")
	}

	kind, rest, _ := strings.Cut(s, ":")
	d.Kind = Kind(strings.ToLower(kind))

	var err error
	switch d.Kind {
	case KindRaw:
		d.Target, d.Spec, err = splitPathSpec(s, rest, d.Spec)
		if err == nil && d.Target == "" {
			err = descriptorError(s, "raw source needs a file name")
		}

	case KindFile:
		d.Target = rest
		if rest == "" {
			err = descriptorError(s, "file source needs a path")
		}

	case KindStdin, KindAudio:
		d.Spec, err = ParseSpec(rest, d.Spec)

	case KindGen:
		d.Target = strings.ToLower(rest)
		if d.Target == "" {
			err = descriptorError(s, "generator needs a type")
		}

	case KindJack:
		d.Spec.Format = Format{Sample: FormatF32}
		n, convErr := strconv.Atoi(rest)
		if convErr != nil || n < 1 || n > 64 {
			err = descriptorError(s, "invalid jack channel count %q", rest)
			break
		}
		d.Spec.Channels = n

	case KindTCP:
		parts := strings.Split(rest, ":")
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			err = descriptorError(s, "tcp source needs HOST:PORT")
			break
		}
		d.Target = parts[0] + ":" + parts[1]
		d.Spec, err = parseSpecParts(s, parts[2:], d.Spec)

	case KindWS:
		url, frag, _ := strings.Cut(rest, "#")
		if url == "" {
			err = descriptorError(s, "websocket source needs a URL")
			break
		}
		d.Target = url
		d.Spec, err = ParseSpec(frag, d.Spec)

	default:
		err = descriptorError(s, "unknown source kind %q", kind)
	}
	return d, err
}

// splitPathSpec separates FILE from an optional trailing SPEC. File names may
// contain ':'; the sample spec starts at the first later field that names a format.
func splitPathSpec(desc, rest string, def Spec) (string, Spec, error) {
	parts := strings.Split(rest, ":")
	for i := 1; i < len(parts); i++ {
		if IsFormatName(parts[i]) && len(parts)-i <= 3 {
			spec, err := parseSpecParts(desc, parts[i:], def)
			return strings.Join(parts[:i], ":"), spec, err
		}
	}
	return rest, def, nil
}

func (d Descriptor) String() string {
	return d.Raw
}
