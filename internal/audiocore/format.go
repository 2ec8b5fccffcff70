package audiocore

import (
	"encoding/binary"
	"math"
	"strconv"
	"strings"
)

// SampleFormat is the encoding of a single sample in an external byte stream.
type SampleFormat uint8

const (
	FormatU8 SampleFormat = iota + 1
	FormatS8
	FormatS16
	FormatS32
	FormatF32
	FormatF64
)

var formatNames = map[string]SampleFormat{
	"u8":  FormatU8,
	"s8":  FormatS8,
	"s16": FormatS16,
	"s32": FormatS32,
	"f32": FormatF32,
	"f64": FormatF64,
}

// Bytes returns the encoded size of one sample.
func (f SampleFormat) Bytes() int {
	switch f {
	case FormatU8, FormatS8:
		return 1
	case FormatS16:
		return 2
	case FormatS32, FormatF32:
		return 4
	case FormatF64:
		return 8
	default:
		return 0
	}
}

func (f SampleFormat) String() string {
	for name, v := range formatNames {
		if v == f {
			return name
		}
	}
	return "invalid"
}

// Format is a sample format plus byte order.
type Format struct {
	Sample    SampleFormat
	BigEndian bool
}

func (f Format) String() string {
	s := f.Sample.String()
	if f.Sample.Bytes() > 1 {
		if f.BigEndian {
			return s + "be"
		}
		return s + "le"
	}
	return s
}

// ParseFormat parses names like s16, s16le, f32be or u8.
// Little-endian is assumed when no suffix is given.
func ParseFormat(s string) (Format, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	var f Format
	switch {
	case strings.HasSuffix(s, "be"):
		f.BigEndian = true
		s = strings.TrimSuffix(s, "be")
	case strings.HasSuffix(s, "le"):
		s = strings.TrimSuffix(s, "le")
	}
	sf, ok := formatNames[s]
	if !ok {
		return Format{}, false
	}
	f.Sample = sf
	return f, true
}

// IsFormatName reports whether s names a sample format.
func IsFormatName(s string) bool {
	_, ok := ParseFormat(s)
	return ok
}

// Spec describes an external interleaved PCM stream.
type Spec struct {
	Format     Format
	Channels   int
	SampleRate int
}

// DefaultSpec is used for descriptor fields that are left out.
func DefaultSpec(sampleRate int) Spec {
	return Spec{
		Format:     Format{Sample: FormatS16},
		Channels:   1,
		SampleRate: sampleRate,
	}
}

// FrameBytes returns the encoded size of one frame.
func (s Spec) FrameBytes() int {
	return s.Channels * s.Format.Sample.Bytes()
}

func (s Spec) String() string {
	return s.Format.String() + ":" + strconv.Itoa(s.Channels) + ":" + strconv.Itoa(s.SampleRate)
}

// ParseSpec parses FORMAT[:CHANNELS][:SAMPLERATE]. Missing fields keep the
// values of def. An empty string returns def unchanged.
func ParseSpec(s string, def Spec) (Spec, error) {
	if s == "" {
		return def, nil
	}
	return parseSpecParts(s, strings.Split(s, ":"), def)
}

func parseSpecParts(desc string, parts []string, def Spec) (Spec, error) {
	spec := def
	if len(parts) == 0 {
		return spec, nil
	}
	if len(parts) > 3 {
		return spec, descriptorError(desc, "too many fields in sample spec %q", strings.Join(parts, ":"))
	}

	f, ok := ParseFormat(parts[0])
	if !ok {
		return spec, descriptorError(desc, "unknown sample format %q", parts[0])
	}
	spec.Format = f

	if len(parts) > 1 && parts[1] != "" {
		n, err := strconv.Atoi(parts[1])
		if err != nil || n < 1 || n > 64 {
			return spec, descriptorError(desc, "invalid channel count %q", parts[1])
		}
		spec.Channels = n
	}
	if len(parts) > 2 && parts[2] != "" {
		n, err := strconv.Atoi(parts[2])
		if err != nil || n < 1000 || n > 768000 {
			return spec, descriptorError(desc, "invalid sample rate %q", parts[2])
		}
		spec.SampleRate = n
	}
	return spec, nil
}

// DecodeFloat decodes whole samples from src into dst as values in [-1, 1]
// and returns the number of samples written.
func DecodeFloat(f Format, dst []float32, src []byte) int {
	size := f.Sample.Bytes()
	if size == 0 {
		return 0
	}
	n := min(len(dst), len(src)/size)

	var order binary.ByteOrder = binary.LittleEndian
	if f.BigEndian {
		order = binary.BigEndian
	}

	switch f.Sample {
	case FormatU8:
		for i := range n {
			dst[i] = (float32(src[i]) - 128) / 128
		}
	case FormatS8:
		for i := range n {
			dst[i] = float32(int8(src[i])) / 128
		}
	case FormatS16:
		for i := range n {
			dst[i] = float32(int16(order.Uint16(src[2*i:]))) / 32768
		}
	case FormatS32:
		for i := range n {
			dst[i] = float32(float64(int32(order.Uint32(src[4*i:]))) / 2147483648)
		}
	case FormatF32:
		for i := range n {
			dst[i] = math.Float32frombits(order.Uint32(src[4*i:]))
		}
	case FormatF64:
		for i := range n {
			dst[i] = float32(math.Float64frombits(order.Uint64(src[8*i:])))
		}
	}
	return n
}

// FloatToInt16 converts a sample in [-1, 1] to 16-bit, clamping out-of-range input.
func FloatToInt16(x float32) int16 {
	if x > 1 {
		x = 1
	} else if x < -1 {
		x = -1
	}
	if x != x { // NaN
		return 0
	}
	return int16(x * 32767)
}

// Int16ToFloat converts a 16-bit sample to [-1, 1).
func Int16ToFloat(v int16) float32 {
	return float32(v) / 32768
}
