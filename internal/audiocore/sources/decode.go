package sources

import (
	"context"
	"encoding/binary"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	"github.com/tphakala/flac"

	"github.com/wavescope/wavescope/internal/audiocore"
	"github.com/wavescope/wavescope/internal/errors"
	"github.com/wavescope/wavescope/internal/logger"
)

// pcmDecoder yields interleaved samples in [-1, 1] from a compressed or
// container file.
type pcmDecoder interface {
	Channels() int
	SampleRate() int
	// ReadFloat fills dst with whole frames and returns the number of
	// samples written, or io.EOF at the end of the file.
	ReadFloat(dst []float32) (int, error)
}

// newDecodedFile probes the file header to fix the channel count at
// construction. A file that cannot be probed keeps the descriptor's channel
// count and fails in Open.
func newDecodedFile(desc audiocore.Descriptor, opts Options) (audiocore.Source, error) {
	if dec, f, err := openDecoder(desc.Target); err == nil {
		desc.Spec.Channels = dec.Channels()
		desc.Spec.SampleRate = dec.SampleRate()
		_ = f.Close()
	} else {
		GetLogger().Warn("cannot probe audio file",
			logger.String("path", desc.Target),
			logger.Error(err))
	}

	open := func(context.Context) (io.ReadCloser, audiocore.Spec, error) {
		dec, f, err := openDecoder(desc.Target)
		if err != nil {
			return nil, desc.Spec, err
		}
		spec := audiocore.Spec{
			Format:     audiocore.Format{Sample: audiocore.FormatF32},
			Channels:   dec.Channels(),
			SampleRate: dec.SampleRate(),
		}
		if spec.Channels != desc.Spec.Channels {
			_ = f.Close()
			return nil, desc.Spec, errors.Newf("channel count changed from %d to %d", desc.Spec.Channels, spec.Channels).
				Component(componentSources).
				Category(errors.CategoryFileParsing).
				Context("path", desc.Target).
				Build()
		}
		return &floatReader{dec: dec, file: f}, spec, nil
	}
	return newReaderSource(desc, opts, open, true)
}

// openDecoder picks a decoder by file extension.
func openDecoder(path string) (pcmDecoder, *os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.New(err).
			Component(componentSources).
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}

	var dec pcmDecoder
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".wav":
		dec, err = newWAVDecoder(f)
	case ".flac":
		dec, err = newFLACDecoder(f)
	case ".mp3":
		dec, err = newMP3Decoder(f)
	case ".ogg", ".oga":
		dec, err = newOggDecoder(f)
	default:
		err = errors.NewStd("unsupported audio file type " + ext)
	}
	if err == nil && (dec.Channels() < 1 || dec.SampleRate() < 1) {
		err = errors.NewStd("file reports no channels or no sample rate")
	}
	if err != nil {
		_ = f.Close()
		return nil, nil, errors.New(err).
			Component(componentSources).
			Category(errors.CategoryFileParsing).
			Context("path", path).
			Build()
	}
	return dec, f, nil
}

// floatReader encodes decoded samples as little-endian float32 bytes.
type floatReader struct {
	dec  pcmDecoder
	file *os.File
	buf  []float32
}

func (r *floatReader) Read(p []byte) (int, error) {
	frame := r.dec.Channels()
	n := len(p) / 4 / frame * frame
	if n == 0 {
		return 0, io.ErrShortBuffer
	}
	if cap(r.buf) < n {
		r.buf = make([]float32, n)
	}
	got, err := r.dec.ReadFloat(r.buf[:n])
	for i, v := range r.buf[:got] {
		binary.LittleEndian.PutUint32(p[4*i:], math.Float32bits(v))
	}
	return 4 * got, err
}

func (r *floatReader) Close() error { return r.file.Close() }

type wavDecoder struct {
	d     *wav.Decoder
	buf   *audio.IntBuffer
	scale float32
	bias  float32
}

func newWAVDecoder(f *os.File) (pcmDecoder, error) {
	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return nil, errors.NewStd("invalid WAV file")
	}
	if d.BitDepth == 0 {
		return nil, errors.NewStd("WAV file reports zero bit depth")
	}
	w := &wavDecoder{
		d:     d,
		scale: float32(int64(1) << (d.BitDepth - 1)),
		buf: &audio.IntBuffer{
			Format: &audio.Format{NumChannels: int(d.NumChans), SampleRate: int(d.SampleRate)},
		},
	}
	if d.BitDepth == 8 {
		// 8-bit WAV is unsigned.
		w.bias = 128
	}
	return w, nil
}

func (w *wavDecoder) Channels() int   { return int(w.d.NumChans) }
func (w *wavDecoder) SampleRate() int { return int(w.d.SampleRate) }

func (w *wavDecoder) ReadFloat(dst []float32) (int, error) {
	if cap(w.buf.Data) < len(dst) {
		w.buf.Data = make([]int, len(dst))
	}
	w.buf.Data = w.buf.Data[:len(dst)]
	n, err := w.d.PCMBuffer(w.buf)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	for i, v := range w.buf.Data[:n] {
		dst[i] = (float32(v) - w.bias) / w.scale
	}
	return n, nil
}

type flacDecoder struct {
	d       *flac.Decoder
	pending []float32
	scale   float32
}

func newFLACDecoder(f *os.File) (pcmDecoder, error) {
	d, err := flac.NewDecoder(f)
	if err != nil {
		return nil, err
	}
	switch d.BitsPerSample {
	case 8, 16, 24, 32:
	default:
		return nil, errors.NewStd("unsupported FLAC bit depth")
	}
	return &flacDecoder{d: d, scale: float32(int64(1) << (d.BitsPerSample - 1))}, nil
}

func (f *flacDecoder) Channels() int   { return f.d.NChannels }
func (f *flacDecoder) SampleRate() int { return f.d.SampleRate }

func (f *flacDecoder) ReadFloat(dst []float32) (int, error) {
	for len(f.pending) == 0 {
		frame, err := f.d.Next()
		if err != nil {
			return 0, err
		}
		f.pending = f.decodeFrame(frame, f.pending[:0])
	}
	n := copy(dst, f.pending)
	f.pending = f.pending[n:]
	return n, nil
}

// decodeFrame converts one little-endian interleaved FLAC frame.
func (f *flacDecoder) decodeFrame(frame []byte, out []float32) []float32 {
	width := f.d.BitsPerSample / 8
	for i := 0; i+width <= len(frame); i += width {
		var v int32
		switch width {
		case 1:
			v = int32(int8(frame[i]))
		case 2:
			v = int32(int16(binary.LittleEndian.Uint16(frame[i:])))
		case 3:
			v = int32(frame[i]) | int32(frame[i+1])<<8 | int32(int8(frame[i+2]))<<16
		case 4:
			v = int32(binary.LittleEndian.Uint32(frame[i:]))
		}
		out = append(out, float32(v)/f.scale)
	}
	return out
}

type mp3Decoder struct {
	d   *mp3.Decoder
	raw []byte
}

func newMP3Decoder(f *os.File) (pcmDecoder, error) {
	d, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, err
	}
	return &mp3Decoder{d: d}, nil
}

// go-mp3 always produces 16-bit little-endian stereo.
func (m *mp3Decoder) Channels() int   { return 2 }
func (m *mp3Decoder) SampleRate() int { return m.d.SampleRate() }

func (m *mp3Decoder) ReadFloat(dst []float32) (int, error) {
	want := len(dst) / 2 * 4
	if cap(m.raw) < want {
		m.raw = make([]byte, want)
	}
	n, err := io.ReadFull(m.d, m.raw[:want])
	n = n / 4 * 4
	got := audiocore.DecodeFloat(audiocore.Format{Sample: audiocore.FormatS16}, dst, m.raw[:n])
	if got > 0 {
		return got, nil
	}
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	return 0, err
}

type oggDecoder struct {
	r *oggvorbis.Reader
}

func newOggDecoder(f *os.File) (pcmDecoder, error) {
	r, err := oggvorbis.NewReader(f)
	if err != nil {
		return nil, err
	}
	return &oggDecoder{r: r}, nil
}

func (o *oggDecoder) Channels() int   { return o.r.Channels() }
func (o *oggDecoder) SampleRate() int { return o.r.SampleRate() }

func (o *oggDecoder) ReadFloat(dst []float32) (int, error) {
	n, err := o.r.Read(dst)
	if n > 0 {
		return n, nil
	}
	return 0, err
}
