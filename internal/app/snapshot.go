package app

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/wavescope/wavescope/internal/errors"
	"github.com/wavescope/wavescope/internal/logger"
	"github.com/wavescope/wavescope/internal/spectrogram"
)

// laneHeight is the height of one channel's waveform lane.
const laneHeight = 48

var (
	background = color.NRGBA{R: 0x10, G: 0x10, B: 0x14, A: 0xff}
	labelColor = color.NRGBA{R: 0xd0, G: 0xd0, B: 0xd0, A: 0xff}
)

// overview is the waveform summary as returned by Stream.Summary: frames
// entries of stride samples, a (min, max) pair per channel.
type overview struct {
	data     []int16
	frames   int
	stride   int
	channels int
}

// rawOverview turns interleaved frames into an overview with one (v, v)
// entry per frame.
func rawOverview(samples []int16, channels int) overview {
	frames := len(samples) / channels
	ov := overview{data: make([]int16, 2*frames*channels), frames: frames, stride: 2 * channels, channels: channels}
	for i, v := range samples[:frames*channels] {
		ov.data[2*i], ov.data[2*i+1] = v, v
	}
	return ov
}

// Snapshot composes the waveform overview lanes above the spectrogram layers
// of the last render.
func (a *App) Snapshot() *image.NRGBA {
	_, data, frames, stride := a.stream.Summary()
	ov := overview{data: data, frames: frames, stride: stride, channels: a.stream.Channels()}
	if frames < a.settings.Spectrogram.Width {
		// Too little history for the summary to fill a lane.
		if _, raw := a.stream.View(); len(raw) > 0 {
			ov = rawOverview(raw, ov.channels)
		}
	}

	var from, to float64
	if st := a.lastStats.Load(); st != nil {
		from, to = st.From, st.To
	}
	return compose(ov, a.spectro.Layers(), from, to)
}

// WriteSnapshot encodes Snapshot as PNG and replaces path with it.
func (a *App) WriteSnapshot(path string) error {
	if err := writePNG(path, a.Snapshot()); err != nil {
		return err
	}
	a.log.Debug("snapshot written", logger.String("path", path))
	return nil
}

// compose lays out one lane per channel followed by the waterfall. Layers
// are drawn over each other in channel order.
func compose(ov overview, layers []*spectrogram.Layer, from, to float64) *image.NRGBA {
	width, height := 1, 0
	if len(layers) > 0 {
		b := layers[0].Image.Bounds()
		width, height = b.Dx(), b.Dy()
	}
	top := ov.channels * laneHeight
	img := image.NewNRGBA(image.Rect(0, 0, width, top+height))
	draw.Draw(img, img.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)

	for ch := range ov.channels {
		lane := image.Rect(0, ch*laneHeight, width, (ch+1)*laneHeight)
		c := labelColor
		if ch < len(layers) {
			c = layers[ch].Color
		}
		drawOverview(img, lane, ov, ch, c)
		drawLabel(img, lane.Min, fmt.Sprintf("ch%d", ch))
	}

	waterfall := image.Rect(0, top, width, top+height)
	for _, l := range layers {
		draw.Draw(img, waterfall, l.Image, l.Image.Bounds().Min, draw.Over)
	}
	if len(layers) > 0 && from < to {
		drawLabel(img, waterfall.Min, fmt.Sprintf("%.0f..%.0f dB", from, to))
	}
	return img
}

// drawOverview draws channel ch as one vertical min/max bar per column.
// Every column folds an equal share of the summary entries.
func drawOverview(dst *image.NRGBA, r image.Rectangle, ov overview, ch int, c color.NRGBA) {
	if ov.frames == 0 || ch >= ov.channels || r.Dx() == 0 {
		return
	}
	w, h := r.Dx(), r.Dy()
	mid := r.Min.Y + h/2
	scale := float64(h) / 2 / 32768

	for x := range w {
		lo := x * ov.frames / w
		hi := max((x+1)*ov.frames/w, lo+1)
		if lo >= ov.frames {
			break
		}
		hi = min(hi, ov.frames)

		mn, mx := int16(32767), int16(-32768)
		for i := lo; i < hi; i++ {
			base := i*ov.stride + 2*ch
			mn = min(mn, ov.data[base])
			mx = max(mx, ov.data[base+1])
		}

		y0 := mid - int(float64(mx)*scale)
		y1 := mid - int(float64(mn)*scale)
		y0 = max(y0, r.Min.Y)
		y1 = min(y1, r.Max.Y-1)
		for y := y0; y <= y1; y++ {
			dst.SetNRGBA(r.Min.X+x, y, c)
		}
	}
}

func drawLabel(dst draw.Image, at image.Point, text string) {
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(labelColor),
		Face: face,
		Dot:  fixed.P(at.X+4, at.Y+face.Ascent+2),
	}
	d.DrawString(text)
}

// writePNG writes img next to path and renames it into place, so readers
// never see a partial file.
func writePNG(path string, img image.Image) error {
	fileErr := func(err error, op string) error {
		return errors.New(err).
			Component(componentApp).
			Category(errors.CategoryFileIO).
			Context("path", path).
			Context("operation", op).
			Build()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fileErr(err, "mkdir")
	}
	tmp, err := os.CreateTemp(dir, "snapshot-*.png")
	if err != nil {
		return fileErr(err, "create_temp")
	}
	defer os.Remove(tmp.Name())

	if err := png.Encode(tmp, img); err != nil {
		tmp.Close()
		return fileErr(err, "encode")
	}
	if err := tmp.Close(); err != nil {
		return fileErr(err, "close")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fileErr(err, "rename")
	}
	return nil
}
