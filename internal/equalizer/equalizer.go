// Package equalizer provides the low-pass and high-pass biquads of Robert
// Bristow-Johnson's audio EQ cookbook, cascaded over a configurable number of
// passes.
package equalizer

import (
	"math"

	"github.com/wavescope/wavescope/internal/errors"
)

const componentEqualizer = "equalizer"

// FilterName identifies the response of a Filter.
type FilterName int

// FilterName constants are digital filter names.
const (
	Undefined FilterName = iota
	LowPass
	HighPass
)

// Butterworth is the Q of a maximally flat second-order section.
const Butterworth = math.Sqrt2 / 2

// Filter is a biquad section applied passes times in series. Each pass keeps
// its own delay line, so one Filter serves exactly one signal.
type Filter struct {
	name   FilterName
	passes int

	// normalized coefficients (divided by a0)
	b0, b1, b2, a1, a2 float64

	// per-pass state
	x1, x2, y1, y2 []float64
}

// IsZero returns true when the filter was never initialized.
func (f *Filter) IsZero() bool {
	return f == nil || f.name == Undefined
}

// Name returns the filter response.
func (f *Filter) Name() FilterName { return f.name }

// Passes returns the number of cascaded sections.
func (f *Filter) Passes() int { return f.passes }

func newFilter(name FilterName, a0, a1, a2, b0, b1, b2 float64, passes int) *Filter {
	return &Filter{
		name:   name,
		passes: passes,
		b0:     b0 / a0,
		b1:     b1 / a0,
		b2:     b2 / a0,
		a1:     a1 / a0,
		a2:     a2 / a0,
		x1:     make([]float64, passes),
		x2:     make([]float64, passes),
		y1:     make([]float64, passes),
		y2:     make([]float64, passes),
	}
}

// Process filters one sample through every pass.
func (f *Filter) Process(x float64) float64 {
	for p := range f.passes {
		y := f.b0*x + f.b1*f.x1[p] + f.b2*f.x2[p] - f.a1*f.y1[p] - f.a2*f.y2[p]
		f.x2[p], f.x1[p] = f.x1[p], x
		f.y2[p], f.y1[p] = f.y1[p], y
		x = y
	}
	return x
}

// Reset clears the delay lines.
func (f *Filter) Reset() {
	clear(f.x1)
	clear(f.x2)
	clear(f.y1)
	clear(f.y2)
}

func validate(sampleRate, frequency, q float64, passes int) error {
	switch {
	case passes < 1:
		return errors.Newf("filter passes must be 1 or greater, got %d", passes).
			Component(componentEqualizer).
			Category(errors.CategoryValidation).
			Build()
	case sampleRate <= 0 || frequency <= 0 || frequency >= sampleRate/2:
		return errors.Newf("filter frequency %.1f Hz outside (0, %.1f)", frequency, sampleRate/2).
			Component(componentEqualizer).
			Category(errors.CategoryValidation).
			Build()
	case q <= 0:
		return errors.Newf("filter q must be positive, got %g", q).
			Component(componentEqualizer).
			Category(errors.CategoryValidation).
			Build()
	}
	return nil
}

// NewLowPass returns a low-pass filter. Each pass adds 12 dB/oct.
func NewLowPass(sampleRate, frequency, q float64, passes int) (*Filter, error) {
	if err := validate(sampleRate, frequency, q, passes); err != nil {
		return nil, err
	}
	w0 := 2 * math.Pi * frequency / sampleRate
	cos, alpha := math.Cos(w0), math.Sin(w0)/(2*q)

	return newFilter(LowPass,
		1+alpha, -2*cos, 1-alpha,
		(1-cos)/2, 1-cos, (1-cos)/2,
		passes), nil
}

// NewHighPass returns a high-pass filter. Each pass adds 12 dB/oct.
func NewHighPass(sampleRate, frequency, q float64, passes int) (*Filter, error) {
	if err := validate(sampleRate, frequency, q, passes); err != nil {
		return nil, err
	}
	w0 := 2 * math.Pi * frequency / sampleRate
	cos, alpha := math.Cos(w0), math.Sin(w0)/(2*q)

	return newFilter(HighPass,
		1+alpha, -2*cos, 1-alpha,
		(1+cos)/2, -(1 + cos), (1+cos)/2,
		passes), nil
}

// Chain runs filters in series. A Chain is not safe for concurrent use;
// owners swap whole chains instead of mutating a shared one.
type Chain struct {
	filters []*Filter
}

// NewChain builds a chain, skipping nil or uninitialized filters.
func NewChain(filters ...*Filter) *Chain {
	c := &Chain{}
	for _, f := range filters {
		if !f.IsZero() {
			c.filters = append(c.filters, f)
		}
	}
	return c
}

// Len returns the number of filters in the chain.
func (c *Chain) Len() int {
	if c == nil {
		return 0
	}
	return len(c.filters)
}

// Process runs one sample through the chain.
func (c *Chain) Process(x float64) float64 {
	if c == nil {
		return x
	}
	for _, f := range c.filters {
		x = f.Process(x)
	}
	return x
}

// Reset clears every filter's state.
func (c *Chain) Reset() {
	if c == nil {
		return
	}
	for _, f := range c.filters {
		f.Reset()
	}
}
