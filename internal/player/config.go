package player

import "math"

const (
	// MinFactor and MaxFactor bound pitch and stretch.
	MinFactor = 0.01
	MaxFactor = 100.0

	// FilterPasses is the number of cascaded biquads per filter.
	FilterPasses = 2
)

// Config is the engine-wide playback configuration. It is a plain value;
// the engine publishes it by whole-value replacement.
type Config struct {
	MasterGain float64 // dB
	Shift      float64 // Hz, 0 disables the shifter
	Pitch      float64 // read-pointer advance per output frame
	Stretch    float64 // source-time advance per output frame
	HighPass   float64 // Hz, 0 disables
	LowPass    float64 // Hz, 0 disables
}

// DefaultConfig is unmodified pass-through.
func DefaultConfig() Config {
	return Config{Pitch: 1, Stretch: 1}
}

// Clamped returns c with pitch and stretch forced into [MinFactor, MaxFactor]
// and negative cutoffs disabled.
func (c Config) Clamped() Config {
	c.Pitch = clampFactor(c.Pitch)
	c.Stretch = clampFactor(c.Stretch)
	c.HighPass = max(c.HighPass, 0)
	c.LowPass = max(c.LowPass, 0)
	return c
}

func clampFactor(v float64) float64 {
	if math.IsNaN(v) || v == 0 {
		return 1
	}
	return min(max(v, MinFactor), MaxFactor)
}

// ChannelConfig controls one stream channel in the stereo mix.
type ChannelConfig struct {
	Enabled bool
	Level   float64 // dB
	Pan     float64 // -1 (left) .. 1 (right)
}

// DefaultChannelConfig plays a channel centered at unity gain.
func DefaultChannelConfig() ChannelConfig {
	return ChannelConfig{Enabled: true}
}

// weights returns the linear left and right gains. Panning attenuates the
// opposite side linearly and never boosts.
func (cc ChannelConfig) weights() (left, right float64) {
	if !cc.Enabled {
		return 0, 0
	}
	g := dbToLinear(cc.Level)
	pan := min(max(cc.Pan, -1), 1)
	left, right = 1, 1
	if pan <= 0 {
		right = 1 + pan
	} else {
		left = 1 - pan
	}
	return g * left, g * right
}

func dbToLinear(db float64) float64 {
	return math.Pow(10, db/20)
}
