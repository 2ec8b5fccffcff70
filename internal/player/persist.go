package player

import (
	"strconv"

	"github.com/wavescope/wavescope/internal/conf"
)

const (
	keyMasterGain = "player.master_gain"
	keyShift      = "player.shift"
	keyPitch      = "player.pitch"
	keyStretch    = "player.stretch"
	keyFilterHP   = "player.filter_hp"
	keyFilterLP   = "player.filter_lp"
)

func channelKey(i int, field string) string {
	return "player.channel." + strconv.Itoa(i) + "." + field
}

// Load applies the player keys present in node. Absent keys keep their
// current value; channels are read for every stream channel.
func (e *Engine) Load(node conf.Node) {
	c := e.Config()
	float := func(key string, dst *float64) {
		if node.IsSet(key) {
			*dst = node.GetFloat64(key)
		}
	}
	float(keyMasterGain, &c.MasterGain)
	float(keyShift, &c.Shift)
	float(keyPitch, &c.Pitch)
	float(keyStretch, &c.Stretch)
	float(keyFilterHP, &c.HighPass)
	float(keyFilterLP, &c.LowPass)
	e.SetConfig(c)

	for i := range e.src.Channels() {
		cc := e.Channel(i)
		set := false
		if k := channelKey(i, "enabled"); node.IsSet(k) {
			cc.Enabled, set = node.GetBool(k), true
		}
		if k := channelKey(i, "level"); node.IsSet(k) {
			cc.Level, set = node.GetFloat64(k), true
		}
		if k := channelKey(i, "pan"); node.IsSet(k) {
			cc.Pan, set = node.GetFloat64(k), true
		}
		if set {
			e.SetChannel(i, cc)
		}
	}
}

// Save writes the configuration and every stream channel to w.
func (e *Engine) Save(w conf.Writer) {
	c := e.Config()
	w.Set(keyMasterGain, c.MasterGain)
	w.Set(keyShift, c.Shift)
	w.Set(keyPitch, c.Pitch)
	w.Set(keyStretch, c.Stretch)
	w.Set(keyFilterHP, c.HighPass)
	w.Set(keyFilterLP, c.LowPass)

	for i := range e.src.Channels() {
		cc := e.Channel(i)
		w.Set(channelKey(i, "enabled"), cc.Enabled)
		w.Set(channelKey(i, "level"), cc.Level)
		w.Set(channelKey(i, "pan"), cc.Pan)
	}
}
