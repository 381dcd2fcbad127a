package mixer

import (
	"fmt"
	"slices"
)

// Channel is a single input strip inside a Mix.
type Channel struct {
	Index  int     `json:"index"`
	Name   string  `json:"name"`
	Volume float64 `json:"volume"`
	Mute   bool    `json:"mute"`
	Solo   bool    `json:"solo"`
	Pan    float64 `json:"pan"`
	Level  float64 `json:"level"`
}

// Mix is a mixing bus: master fader, output gains, meters, an optional
// stereo partner (by name) and the channels it owns.
type Mix struct {
	Name       string    `json:"name"`
	Joined     bool      `json:"joined"`
	Volume     float64   `json:"volume"`
	Pan        float64   `json:"pan"`
	GainL      float64   `json:"gain_l"`
	GainR      float64   `json:"gain_r"`
	Mute       bool      `json:"mute"`
	LevelL     float64   `json:"level_l"`
	LevelR     float64   `json:"level_r"`
	StereoPair string    `json:"stereo_pair"`
	Channels   []Channel `json:"channels"`
}

// MixSpec describes one roster entry used to build the engine.
type MixSpec struct {
	Name     string
	Volume   *float64 // nil means the engine default
	Channels []string // channel names; empty means use the engine's channel count
}

func newMix(spec MixSpec, channelCount int, defaultVolume float64) *Mix {
	vol := defaultVolume
	if spec.Volume != nil {
		vol = *spec.Volume
	}
	vol = clampUnit(vol)

	names := spec.Channels
	if len(names) == 0 {
		names = make([]string, channelCount)
		for i := range names {
			names[i] = fmt.Sprintf("Ch %d", i+1)
		}
	}

	m := &Mix{
		Name:     spec.Name,
		Volume:   vol,
		GainL:    vol,
		GainR:    vol,
		Channels: make([]Channel, len(names)),
	}
	for i, name := range names {
		m.Channels[i] = Channel{Index: i, Name: name, Volume: clampUnit(defaultVolume)}
	}
	return m
}

// paired reports whether the mix currently has a stereo partner.
func (m *Mix) paired() bool { return m.StereoPair != "" }

// unpair drops the stereo link and restores the unpaired defaults. Volume
// and mute survive.
func (m *Mix) unpair() {
	m.StereoPair = ""
	m.resetUnpaired()
	m.resetChannelPans()
}

func (m *Mix) resetUnpaired() {
	m.Joined = false
	m.Pan = 0
	m.GainL = m.Volume
	m.GainR = m.Volume
}

func (m *Mix) resetChannelPans() {
	for i := range m.Channels {
		m.Channels[i].Pan = 0
	}
}

// applyPanLaw recomputes the output gains from volume and pan.
func (m *Mix) applyPanLaw() {
	m.GainL, m.GainR = ApplyStereoJoin(m.Volume, m.Pan)
}

func (m *Mix) channel(idx int) (*Channel, error) {
	if idx < 0 || idx >= len(m.Channels) {
		return nil, fmt.Errorf("%w: channel %d of mix %q (has %d)", ErrOutOfRange, idx, m.Name, len(m.Channels))
	}
	return &m.Channels[idx], nil
}

func (m *Mix) clone() Mix {
	cp := *m
	cp.Channels = slices.Clone(m.Channels)
	return cp
}
