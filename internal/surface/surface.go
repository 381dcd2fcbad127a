// Package surface maps a MIDI control surface onto mixer commands. MIDI
// channel n drives the n-th mix of the roster.
package surface

import (
	"fmt"
	"sync"

	logging "github.com/ipfs/go-log/v2"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"github.com/MuellerSeb/scarlett-mixer/internal/config"
	"github.com/MuellerSeb/scarlett-mixer/internal/control"
)

var log = logging.Logger("midi")

type Surface struct {
	d        *control.Dispatcher
	mixes    []string
	channels int

	mu sync.RWMutex
	cc config.MIDIMap

	in   drivers.In
	stop func()
}

// New builds a surface for the dispatcher's roster using the given mapping.
func New(d *control.Dispatcher, cc config.MIDIMap) *Surface {
	snap := d.Engine().Snapshot()
	channels := 0
	for _, name := range snap.Order {
		channels = max(channels, len(snap.Mixes[name].Channels))
	}
	return &Surface{d: d, mixes: snap.Order, channels: channels, cc: cc}
}

// SetMap swaps the controller mapping; used on config reload.
func (s *Surface) SetMap(cc config.MIDIMap) {
	s.mu.Lock()
	s.cc = cc
	s.mu.Unlock()
}

// Open starts listening on the first input port whose name contains port.
// A MIDI driver must be registered by the binary for any port to show up.
func (s *Surface) Open(port string) error {
	in, err := midi.FindInPort(port)
	if err != nil {
		return fmt.Errorf("midi input %q: %w", port, err)
	}
	if err := in.Open(); err != nil {
		return fmt.Errorf("open midi input %q: %w", in.String(), err)
	}

	stop, err := midi.ListenTo(in, func(msg midi.Message, _ int32) {
		if err := s.Handle(msg); err != nil {
			log.Debugw("midi message rejected", "msg", msg.String(), "err", err)
		}
	}, midi.HandleError(func(err error) {
		log.Warnw("midi listener error", "port", in.String(), "err", err)
	}))
	if err != nil {
		_ = in.Close()
		return fmt.Errorf("listen on %q: %w", in.String(), err)
	}

	s.in, s.stop = in, stop
	log.Infow("midi input connected", "port", in.String())
	return nil
}

// Close stops the listener and closes the port.
func (s *Surface) Close() {
	if s.stop != nil {
		s.stop()
		s.stop = nil
	}
	if s.in != nil {
		_ = s.in.Close()
		s.in = nil
	}
}

// Handle applies one MIDI message. Anything that is not a mapped control
// change is ignored.
func (s *Surface) Handle(msg midi.Message) error {
	var ch, cc, val uint8
	if !msg.GetControlChange(&ch, &cc, &val) {
		return nil
	}
	if int(ch) >= len(s.mixes) {
		return nil
	}
	mix := s.mixes[ch]

	s.mu.RLock()
	m := s.cc
	s.mu.RUnlock()

	var (
		op   string
		data any
	)
	switch {
	case cc == m.Volume:
		op, data = "set_volume", control.MixValue{Mix: mix, Value: unit(val)}
	case cc == m.Pan:
		op, data = "set_pan", control.MixValue{Mix: mix, Value: bipolar(val)}
	case cc == m.Mute:
		op, data = "set_mute", control.MixMute{Mix: mix, Muted: val >= 64}
	case s.inBlock(cc, m.ChannelVolumeBase):
		op, data = "set_channel_volume", control.ChannelValue{Mix: mix, Channel: int(cc - m.ChannelVolumeBase), Value: unit(val)}
	case s.inBlock(cc, m.ChannelMuteBase):
		op, data = "set_channel_mute", control.ChannelMute{Mix: mix, Channel: int(cc - m.ChannelMuteBase), Muted: val >= 64}
	default:
		return nil
	}

	cmd, err := control.NewCommand(op, data)
	if err != nil {
		return err
	}
	return s.d.Apply("midi", cmd)
}

func (s *Surface) inBlock(cc, base uint8) bool {
	return cc >= base && int(cc-base) < s.channels
}

// unit scales a 7-bit value to [0,1].
func unit(v uint8) float64 { return float64(v) / 127 }

// bipolar maps 0..127 to [-1,1] with 64 at center.
func bipolar(v uint8) float64 {
	p := (float64(v) - 64) / 63
	return max(-1, min(1, p))
}
