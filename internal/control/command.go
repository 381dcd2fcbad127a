// Package control decodes {op, data} commands coming from any transport and
// applies them to the mixer engine.
package control

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	logging "github.com/ipfs/go-log/v2"

	"github.com/MuellerSeb/scarlett-mixer/internal/mixer"
	"github.com/MuellerSeb/scarlett-mixer/internal/storage"
)

var log = logging.Logger("control")

var (
	ErrUnknownOp  = errors.New("unknown op")
	ErrBadPayload = errors.New("bad payload")
)

// Command is the wire form shared by the websocket, HTTP and MQTT transports.
type Command struct {
	Op   string          `json:"op"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewCommand builds a command from a payload value.
func NewCommand(op string, data any) (Command, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return Command{}, err
	}
	return Command{Op: op, Data: b}, nil
}

// Payloads. Mix is the target mix name, Channel a zero-based strip index.
type (
	MixValue struct {
		Mix   string  `json:"mix"`
		Value float64 `json:"value"`
	}
	MixJoin struct {
		Mix    string `json:"mix"`
		Joined bool   `json:"joined"`
	}
	// MixLR carries optional sides. A missing or negative side is left alone.
	MixLR struct {
		Mix string   `json:"mix"`
		L   *float64 `json:"l,omitempty"`
		R   *float64 `json:"r,omitempty"`
	}
	MixMute struct {
		Mix   string `json:"mix"`
		Muted bool   `json:"muted"`
	}
	MixPair struct {
		Mix    string `json:"mix"`
		Target string `json:"target"`
	}
	ChannelValue struct {
		Mix     string  `json:"mix"`
		Channel int     `json:"channel"`
		Value   float64 `json:"value"`
	}
	ChannelMute struct {
		Mix     string `json:"mix"`
		Channel int    `json:"channel"`
		Muted   bool   `json:"muted"`
	}
	ChannelSolo struct {
		Mix     string `json:"mix"`
		Channel int    `json:"channel"`
		Solo    bool   `json:"solo"`
	}
)

type handler func(e *mixer.Engine, data json.RawMessage) error

// decodeInto wraps fn so it receives the decoded payload.
func decodeInto[T any](fn func(e *mixer.Engine, p T) error) handler {
	return func(e *mixer.Engine, data json.RawMessage) error {
		var p T
		if len(data) == 0 {
			return fmt.Errorf("%w: missing data", ErrBadPayload)
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("%w: %v", ErrBadPayload, err)
		}
		return fn(e, p)
	}
}

func setVolume(e *mixer.Engine, p MixValue) error { return e.SetVolume(p.Mix, p.Value) }

var handlers = map[string]handler{
	"set_gain":   decodeInto(setVolume),
	"set_volume": decodeInto(setVolume),
	"set_pan": decodeInto(func(e *mixer.Engine, p MixValue) error {
		return e.SetPan(p.Mix, p.Value)
	}),
	"set_join": decodeInto(func(e *mixer.Engine, p MixJoin) error {
		return e.SetJoin(p.Mix, p.Joined)
	}),
	"set_lr": decodeInto(func(e *mixer.Engine, p MixLR) error {
		return e.SetLR(p.Mix, side(p.L), side(p.R))
	}),
	"set_mute": decodeInto(func(e *mixer.Engine, p MixMute) error {
		return e.SetMixMute(p.Mix, p.Muted)
	}),
	"set_pair": decodeInto(func(e *mixer.Engine, p MixPair) error {
		return e.SetStereoPair(p.Mix, p.Target)
	}),
	"set_channel_volume": decodeInto(func(e *mixer.Engine, p ChannelValue) error {
		return e.SetChannelVolume(p.Mix, p.Channel, p.Value)
	}),
	"set_channel_pan": decodeInto(func(e *mixer.Engine, p ChannelValue) error {
		return e.SetChannelPan(p.Mix, p.Channel, p.Value)
	}),
	"set_channel_mute": decodeInto(func(e *mixer.Engine, p ChannelMute) error {
		return e.SetChannelMute(p.Mix, p.Channel, p.Muted)
	}),
	"set_channel_solo": decodeInto(func(e *mixer.Engine, p ChannelSolo) error {
		return e.SetChannelSolo(p.Mix, p.Channel, p.Solo)
	}),
}

// side maps a negative gain to "no change".
func side(v *float64) *float64 {
	if v == nil || *v < 0 {
		return nil
	}
	return v
}

// Ops lists the supported op names, sorted.
func Ops() []string {
	ops := make([]string, 0, len(handlers))
	for op := range handlers {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}

// Dispatcher applies commands to an engine and records each one in the
// journal, when there is one.
type Dispatcher struct {
	engine  *mixer.Engine
	journal *storage.Journal
}

func NewDispatcher(engine *mixer.Engine, journal *storage.Journal) *Dispatcher {
	return &Dispatcher{engine: engine, journal: journal}
}

// Engine returns the engine commands are applied to.
func (d *Dispatcher) Engine() *mixer.Engine { return d.engine }

// Apply runs cmd. source names the transport ("ws", "http", "mqtt", "midi")
// and is only used for the journal and logs.
func (d *Dispatcher) Apply(source string, cmd Command) error {
	h, ok := handlers[cmd.Op]
	var err error
	if !ok {
		err = fmt.Errorf("%w: %q", ErrUnknownOp, cmd.Op)
	} else {
		err = h(d.engine, cmd.Data)
	}

	if err != nil {
		log.Debugw("command rejected", "source", source, "op", cmd.Op, "err", err)
	}
	d.record(source, cmd, err)
	return err
}

func (d *Dispatcher) record(source string, cmd Command, applyErr error) {
	if d.journal == nil {
		return
	}
	e := storage.Entry{Source: source, Op: cmd.Op, Data: cmd.Data}
	if applyErr != nil {
		e.Error = applyErr.Error()
	}
	if _, err := d.journal.Append(e); err != nil {
		log.Warnw("journal append failed", "op", cmd.Op, "err", err)
	}
}
