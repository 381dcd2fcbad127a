// Package mixer holds the console's control-plane state: the mix roster,
// the gain and pan-law math, stereo pairing, simulated meters, and the
// broadcast of full-state snapshots to subscribers.
package mixer

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	logging "github.com/ipfs/go-log/v2"

	"github.com/MuellerSeb/scarlett-mixer/internal/bus"
)

var log = logging.Logger("mixer")

const (
	DefaultChannelCount      = 20
	DefaultVolume            = 0.75
	DefaultMeterInterval     = 30 * time.Millisecond
	DefaultBroadcastInterval = 30 * time.Millisecond
)

// DefaultRoster returns ten mixes named "A" through "J".
func DefaultRoster() []MixSpec {
	specs := make([]MixSpec, 0, 10)
	for c := 'A'; c <= 'J'; c++ {
		specs = append(specs, MixSpec{Name: string(c)})
	}
	return specs
}

// Options configures a new Engine. Zero values fall back to the defaults;
// DefaultVolume is a pointer so that an explicit 0 is kept.
type Options struct {
	Mixes             []MixSpec
	ChannelCount      int
	DefaultVolume     *float64
	MeterInterval     time.Duration
	BroadcastInterval time.Duration
	Clock             clock.Clock
}

// Stats counts broadcast activity since the engine was created.
type Stats struct {
	Broadcasts  uint64 `json:"broadcasts"`
	Coalesced   uint64 `json:"coalesced"`
	Subscribers int    `json:"subscribers"`
}

// Engine owns the mixer state. Every mutating operation runs under one lock,
// so pairing changes that touch several mixes are applied atomically.
type Engine struct {
	mu    sync.RWMutex
	order []string
	mixes map[string]*Mix

	bus *bus.Bus[Snapshot]
	clk clock.Clock

	// broadcast coalescing, guarded by pubMu
	pubMu         sync.Mutex
	minInterval   time.Duration
	lastBroadcast time.Time
	seq           atomic.Uint64
	broadcasts    atomic.Uint64
	coalesced     atomic.Uint64

	meterInterval time.Duration
	startOnce     sync.Once
	stopOnce      sync.Once
	started       atomic.Bool
	stop          chan struct{}
	done          chan struct{}
}

// New builds an engine from the roster in opt. Mix names must be unique and
// non-empty.
func New(opt Options) (*Engine, error) {
	if len(opt.Mixes) == 0 {
		opt.Mixes = DefaultRoster()
	}
	if opt.ChannelCount <= 0 {
		opt.ChannelCount = DefaultChannelCount
	}
	defaultVolume := DefaultVolume
	if opt.DefaultVolume != nil {
		defaultVolume = *opt.DefaultVolume
	}
	if opt.MeterInterval <= 0 {
		opt.MeterInterval = DefaultMeterInterval
	}
	if opt.BroadcastInterval <= 0 {
		opt.BroadcastInterval = DefaultBroadcastInterval
	}
	if opt.Clock == nil {
		opt.Clock = clock.New()
	}

	e := &Engine{
		mixes:         make(map[string]*Mix, len(opt.Mixes)),
		bus:           bus.New[Snapshot](),
		clk:           opt.Clock,
		minInterval:   opt.BroadcastInterval,
		meterInterval: opt.MeterInterval,
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	for _, spec := range opt.Mixes {
		if spec.Name == "" {
			return nil, fmt.Errorf("mixer: empty mix name in roster")
		}
		if _, dup := e.mixes[spec.Name]; dup {
			return nil, fmt.Errorf("mixer: duplicate mix %q in roster", spec.Name)
		}
		e.mixes[spec.Name] = newMix(spec, opt.ChannelCount, defaultVolume)
		e.order = append(e.order, spec.Name)
	}

	log.Infow("engine created", "mixes", len(e.order), "channels", opt.ChannelCount)
	return e, nil
}

// Snapshot returns the current state without publishing it.
func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snapshotLocked(e.seq.Load())
}

// Subscribe pushes the current snapshot to h and then registers it for
// future broadcasts. If the initial push fails h is not registered.
// Handlers must not call mutating engine operations.
func (e *Engine) Subscribe(h bus.Handler[Snapshot]) (string, error) {
	e.pubMu.Lock()
	defer e.pubMu.Unlock()

	if err := h(e.Snapshot()); err != nil {
		return "", fmt.Errorf("initial snapshot: %w", err)
	}
	return e.bus.Subscribe(h), nil
}

// Unsubscribe removes a subscriber registered with Subscribe.
func (e *Engine) Unsubscribe(id string) {
	e.bus.Unsubscribe(id)
}

// Stats reports broadcast counters.
func (e *Engine) Stats() Stats {
	return Stats{
		Broadcasts:  e.broadcasts.Load(),
		Coalesced:   e.coalesced.Load(),
		Subscribers: e.bus.Len(),
	}
}

// update runs fn under the state lock and, when it succeeds, requests a
// broadcast after the lock is released.
func (e *Engine) update(fn func() error) error {
	e.mu.Lock()
	err := fn()
	e.mu.Unlock()
	if err != nil {
		return err
	}
	e.requestBroadcast()
	return nil
}

func (e *Engine) lookup(name string) (*Mix, error) {
	m, ok := e.mixes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return m, nil
}

func (e *Engine) updateMix(name string, fn func(m *Mix)) error {
	return e.update(func() error {
		m, err := e.lookup(name)
		if err != nil {
			return err
		}
		fn(m)
		return nil
	})
}

func (e *Engine) updateChannel(name string, idx int, fn func(c *Channel)) error {
	return e.update(func() error {
		m, err := e.lookup(name)
		if err != nil {
			return err
		}
		c, err := m.channel(idx)
		if err != nil {
			return err
		}
		fn(c)
		return nil
	})
}

// SetVolume sets the master fader. A paired mix follows the pan law; an
// unpaired mix sends the volume to both sides.
func (e *Engine) SetVolume(name string, value float64) error {
	return e.updateMix(name, func(m *Mix) {
		m.Volume = clampUnit(value)
		if m.paired() {
			m.Joined = true
			m.applyPanLaw()
			return
		}
		m.resetUnpaired()
	})
}

// SetPan moves the master pan. Without a stereo partner pan is pinned to 0.
func (e *Engine) SetPan(name string, value float64) error {
	return e.updateMix(name, func(m *Mix) {
		if !m.paired() {
			m.Pan = 0
			return
		}
		m.Pan = clampPan(value)
		m.applyPanLaw()
	})
}

// SetJoin switches between pan-law gains and independent L/R gains. Joining
// requires a stereo partner; without one the mix is reset to unpaired
// defaults whatever was requested.
func (e *Engine) SetJoin(name string, joined bool) error {
	return e.updateMix(name, func(m *Mix) {
		if !m.paired() {
			m.resetUnpaired()
			return
		}
		was := m.Joined
		m.Joined = joined
		if joined && !was {
			m.applyPanLaw()
		}
	})
}

// SetLR overrides the output gains independently. A nil side is left as is.
// An unpaired mix always sends its volume to both sides, so the override
// only lands on paired mixes.
func (e *Engine) SetLR(name string, left, right *float64) error {
	return e.updateMix(name, func(m *Mix) {
		if !m.paired() {
			m.resetUnpaired()
			return
		}
		if left != nil {
			m.GainL = clampUnit(*left)
		}
		if right != nil {
			m.GainR = clampUnit(*right)
		}
	})
}

// SetMixMute mutes or unmutes the whole mix.
func (e *Engine) SetMixMute(name string, muted bool) error {
	return e.updateMix(name, func(m *Mix) {
		m.Mute = muted
	})
}

// SetChannelVolume sets one channel's fader.
func (e *Engine) SetChannelVolume(name string, idx int, value float64) error {
	return e.updateChannel(name, idx, func(c *Channel) {
		c.Volume = clampUnit(value)
	})
}

// SetChannelMute mutes or unmutes one channel.
func (e *Engine) SetChannelMute(name string, idx int, muted bool) error {
	return e.updateChannel(name, idx, func(c *Channel) {
		c.Mute = muted
	})
}

// SetChannelSolo solos or unsolos one channel.
func (e *Engine) SetChannelSolo(name string, idx int, solo bool) error {
	return e.updateChannel(name, idx, func(c *Channel) {
		c.Solo = solo
	})
}

// SetChannelPan sets one channel's pan position.
func (e *Engine) SetChannelPan(name string, idx int, value float64) error {
	return e.updateChannel(name, idx, func(c *Channel) {
		c.Pan = clampPan(value)
	})
}

// Start launches the meter process. Calling Start more than once, or after
// Close, has no effect.
func (e *Engine) Start(ctx context.Context) {
	e.startOnce.Do(func() {
		e.started.Store(true)
		ticker := e.clk.Ticker(e.meterInterval)
		go e.runMeters(ctx, ticker)
		log.Infow("meter process started", "interval", e.meterInterval)
	})
}

// Close stops the meter process, waits for it to exit and drops all
// subscribers. The engine stays usable for direct operations.
func (e *Engine) Close() {
	e.stopOnce.Do(func() {
		// block a Start racing with Close
		e.startOnce.Do(func() {})
		close(e.stop)
		if e.started.Load() {
			<-e.done
		}
		e.bus.Close()
		log.Info("engine closed")
	})
}
