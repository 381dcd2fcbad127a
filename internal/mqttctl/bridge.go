// Package mqttctl bridges the mixer to an MQTT broker: commands arrive on
// <prefix>/cmd, snapshots leave on <prefix>/state (retained).
package mqttctl

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	logging "github.com/ipfs/go-log/v2"

	"github.com/MuellerSeb/scarlett-mixer/internal/config"
	"github.com/MuellerSeb/scarlett-mixer/internal/control"
	"github.com/MuellerSeb/scarlett-mixer/internal/mixer"
)

var log = logging.Logger("mqtt")

// ErrorMessage is published on <prefix>/error for commands that fail.
type ErrorMessage struct {
	Type  string `json:"type"`
	Op    string `json:"op,omitempty"`
	Error string `json:"error"`
}

// Stats counts bridge activity.
type Stats struct {
	Connected bool   `json:"connected"`
	Published uint64 `json:"published"`
	Skipped   uint64 `json:"skipped"`
	Commands  uint64 `json:"commands"`
	Errors    uint64 `json:"errors"`
}

type Bridge struct {
	cfg      config.MQTT
	d        *control.Dispatcher
	clk      clock.Clock
	interval time.Duration
	client   mqtt.Client
	subID    string

	mu    sync.Mutex
	last  time.Time
	stats Stats
}

// New creates a bridge. It does nothing until Connect and Start are called.
func New(cfg config.MQTT, d *control.Dispatcher, clk clock.Clock) *Bridge {
	if clk == nil {
		clk = clock.New()
	}
	return &Bridge{
		cfg:      cfg,
		d:        d,
		clk:      clk,
		interval: time.Duration(cfg.PublishIntervalMs) * time.Millisecond,
	}
}

func (b *Bridge) topic(leaf string) string { return b.cfg.TopicPrefix + "/" + leaf }

// Connect dials the broker. The command topic is (re)subscribed on every
// successful connection, so reconnects keep receiving commands.
func (b *Bridge) Connect() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(b.cfg.Broker)
	opts.SetClientID(b.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		b.setConnected(true)
		log.Infow("mqtt connection established", "broker", b.cfg.Broker, "client_id", b.cfg.ClientID)
		token := c.Subscribe(b.topic("cmd"), 1, b.handleMessage)
		if !token.WaitTimeout(5 * time.Second) {
			log.Warnw("command subscription timeout", "topic", b.topic("cmd"))
			return
		}
		if err := token.Error(); err != nil {
			log.Warnw("command subscription failed", "topic", b.topic("cmd"), "err", err)
		}
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		b.setConnected(false)
		log.Warnw("mqtt connection lost, will auto-reconnect", "broker", b.cfg.Broker, "err", err)
	}

	b.client = mqtt.NewClient(opts)
	log.Infow("connecting to mqtt broker", "broker", b.cfg.Broker)

	token := b.client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}
	return nil
}

// Start subscribes the bridge to engine snapshots.
func (b *Bridge) Start() error {
	id, err := b.d.Engine().Subscribe(b.publishSnapshot)
	if err != nil {
		return fmt.Errorf("subscribe to engine: %w", err)
	}
	b.subID = id
	return nil
}

// Close unsubscribes from the engine and disconnects from the broker.
func (b *Bridge) Close() {
	if b.subID != "" {
		b.d.Engine().Unsubscribe(b.subID)
		b.subID = ""
	}
	if b.client != nil && b.client.IsConnected() {
		b.client.Disconnect(250)
		log.Info("mqtt disconnected")
	}
	b.setConnected(false)
}

// Stats reports counters.
func (b *Bridge) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

func (b *Bridge) setConnected(v bool) {
	b.mu.Lock()
	b.stats.Connected = v
	b.mu.Unlock()
}

// publishSnapshot forwards at most one snapshot per interval. It does not
// wait on the broker and always returns nil; the engine keeps the bridge
// subscribed through broker outages.
func (b *Bridge) publishSnapshot(s mixer.Snapshot) error {
	now := b.clk.Now()
	b.mu.Lock()
	if !b.last.IsZero() && now.Sub(b.last) < b.interval {
		b.stats.Skipped++
		b.mu.Unlock()
		return nil
	}
	b.last = now
	b.mu.Unlock()

	payload, err := Encode(b.cfg.Encoding, s)
	if err != nil {
		b.countError()
		log.Warnw("encode snapshot", "seq", s.Seq, "err", err)
		return nil
	}
	if b.client == nil || !b.client.IsConnected() {
		b.countError()
		return nil
	}
	b.client.Publish(b.topic("state"), 0, true, payload)

	b.mu.Lock()
	b.stats.Published++
	b.mu.Unlock()
	return nil
}

func (b *Bridge) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	var cmd control.Command
	if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
		b.reject("", fmt.Errorf("invalid JSON: %w", err))
		return
	}

	b.mu.Lock()
	b.stats.Commands++
	b.mu.Unlock()

	if err := b.d.Apply("mqtt", cmd); err != nil {
		b.reject(cmd.Op, err)
	}
}

func (b *Bridge) reject(op string, err error) {
	b.countError()
	log.Warnw("mqtt command rejected", "op", op, "err", err)
	if b.client == nil || !b.client.IsConnected() {
		return
	}
	payload, _ := json.Marshal(ErrorMessage{Type: "error", Op: op, Error: err.Error()})
	b.client.Publish(b.topic("error"), 0, false, payload)
}

func (b *Bridge) countError() {
	b.mu.Lock()
	b.stats.Errors++
	b.mu.Unlock()
}
