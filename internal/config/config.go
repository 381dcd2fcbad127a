package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MuellerSeb/scarlett-mixer/internal/util"
)

// FileName is the config file created by Ensure inside a console directory.
const FileName = "mixer.json"

type Config struct {
	Mixer   Mixer   `json:"mixer" yaml:"mixer"`
	Viewer  Viewer  `json:"viewer" yaml:"viewer"`
	Log     Log     `json:"log" yaml:"log"`
	MQTT    MQTT    `json:"mqtt" yaml:"mqtt"`
	MIDI    MIDI    `json:"midi" yaml:"midi"`
	Journal Journal `json:"journal" yaml:"journal"`
}

type Mixer struct {
	Roster              []MixEntry `json:"roster" yaml:"roster"`
	ChannelCount        int        `json:"channel_count" yaml:"channel_count"`
	DefaultVolume       float64    `json:"default_volume" yaml:"default_volume"`
	MeterIntervalMs     int        `json:"meter_interval_ms" yaml:"meter_interval_ms"`
	BroadcastIntervalMs int        `json:"broadcast_interval_ms" yaml:"broadcast_interval_ms"`
}

// MixEntry is one roster slot. A missing Volume and empty Channels fall back
// to the mixer-wide defaults; an explicit volume of 0 is kept.
type MixEntry struct {
	Name     string   `json:"name" yaml:"name"`
	Volume   *float64 `json:"volume,omitempty" yaml:"volume,omitempty"`
	Channels []string `json:"channels,omitempty" yaml:"channels,omitempty"`
}

type Viewer struct {
	HTTPAddr string `json:"http_addr" yaml:"http_addr"`
}

type Log struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"` // color, nocolor, json

	// Per-subsystem overrides, e.g. {"mixer": "debug"}.
	Subsystems map[string]string `json:"subsystems,omitempty" yaml:"subsystems,omitempty"`
}

type MQTT struct {
	Enabled           bool   `json:"enabled" yaml:"enabled"`
	Broker            string `json:"broker" yaml:"broker"`
	ClientID          string `json:"client_id" yaml:"client_id"`
	TopicPrefix       string `json:"topic_prefix" yaml:"topic_prefix"`
	Encoding          string `json:"encoding" yaml:"encoding"` // json or msgpack
	PublishIntervalMs int    `json:"publish_interval_ms" yaml:"publish_interval_ms"`
}

type MIDI struct {
	Enabled bool    `json:"enabled" yaml:"enabled"`
	Port    string  `json:"port" yaml:"port"` // substring of the input port name
	CC      MIDIMap `json:"cc" yaml:"cc"`
}

// MIDIMap assigns control change numbers to mixer parameters.
type MIDIMap struct {
	Volume            uint8 `json:"volume" yaml:"volume"`
	Pan               uint8 `json:"pan" yaml:"pan"`
	Mute              uint8 `json:"mute" yaml:"mute"`
	ChannelVolumeBase uint8 `json:"channel_volume_base" yaml:"channel_volume_base"`
	ChannelMuteBase   uint8 `json:"channel_mute_base" yaml:"channel_mute_base"`
}

type Journal struct {
	Enabled bool `json:"enabled" yaml:"enabled"`

	// SQLite database path relative to the console directory.
	// Empty keeps the journal in memory.
	Path string `json:"path" yaml:"path"`
	Keep int    `json:"keep" yaml:"keep"`
}

func Default() Config {
	roster := make([]MixEntry, 0, 10)
	for c := 'A'; c <= 'J'; c++ {
		roster = append(roster, MixEntry{Name: string(c)})
	}
	return Config{
		Mixer: Mixer{
			Roster:              roster,
			ChannelCount:        20,
			DefaultVolume:       0.75,
			MeterIntervalMs:     30,
			BroadcastIntervalMs: 30,
		},
		Viewer: Viewer{
			HTTPAddr: "127.0.0.1:8080",
		},
		Log: Log{
			Level:  "info",
			Format: "color",
		},
		MQTT: MQTT{
			Enabled:           false,
			Broker:            "tcp://127.0.0.1:1883",
			ClientID:          "scarlett-mixer",
			TopicPrefix:       "scarlett",
			Encoding:          "json",
			PublishIntervalMs: 200,
		},
		MIDI: MIDI{
			Enabled: false,
			CC: MIDIMap{
				Volume:            7,
				Pan:               10,
				Mute:              14,
				ChannelVolumeBase: 20,
				ChannelMuteBase:   50,
			},
		},
		Journal: Journal{
			Enabled: true,
			Path:    "",
			Keep:    1000,
		},
	}
}

func (c *Config) Validate() error {
	// Mixer
	if len(c.Mixer.Roster) == 0 {
		return errors.New("mixer.roster must not be empty")
	}
	seen := make(map[string]bool, len(c.Mixer.Roster))
	for i, m := range c.Mixer.Roster {
		name := strings.TrimSpace(m.Name)
		if name == "" {
			return fmt.Errorf("mixer.roster[%d].name is required", i)
		}
		if seen[name] {
			return fmt.Errorf("mixer.roster: duplicate mix %q", name)
		}
		seen[name] = true
		if m.Volume != nil && (*m.Volume < 0 || *m.Volume > 1) {
			return fmt.Errorf("mixer.roster[%d].volume must be 0..1", i)
		}
	}
	if c.Mixer.ChannelCount < 1 || c.Mixer.ChannelCount > 64 {
		return errors.New("mixer.channel_count must be 1..64")
	}
	if c.Mixer.DefaultVolume < 0 || c.Mixer.DefaultVolume > 1 {
		return errors.New("mixer.default_volume must be 0..1")
	}
	if c.Mixer.MeterIntervalMs < 5 {
		return errors.New("mixer.meter_interval_ms must be >= 5")
	}
	if ms := c.Mixer.BroadcastIntervalMs; ms != 0 && (ms < 30 || ms > 50) {
		return errors.New("mixer.broadcast_interval_ms must be 0 (default) or 30..50")
	}

	// Log
	switch strings.ToLower(c.Log.Format) {
	case "", "color", "nocolor", "json":
	default:
		return fmt.Errorf("log.format %q must be color, nocolor or json", c.Log.Format)
	}

	// MQTT
	if c.MQTT.Enabled {
		if strings.TrimSpace(c.MQTT.Broker) == "" {
			return errors.New("mqtt.broker is required when mqtt is enabled")
		}
		if strings.TrimSpace(c.MQTT.TopicPrefix) == "" {
			return errors.New("mqtt.topic_prefix is required when mqtt is enabled")
		}
		if c.MQTT.PublishIntervalMs < 0 {
			return errors.New("mqtt.publish_interval_ms must be >= 0")
		}
	}
	switch c.MQTT.Encoding {
	case "", "json", "msgpack":
	default:
		return fmt.Errorf("mqtt.encoding %q must be json or msgpack", c.MQTT.Encoding)
	}

	// MIDI
	cc := c.MIDI.CC
	for name, v := range map[string]uint8{"volume": cc.Volume, "pan": cc.Pan, "mute": cc.Mute} {
		if v > 127 {
			return fmt.Errorf("midi.cc.%s must be 0..127", name)
		}
	}
	if int(cc.ChannelVolumeBase)+c.Mixer.ChannelCount > 128 {
		return errors.New("midi.cc.channel_volume_base leaves no room for every channel")
	}
	if int(cc.ChannelMuteBase)+c.Mixer.ChannelCount > 128 {
		return errors.New("midi.cc.channel_mute_base leaves no room for every channel")
	}

	// Journal
	if c.Journal.Keep < 0 {
		return errors.New("journal.keep must be >= 0")
	}

	return nil
}

// isYAML reports whether path should be read and written as YAML.
func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func decode(path string, b []byte, cfg *Config) error {
	b = stripBOM(b)
	if isYAML(path) {
		return yaml.Unmarshal(b, cfg)
	}
	return json.Unmarshal(b, cfg)
}

func Load(path string) (Config, error) {
	cfg, err := LoadPartial(path)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadPartial reads a config file without validation. Missing fields keep
// their defaults.
func LoadPartial(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()
	// a roster in the file replaces the default roster instead of merging
	cfg.Mixer.Roster = nil
	if err := decode(path, b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	if len(cfg.Mixer.Roster) == 0 {
		cfg.Mixer.Roster = Default().Mixer.Roster
	}
	return cfg, nil
}

// stripBOM removes a UTF-8 byte order mark if present.
func stripBOM(b []byte) []byte {
	if len(b) >= 3 && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		return b[3:]
	}
	return b
}

func Save(path string, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if !isYAML(path) {
		return util.WriteJSONFile(path, cfg)
	}

	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return util.WriteFile(path, b)
}

// Ensure loads config if it exists; otherwise creates a default config file.
// Returns (cfg, createdNew, err).
func Ensure(path string) (Config, bool, error) {
	if _, err := os.Stat(path); err == nil {
		cfg, err := Load(path)
		return cfg, false, err
	} else if !os.IsNotExist(err) {
		return Config{}, false, err
	}

	cfg := Default()
	if err := Save(path, cfg); err != nil {
		return Config{}, false, fmt.Errorf("create default config: %w", err)
	}
	return cfg, true, nil
}
