// internal/app/run.go

package app

import (
	"context"
	"time"

	"github.com/MuellerSeb/scarlett-mixer/internal/config"
	"github.com/MuellerSeb/scarlett-mixer/internal/control"
	"github.com/MuellerSeb/scarlett-mixer/internal/mixer"
	"github.com/MuellerSeb/scarlett-mixer/internal/mqttctl"
	"github.com/MuellerSeb/scarlett-mixer/internal/storage"
	"github.com/MuellerSeb/scarlett-mixer/internal/surface"
	"github.com/MuellerSeb/scarlett-mixer/internal/util"
	"github.com/MuellerSeb/scarlett-mixer/internal/viewer"
)

type Options struct {
	Dir     string
	CfgPath string // watched for live changes when set
	Cfg     config.Config
}

// EngineOptions translates the mixer config section.
func EngineOptions(c config.Mixer) mixer.Options {
	specs := make([]mixer.MixSpec, 0, len(c.Roster))
	for _, m := range c.Roster {
		specs = append(specs, mixer.MixSpec{Name: m.Name, Volume: m.Volume, Channels: m.Channels})
	}
	return mixer.Options{
		Mixes:             specs,
		ChannelCount:      c.ChannelCount,
		DefaultVolume:     &c.DefaultVolume,
		MeterInterval:     time.Duration(c.MeterIntervalMs) * time.Millisecond,
		BroadcastInterval: time.Duration(c.BroadcastIntervalMs) * time.Millisecond,
	}
}

// Run wires the engine to every configured transport and serves until ctx
// is done. Shutdown stops the HTTP server first, then the control surfaces,
// then the engine (waiting for the meter process) and finally the journal.
func Run(ctx context.Context, opt Options) error {
	cfg := opt.Cfg
	if err := setupLogging(cfg.Log); err != nil {
		return err
	}
	logBuf := viewer.NewLogBuffer(800)
	stopPipe := pipeLogs(logBuf)
	defer stopPipe()

	listenAddr, url := NormalizeLocalViewer(cfg.Viewer.HTTPAddr)
	logBanner(opt.Dir, opt.CfgPath, url)

	// ── Journal
	var journal *storage.Journal
	if cfg.Journal.Enabled {
		path := ""
		if cfg.Journal.Path != "" {
			path = util.ResolvePath(opt.Dir, cfg.Journal.Path)
		}
		j, err := storage.Open(path, cfg.Journal.Keep)
		if err != nil {
			return err
		}
		defer j.Close()
		journal = j
	}

	// ── Engine
	engine, err := mixer.New(EngineOptions(cfg.Mixer))
	if err != nil {
		return err
	}
	defer engine.Close()
	dispatcher := control.NewDispatcher(engine, journal)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	engine.Start(ctx)

	// ── MQTT
	var bridge *mqttctl.Bridge
	if cfg.MQTT.Enabled {
		bridge = mqttctl.New(cfg.MQTT, dispatcher, nil)
		if err := bridge.Connect(); err != nil {
			// the client keeps retrying in the background
			log.Warnw("mqtt not connected yet", "broker", cfg.MQTT.Broker, "err", err)
		}
		if err := bridge.Start(); err != nil {
			return err
		}
		defer bridge.Close()
	}

	// ── MIDI
	var surf *surface.Surface
	if cfg.MIDI.Enabled {
		surf = surface.New(dispatcher, cfg.MIDI.CC)
		if err := surf.Open(cfg.MIDI.Port); err != nil {
			log.Warnw("midi surface unavailable", "port", cfg.MIDI.Port, "err", err)
		}
		defer surf.Close()
	}

	// ── Config reload
	if opt.CfgPath != "" {
		go func() {
			err := config.Watch(ctx, opt.CfgPath, func(c config.Config) {
				if err := applyLevels(c.Log); err != nil {
					log.Warnw("log levels not applied", "err", err)
				}
				if surf != nil {
					surf.SetMap(c.MIDI.CC)
				}
			})
			if err != nil {
				log.Warnw("config watcher stopped", "err", err)
			}
		}()
	}

	status := func() map[string]any {
		out := map[string]any{}
		if bridge != nil {
			out["mqtt"] = bridge.Stats()
		}
		if journal != nil {
			if n, err := journal.Count(); err == nil {
				out["journal"] = map[string]int{"entries": n}
			}
		}
		return out
	}

	err = viewer.Start(ctx, listenAddr, viewer.Viewer{
		Dispatcher: dispatcher,
		Logs:       logBuf,
		Journal:    journal,
		Status:     status,
	})
	if err != nil {
		return err
	}
	log.Info("shutting down")
	return nil
}
