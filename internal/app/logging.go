package app

import (
	"fmt"
	"io"
	"strings"

	logging "github.com/ipfs/go-log/v2"

	"github.com/MuellerSeb/scarlett-mixer/internal/config"
)

var log = logging.Logger("app")

func logFormat(name string) logging.LogFormat {
	switch strings.ToLower(name) {
	case "json":
		return logging.JSONOutput
	case "nocolor":
		return logging.PlaintextOutput
	}
	return logging.ColorizedOutput
}

// setupLogging configures go-log output and levels from c.
func setupLogging(c config.Log) error {
	lvl, err := logging.LevelFromString(levelOrDefault(c.Level))
	if err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	logging.SetupLogging(logging.Config{
		Format: logFormat(c.Format),
		Level:  lvl,
		Stderr: true,
	})
	return applyLevels(c)
}

// applyLevels sets the global level and then the per-subsystem overrides.
// It is also called when the config file changes.
func applyLevels(c config.Log) error {
	lvl, err := logging.LevelFromString(levelOrDefault(c.Level))
	if err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	logging.SetAllLoggers(lvl)
	for name, level := range c.Subsystems {
		if err := logging.SetLogLevel(name, level); err != nil {
			return fmt.Errorf("log.subsystems.%s: %w", name, err)
		}
	}
	return nil
}

func levelOrDefault(l string) string {
	if strings.TrimSpace(l) == "" {
		return "info"
	}
	return l
}

// pipeLogs copies every log line into w until the returned stop func is called.
func pipeLogs(w io.Writer) (stop func()) {
	r := logging.NewPipeReader(logging.PipeFormat(logging.PlaintextOutput))
	go func() {
		_, _ = io.Copy(w, r)
	}()
	return func() { _ = r.Close() }
}
