// Package viewer serves the mixer over HTTP: JSON snapshots and commands,
// server-sent events, a websocket control channel, logs and the journal.
package viewer

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	logging "github.com/ipfs/go-log/v2"

	"github.com/MuellerSeb/scarlett-mixer/internal/control"
	"github.com/MuellerSeb/scarlett-mixer/internal/storage"
	"github.com/MuellerSeb/scarlett-mixer/internal/viewer/routes"
)

var log = logging.Logger("viewer")

type Viewer struct {
	Dispatcher *control.Dispatcher
	Logs       *LogBuffer
	Journal    *storage.Journal // nil when the journal is disabled

	// Status returns extra sections for /api/stats (e.g. "mqtt").
	Status func() map[string]any
}

// Handler builds the HTTP handler for v.
func Handler(v Viewer) http.Handler {
	mux := http.NewServeMux()
	deps := routes.Deps{
		Dispatcher: v.Dispatcher,
		Journal:    v.Journal,
		Status:     v.Status,
	}
	if v.Logs != nil {
		deps.Logs = v.Logs
	}
	routes.Register(mux, deps)
	return noCache(mux)
}

// Start serves v on addr until ctx is done. Request contexts derive from
// ctx, so streaming handlers end when it is cancelled.
func Start(ctx context.Context, addr string, v Viewer) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           Handler(v),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warnw("http shutdown", "err", err)
		}
	}()

	log.Infow("http listening", "addr", addr)
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		<-stopped
		return nil
	}
	return err
}
