package routes

import (
	"net/http"

	"github.com/MuellerSeb/scarlett-mixer/internal/control"
)

func registerMixerRoutes(mux *http.ServeMux, d Deps) {
	engine := d.Dispatcher.Engine()

	// GET /api/snapshot: full state
	handleGet(mux, "/api/snapshot", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, engine.Snapshot())
	})

	// GET /api/mixes/{name}: one mix
	handleGet(mux, "/api/mixes/{name}", func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")
		m, ok := engine.Snapshot().Mix(name)
		if !ok {
			http.Error(w, "mix not found: "+name, http.StatusNotFound)
			return
		}
		writeJSON(w, m)
	})

	// GET /api/ops: supported command ops
	handleGet(mux, "/api/ops", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, control.Ops())
	})

	// POST /api/command: {op, data}; answers with the state after the command
	handlePost(mux, "/api/command", func(w http.ResponseWriter, r *http.Request, req control.Command) {
		if req.Op == "" {
			http.Error(w, "missing op", http.StatusBadRequest)
			return
		}
		if err := d.Dispatcher.Apply("http", req); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, engine.Snapshot())
	})

	// GET /api/stats: broadcast counters plus transport sections
	handleGet(mux, "/api/stats", func(w http.ResponseWriter, r *http.Request) {
		out := map[string]any{"engine": engine.Stats()}
		if d.Status != nil {
			for k, v := range d.Status() {
				out[k] = v
			}
		}
		writeJSON(w, out)
	})
}
