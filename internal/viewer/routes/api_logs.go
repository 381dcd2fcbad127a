package routes

import (
	"net/http"
	"time"
)

type LogEntry struct {
	TS  time.Time `json:"ts"`
	Msg string    `json:"msg"`
}

// Logs is the log line source behind /api/logs.
type Logs interface {
	Entries(n int) []LogEntry
	Subscribe() (ch chan LogEntry, cancel func())
}

func registerAPILogRoutes(mux *http.ServeMux, d Deps) {
	if d.Logs == nil {
		return
	}

	// GET /api/logs?limit=N: newest N lines, oldest first
	handleGet(mux, "/api/logs", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, d.Logs.Entries(queryInt(r, "limit", 0)))
	})

	// GET /api/logs/stream: SSE, new lines only
	handleGet(mux, "/api/logs/stream", func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := sseHeaders(w)
		if !ok {
			return
		}
		ch, cancel := d.Logs.Subscribe()
		defer cancel()

		for {
			select {
			case <-r.Context().Done():
				return
			case e, ok := <-ch:
				if !ok {
					return
				}
				if err := writeSSE(w, "log", e); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	})
}
