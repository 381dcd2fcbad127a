package routes

import "net/http"

func registerJournalRoutes(mux *http.ServeMux, d Deps) {
	// GET /api/journal?limit=N: recent commands, newest first
	handleGet(mux, "/api/journal", func(w http.ResponseWriter, r *http.Request) {
		if d.Journal == nil {
			http.Error(w, "journal disabled", http.StatusNotFound)
			return
		}
		entries, err := d.Journal.Recent(queryInt(r, "limit", 100))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, entries)
	})
}
