// internal/viewer/routes/register.go

package routes

import (
	"net/http"

	logging "github.com/ipfs/go-log/v2"

	"github.com/MuellerSeb/scarlett-mixer/internal/control"
	"github.com/MuellerSeb/scarlett-mixer/internal/storage"
)

var log = logging.Logger("viewer")

type Deps struct {
	Dispatcher *control.Dispatcher
	Logs       Logs
	Journal    *storage.Journal
	Status     func() map[string]any
}

func Register(mux *http.ServeMux, d Deps) {
	registerAPILogRoutes(mux, d)
	registerMixerRoutes(mux, d)
	registerEventRoutes(mux, d)
	registerWSRoutes(mux, d)
	registerJournalRoutes(mux, d)
}
