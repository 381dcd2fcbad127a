// internal/viewer/routes/events.go

package routes

import (
	"errors"
	"net/http"
	"sync"

	"github.com/MuellerSeb/scarlett-mixer/internal/mixer"
)

const sseQueue = 16

var errSlowClient = errors.New("client send queue full")

// sseStream buffers snapshots for one SSE client. Once the buffer overflows
// the stream is marked dropped and the handler ends the response.
type sseStream struct {
	ch      chan mixer.Snapshot
	dropped chan struct{}
	once    sync.Once
}

func newSSEStream(size int) *sseStream {
	return &sseStream{
		ch:      make(chan mixer.Snapshot, size),
		dropped: make(chan struct{}),
	}
}

func (s *sseStream) deliver(snap mixer.Snapshot) error {
	select {
	case s.ch <- snap:
		return nil
	default:
		s.once.Do(func() { close(s.dropped) })
		return errSlowClient
	}
}

func registerEventRoutes(mux *http.ServeMux, d Deps) {
	engine := d.Dispatcher.Engine()

	// GET /api/events: SSE stream of snapshots, starting with the current one
	handleGet(mux, "/api/events", func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := sseHeaders(w)
		if !ok {
			return
		}

		stream := newSSEStream(sseQueue)
		id, err := engine.Subscribe(stream.deliver)
		if err != nil {
			return
		}
		defer engine.Unsubscribe(id)

		for {
			select {
			case <-r.Context().Done():
				return
			case <-stream.dropped:
				log.Debugw("sse client dropped", "remote", r.RemoteAddr)
				return
			case s := <-stream.ch:
				if err := writeSSE(w, mixer.SnapshotType, s); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	})
}
