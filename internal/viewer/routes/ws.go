// internal/viewer/routes/ws.go

package routes

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/MuellerSeb/scarlett-mixer/internal/control"
	"github.com/MuellerSeb/scarlett-mixer/internal/mixer"
)

const (
	wsSendQueue    = 32
	wsWriteTimeout = 10 * time.Second
)

var errClientGone = errors.New("client gone")

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 65536,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ErrorMessage is sent back on the websocket when a command fails.
type ErrorMessage struct {
	Type  string `json:"type"`
	Op    string `json:"op,omitempty"`
	Error string `json:"error"`
}

type wsClient struct {
	id   string
	conn *websocket.Conn
	send chan any
	done chan struct{}
	once sync.Once
}

// enqueue hands msg to the writer without blocking. A full queue fails the
// delivery, which makes the engine drop the client.
func (c *wsClient) enqueue(msg any) error {
	select {
	case <-c.done:
		return errClientGone
	default:
	}
	select {
	case c.send <- msg:
		return nil
	case <-c.done:
		return errClientGone
	default:
		return errSlowClient
	}
}

// deliver is the engine subscriber for c. A failed enqueue closes the
// connection and the returned error makes the bus drop c.
func (c *wsClient) deliver(s mixer.Snapshot) error {
	if err := c.enqueue(s); err != nil {
		c.close()
		return err
	}
	return nil
}

func (c *wsClient) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *wsClient) writePump() {
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := c.conn.WriteJSON(msg); err != nil {
				log.Debugw("ws write failed", "client", c.id, "err", err)
				c.close()
				return
			}
		}
	}
}

func registerWSRoutes(mux *http.ServeMux, d Deps) {
	engine := d.Dispatcher.Engine()

	// GET /ws: snapshot on connect, {op, data} in, snapshots and errors out
	handleGet(mux, "/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warnw("ws upgrade failed", "err", err)
			return
		}
		c := &wsClient{
			id:   uuid.NewString(),
			conn: conn,
			send: make(chan any, wsSendQueue),
			done: make(chan struct{}),
		}
		defer c.close()
		go c.writePump()

		subID, err := engine.Subscribe(c.deliver)
		if err != nil {
			log.Warnw("ws subscribe failed", "client", c.id, "err", err)
			return
		}
		defer engine.Unsubscribe(subID)
		log.Debugw("ws client connected", "client", c.id, "remote", r.RemoteAddr)

		go func() {
			select {
			case <-r.Context().Done():
				c.close()
			case <-c.done:
			}
		}()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				log.Debugw("ws client closed", "client", c.id, "err", err)
				return
			}
			var cmd control.Command
			if err := json.Unmarshal(data, &cmd); err != nil {
				if c.enqueue(ErrorMessage{Type: "error", Error: "invalid message: " + err.Error()}) != nil {
					return
				}
				continue
			}
			if err := d.Dispatcher.Apply("ws", cmd); err != nil {
				if c.enqueue(ErrorMessage{Type: "error", Op: cmd.Op, Error: err.Error()}) != nil {
					return
				}
			}
		}
	})
}
