package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

const (
	// writeWait bounds each frame write to a watcher.
	writeWait = 10 * time.Second

	// pongWait is how long a watcher may stay silent; pings go out at
	// a fraction of it.
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	watcherBuffer = 8
)

// Hub fans session state snapshots out to WebSocket watchers. A
// single run loop owns the registry, so watcher maps never need a
// lock.
type Hub struct {
	logger   *log.Logger
	upgrader websocket.Upgrader

	register   chan *watcher
	unregister chan *watcher
	broadcast  chan broadcastMsg
	closeSess  chan string

	// done is closed when the run loop exits; senders select against
	// it so nothing blocks during shutdown.
	done chan struct{}
}

type watcher struct {
	sessionID string
	conn      *websocket.Conn
	send      chan []byte
}

type broadcastMsg struct {
	sessionID string
	payload   []byte
}

// NewHub creates a hub; Run must be started for it to do anything.
func NewHub(logger *log.Logger) *Hub {
	return &Hub{
		logger: logger.WithPrefix("hub"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Watch is a read-only stream of public state.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		register:   make(chan *watcher),
		unregister: make(chan *watcher),
		broadcast:  make(chan broadcastMsg, 16),
		closeSess:  make(chan string),
		done:       make(chan struct{}),
	}
}

// Run owns the watcher registry until ctx is canceled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	watchers := make(map[string]map[*watcher]struct{})
	for {
		select {
		case <-ctx.Done():
			for _, set := range watchers {
				for w := range set {
					close(w.send)
				}
			}
			return

		case w := <-h.register:
			set := watchers[w.sessionID]
			if set == nil {
				set = make(map[*watcher]struct{})
				watchers[w.sessionID] = set
			}
			set[w] = struct{}{}
			h.logger.Debug("watcher joined", "session_id", w.sessionID, "watchers", len(set))

		case w := <-h.unregister:
			if set, ok := watchers[w.sessionID]; ok {
				if _, member := set[w]; member {
					delete(set, w)
					close(w.send)
				}
				if len(set) == 0 {
					delete(watchers, w.sessionID)
				}
			}

		case msg := <-h.broadcast:
			for w := range watchers[msg.sessionID] {
				select {
				case w.send <- msg.payload:
				default:
					// A watcher that cannot keep up is dropped rather
					// than allowed to stall the hand.
					h.logger.Warn("dropping slow watcher", "session_id", msg.sessionID)
					delete(watchers[msg.sessionID], w)
					close(w.send)
				}
			}

		case id := <-h.closeSess:
			for w := range watchers[id] {
				close(w.send)
			}
			delete(watchers, id)
		}
	}
}

// Broadcast pushes a state snapshot to every watcher of a session.
func (h *Hub) Broadcast(sessionID string, state any) {
	payload, err := json.Marshal(state)
	if err != nil {
		h.logger.Error("state marshal failed", "session_id", sessionID, "error", err)
		return
	}
	select {
	case h.broadcast <- broadcastMsg{sessionID: sessionID, payload: payload}:
	case <-h.done:
	}
}

// CloseSession disconnects every watcher of a session.
func (h *Hub) CloseSession(sessionID string) {
	select {
	case h.closeSess <- sessionID:
	case <-h.done:
	}
}

// ServeWS upgrades the request and streams session broadcasts until
// either side goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, sessionID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("watch upgrade failed", "session_id", sessionID, "error", err)
		return
	}

	watch := &watcher{
		sessionID: sessionID,
		conn:      conn,
		send:      make(chan []byte, watcherBuffer),
	}
	select {
	case h.register <- watch:
	case <-h.done:
		_ = conn.Close()
		return
	}

	go watch.writePump()
	go watch.readPump(h)
}

// writePump drains the send channel onto the socket, pinging while
// idle. It owns the connection's write side; a closed send channel
// means the hub let go of the watcher.
func (w *watcher) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = w.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-w.send:
			_ = w.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = w.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := w.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			_ = w.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := w.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards client frames, keeping pong handling alive and
// noticing disconnects.
func (w *watcher) readPump(h *Hub) {
	defer func() {
		select {
		case h.unregister <- w:
		case <-h.done:
		}
		_ = w.conn.Close()
	}()

	w.conn.SetReadLimit(512)
	_ = w.conn.SetReadDeadline(time.Now().Add(pongWait))
	w.conn.SetPongHandler(func(string) error {
		_ = w.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := w.conn.ReadMessage(); err != nil {
			return
		}
	}
}
