package controlapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/incendiarybean/proxy-address-blocker/logger"
	"github.com/incendiarybean/proxy-address-blocker/proxy"
)

// writeWait bounds how long a single client write may take before the
// Hub gives up on that client. Kept short because Publish runs on the
// Coordinator's goroutine: a slow client holds the Coordinator up for
// at most this long per write before it is dropped.
const writeWait = 2 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The Control API serves a local GUI that may originate from a
	// dev-server port different from the proxy's own; this is a
	// control-plane channel to a trusted local client, not the
	// internet-facing proxied traffic path.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// hubEvent is the wire shape pushed to every connected client.
type hubEvent struct {
	Kind    string `json:"kind"`
	ID      string `json:"id,omitempty"`
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
	Method  string `json:"method,omitempty"`
	URI     string `json:"uri,omitempty"`
	Blocked bool   `json:"blocked,omitempty"`
}

func toHubEvent(event proxy.Event) hubEvent {
	switch event.Kind {
	case proxy.EventRequestLogged:
		return hubEvent{
			Kind:    "request",
			ID:      event.Request.ID.String(),
			Method:  event.Request.Method,
			URI:     event.Request.URI,
			Blocked: event.Request.Blocked,
		}
	default:
		return hubEvent{
			Kind:    "status",
			Status:  event.Status.Kind.String(),
			Message: event.Status.Message,
		}
	}
}

// Hub fans every proxy.Event out to every currently-registered
// WebSocket client. It implements proxy.EventSink.
type Hub struct {
	logger *logger.Logger

	mutex   sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// NewHub constructs an empty Hub.
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		logger:  log,
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// Publish implements proxy.EventSink. It writes to each client in turn
// on the caller's goroutine, so it does block while a write is in
// progress; each client write runs with its own writeWait deadline, and
// a client whose write fails or times out is dropped rather than
// retried.
func (hub *Hub) Publish(event proxy.Event) {
	payload := toHubEvent(event)

	hub.mutex.Lock()
	clients := make([]*websocket.Conn, 0, len(hub.clients))
	for conn := range hub.clients {
		clients = append(clients, conn)
	}
	hub.mutex.Unlock()

	for _, conn := range clients {
		conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
		if err := conn.WriteJSON(payload); err != nil {
			hub.remove(conn)
			conn.Close()
		}
	}
}

func (hub *Hub) add(conn *websocket.Conn) {
	hub.mutex.Lock()
	hub.clients[conn] = struct{}{}
	hub.mutex.Unlock()
}

func (hub *Hub) remove(conn *websocket.Conn) {
	hub.mutex.Lock()
	delete(hub.clients, conn)
	hub.mutex.Unlock()
}

// ServeHTTP upgrades the request and registers the connection until it
// closes or errors. It holds no lock and does no work on the
// connection other than waiting for it to die — all outbound traffic
// comes from Publish.
func (hub *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Warning("event hub upgrade failed", "error", err)
		return
	}

	hub.add(conn)
	defer func() {
		hub.remove(conn)
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
