package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"ChartDash/internal/domain/models"
	"ChartDash/internal/service/metrics"
	"ChartDash/pkg/logger"
	"ChartDash/pkg/query"
)

const (
	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
	toastBuffer  = 16
)

// Message is one frame sent to dashboard views.
type Message struct {
	Type  string        `json:"type"`
	Query *QueryEvent   `json:"query,omitempty"`
	Toast *models.Toast `json:"toast,omitempty"`
	At    time.Time     `json:"at"`
}

// QueryEvent is the wire form of a cache state change.
type QueryEvent struct {
	Event    string       `json:"event"`
	Key      string       `json:"key"`
	Status   query.Status `json:"status"`
	Stale    bool         `json:"stale"`
	Fetching bool         `json:"fetching"`
	Error    string       `json:"error,omitempty"`
}

// Hub streams query events and toasts to websocket clients.
// It implements the Notifier used by the dashboard use cases.
type Hub struct {
	qc       *query.Client
	log      *logger.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[chan models.Toast]struct{}
	closed  bool

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewHub(qc *query.Client, l *logger.Logger) *Hub {
	metrics.Register()
	if l == nil {
		l = logger.Nop()
	}
	return &Hub{
		qc:  qc,
		log: l.With("ws"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[chan models.Toast]struct{}),
		done:    make(chan struct{}),
	}
}

func (h *Hub) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws", h.Serve)
}

// Notify fans t out to every connected client. Slow clients miss toasts.
func (h *Hub) Notify(t models.Toast) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- t:
		default:
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) join() (chan models.Toast, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	ch := make(chan models.Toast, toastBuffer)
	h.clients[ch] = struct{}{}
	h.wg.Add(1)
	metrics.WebsocketClients.Inc()
	return ch, true
}

func (h *Hub) leave(ch chan models.Toast) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
	metrics.WebsocketClients.Dec()
	h.wg.Done()
}

// Serve upgrades the request and streams until the client leaves or the hub
// closes.
func (h *Hub) Serve(c echo.Context) error {
	toasts, ok := h.join()
	if !ok {
		return c.NoContent(http.StatusServiceUnavailable)
	}
	defer h.leave(toasts)

	// subscribed before the handshake so no event after it is missed
	events, unsubscribe := h.qc.Subscribe(query.Key{})
	defer unsubscribe()

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", logger.Error(err))
		return nil
	}
	defer conn.Close()

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	h.log.Debug("websocket client connected", logger.String("remote", c.RealIP()))

	// current state first, so a new view does not wait for the next change
	for _, e := range h.qc.Entries(query.Key{}) {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(snapshotMessage(e)); err != nil {
			return nil
		}
	}

	for {
		var msg *Message
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			msg = queryMessage(ev)
		case t := <-toasts:
			msg = &Message{Type: "toast", Toast: &t, At: time.Now().UTC()}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
			continue
		case <-gone:
			h.log.Debug("websocket client disconnected", logger.String("remote", c.RealIP()))
			return nil
		case <-h.done:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return nil
		}

		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(msg); err != nil {
			h.log.Debug("websocket write failed", logger.Error(err))
			return nil
		}
	}
}

func queryMessage(ev query.Event) *Message {
	qe := &QueryEvent{
		Event:    string(ev.Type),
		Key:      ev.Key.String(),
		Status:   ev.Status,
		Stale:    ev.Stale,
		Fetching: ev.Fetching,
	}
	if ev.Err != nil {
		qe.Error = ev.Err.Error()
	}
	return &Message{Type: "query", Query: qe, At: ev.At.UTC()}
}

func snapshotMessage(e query.Entry) *Message {
	qe := &QueryEvent{
		Event:    "snapshot",
		Key:      e.Key.String(),
		Status:   e.Status,
		Stale:    e.Stale,
		Fetching: e.Fetching,
	}
	if e.Err != nil {
		qe.Error = e.Err.Error()
	}
	return &Message{Type: "query", Query: qe, At: time.Now().UTC()}
}

// Close disconnects every client and waits for their handlers to return.
func (h *Hub) Close() error {
	h.closeOnce.Do(func() {
		h.mu.Lock()
		h.closed = true
		h.mu.Unlock()
		close(h.done)
	})
	h.wg.Wait()
	return nil
}
