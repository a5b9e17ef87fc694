package broadcast

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
)

// Message is the envelope every client receives.
type Message struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

const (
	defaultClientBuffer = 16
	defaultPingInterval = 30 * time.Second
	writeWait           = 10 * time.Second
)

// Hub fans broadcasts out to websocket and server-sent-event clients.
type Hub struct {
	logger       log.FieldLogger
	upgrader     websocket.Upgrader
	buffer       int
	pingInterval time.Duration

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

func NewHub(logger log.FieldLogger) *Hub {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 32 * 1024,
			CheckOrigin:     sameOrigin,
		},
		buffer:       defaultClientBuffer,
		pingInterval: defaultPingInterval,
		clients:      make(map[*client]struct{}),
	}
}

// sameOrigin accepts requests without an Origin header (non-browser clients)
// and browser requests whose Origin host equals the request host.
func sameOrigin(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	return strings.EqualFold(u.Host, strings.TrimSpace(r.Host))
}

// Broadcast encodes the event once and queues it for every client.
func (h *Hub) Broadcast(event string, payload any) {
	data, err := sonic.Marshal(Message{Event: event, Data: payload})
	if err != nil {
		h.logger.WithError(err).WithField("event", event).Error("encode broadcast")
		return
	}
	h.BroadcastRaw(data)
}

// BroadcastRaw queues an already encoded Message. Clients whose queue is
// full are disconnected.
func (h *Hub) BroadcastRaw(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			delete(h.clients, c)
			c.close()
			h.logger.Warn("dropping slow broadcast client")
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) subscribe() *client {
	c := &client{send: make(chan []byte, h.buffer), done: make(chan struct{})}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

func (h *Hub) unsubscribe(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
}

// ServeWS upgrades the request and streams broadcasts until the client goes away.
func (h *Hub) ServeWS(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade has already written the error response.
		return nil
	}
	defer conn.Close()

	cl := h.subscribe()
	defer h.unsubscribe(cl)

	readWait := 2 * h.pingInterval
	_ = conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readWait))
	})
	go func() {
		// Inbound frames are ignored; reading drives pong and close handling.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cl.close()
				return
			}
		}
	}()

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-cl.done:
			return nil
		case msg := <-cl.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return nil
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return nil
			}
		}
	}
}

// ServeSSE streams broadcasts as server-sent events.
func (h *Hub) ServeSSE(c echo.Context) error {
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.Header().Set("X-Accel-Buffering", "no")
	flusher, ok := res.Writer.(http.Flusher)
	if !ok {
		return c.String(http.StatusInternalServerError, "stream unsupported")
	}

	cl := h.subscribe()
	defer h.unsubscribe(cl)

	res.WriteHeader(http.StatusOK)
	if _, err := res.Write([]byte(": connected\n\n")); err != nil {
		return nil
	}
	flusher.Flush()

	ctx := c.Request().Context()
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-cl.done:
			return nil
		case msg := <-cl.send:
			if _, err := res.Write([]byte("data: ")); err != nil {
				return nil
			}
			if _, err := res.Write(msg); err != nil {
				return nil
			}
			if _, err := res.Write([]byte("\n\n")); err != nil {
				return nil
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := res.Write([]byte(": ping\n\n")); err != nil {
				return nil
			}
			flusher.Flush()
		}
	}
}
