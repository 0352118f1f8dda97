package listener

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/muurk/argo/internal/logging"
	"github.com/muurk/argo/internal/wire"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Responses buffered per subscriber before dropping
	subscriberBuffer = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// hub fans accepted responses out to subscribers.
type hub struct {
	mu     sync.Mutex
	subs   map[chan *wire.Response]struct{}
	closed bool
}

func newHub() *hub {
	return &hub{subs: make(map[chan *wire.Response]struct{})}
}

func (h *hub) subscribe() chan *wire.Response {
	ch := make(chan *wire.Response, subscriberBuffer)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch
	}
	h.subs[ch] = struct{}{}
	return ch
}

func (h *hub) unsubscribe(ch chan *wire.Response) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
}

// broadcast never blocks; a full subscriber misses the response.
func (h *hub) broadcast(resp *wire.Response) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- resp:
		default:
			logging.Debug("Subscriber behind, dropping response", zap.String("response_id", resp.ID()))
		}
	}
}

// close ends every subscription.
func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for ch := range h.subs {
		delete(h.subs, ch)
		close(ch)
	}
}

// streamResponses (GET /ws) pushes each accepted response as a JSON text
// message until the client goes away.
func (l *Listener) streamResponses(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade has already written an error response
		return nil
	}
	remoteAddr := c.RealIP()
	logging.Info("Websocket subscriber connected", zap.String("remote_addr", remoteAddr))

	responses, cancel := l.Subscribe()
	defer func() {
		cancel()
		_ = conn.Close()
		logging.Info("Websocket subscriber disconnected", zap.String("remote_addr", remoteAddr))
	}()

	// Reader: handles pongs and notices the peer closing
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-gone:
			return nil
		case resp, ok := <-responses:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "listener shutting down"),
					time.Now().Add(writeWait))
				return nil
			}
			data, err := wire.EncodeResponseJSON(resp)
			if err != nil {
				logging.Error("Failed to encode response for websocket", zap.Error(err))
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return nil
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return nil
			}
		}
	}
}
