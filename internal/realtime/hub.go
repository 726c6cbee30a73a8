// Package realtime pushes chat events to connected clients over websockets
// and keeps the presence registry in step with connection lifecycles.
package realtime

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/shinyyama/directchat/internal/metrics"
	"github.com/shinyyama/directchat/internal/model"
	"github.com/shinyyama/directchat/internal/presence"
	"golang.org/x/time/rate"
)

var ErrConnectionGone = errors.New("connection gone")

const (
	writeWait       = 10 * time.Second
	pongWait        = 60 * time.Second
	pingPeriod      = (pongWait * 9) / 10
	maxFrameBytes   = 4 << 10
	framesPerSecond = 5
	frameBurst      = 10
)

// Frame is the envelope for every message on the socket.
type Frame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type peer struct {
	id     string
	userID string
	conn   *websocket.Conn
	mu     sync.Mutex
	done   chan struct{}
	once   sync.Once
}

func (p *peer) writeFrame(frame Frame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return p.conn.WriteJSON(frame)
}

func (p *peer) ping() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (p *peer) close() {
	p.once.Do(func() {
		close(p.done)
		_ = p.conn.Close()
	})
}

type Hub struct {
	registry *presence.Registry
	upgrader websocket.Upgrader
	logger   zerolog.Logger

	mu    sync.RWMutex
	peers map[string]*peer
}

// NewHub accepts any origin when allowedOrigins is empty.
func NewHub(registry *presence.Registry, logger zerolog.Logger, allowedOrigins []string) *Hub {
	h := &Hub{
		registry: registry,
		logger:   logger.With().Str("component", "realtime").Logger(),
		peers:    make(map[string]*peer),
	}
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return len(allowed) == 0 || origin == "" || allowed[origin]
		},
	}
	return h
}

// Handle upgrades an authenticated request. The auth middleware must have
// stored the caller's uid on the echo context.
func (h *Hub) Handle(c echo.Context) error {
	uid, _ := c.Get("uid").(string)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, map[string]any{
			"error": map[string]string{"code": "unauthorized", "message": "login required"},
		})
	}
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Debug().Err(err).Str("user_id", uid).Msg("websocket upgrade failed")
		return nil
	}

	p := &peer{id: uuid.NewString(), userID: uid, conn: conn, done: make(chan struct{})}
	h.attach(p)
	defer h.detach(p)

	go h.keepalive(p)
	h.readLoop(p)
	return nil
}

func (h *Hub) attach(p *peer) {
	h.mu.Lock()
	h.peers[p.id] = p
	h.mu.Unlock()
	h.registry.Register(p.userID, p.id)
	metrics.OnlineUsers.Set(float64(h.registry.Len()))
	h.logger.Info().Str("user_id", p.userID).Str("conn_id", p.id).Msg("connected")
	h.broadcastOnline()
}

func (h *Hub) detach(p *peer) {
	p.close()
	h.mu.Lock()
	delete(h.peers, p.id)
	h.mu.Unlock()
	if h.registry.Unregister(p.userID, p.id) {
		metrics.OnlineUsers.Set(float64(h.registry.Len()))
		h.broadcastOnline()
	}
	h.logger.Info().Str("user_id", p.userID).Str("conn_id", p.id).Msg("disconnected")
}

func (h *Hub) readLoop(p *peer) {
	p.conn.SetReadLimit(maxFrameBytes)
	_ = p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	limiter := rate.NewLimiter(rate.Limit(framesPerSecond), frameBurst)

	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug().Err(err).Str("conn_id", p.id).Msg("read failed")
			}
			return
		}
		_ = p.conn.SetReadDeadline(time.Now().Add(pongWait))
		if !limiter.Allow() {
			_ = p.writeFrame(errorFrame("", "rate_limited", "too many frames"))
			return
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			_ = p.writeFrame(errorFrame("", "bad_request", "invalid frame"))
			continue
		}
		switch frame.Type {
		case "ping":
			_ = p.writeFrame(Frame{Type: "pong", RequestID: frame.RequestID})
		default:
			_ = p.writeFrame(errorFrame(frame.RequestID, "bad_request", "unsupported frame type"))
		}
	}
}

func (h *Hub) keepalive(p *peer) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			if err := p.ping(); err != nil {
				p.close()
				return
			}
		}
	}
}

// Emit sends one event to one connection.
func (h *Hub) Emit(connID, event string, payload any) error {
	h.mu.RLock()
	p, ok := h.peers[connID]
	h.mu.RUnlock()
	if !ok {
		return ErrConnectionGone
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if err := p.writeFrame(Frame{Type: event, Payload: raw}); err != nil {
		p.close()
		return errors.Join(ErrConnectionGone, err)
	}
	return nil
}

func (h *Hub) broadcastOnline() {
	raw, err := json.Marshal(h.registry.Online())
	if err != nil {
		return
	}
	frame := Frame{Type: model.EventOnlineUsers, Payload: raw}

	h.mu.RLock()
	peers := make([]*peer, 0, len(h.peers))
	for _, p := range h.peers {
		peers = append(peers, p)
	}
	h.mu.RUnlock()

	for _, p := range peers {
		if err := p.writeFrame(frame); err != nil {
			h.logger.Debug().Err(err).Str("conn_id", p.id).Msg("online broadcast dropped")
		}
	}
}

// Close drops every connection; used on shutdown.
func (h *Hub) Close() {
	h.mu.RLock()
	peers := make([]*peer, 0, len(h.peers))
	for _, p := range h.peers {
		peers = append(peers, p)
	}
	h.mu.RUnlock()
	for _, p := range peers {
		p.mu.Lock()
		_ = p.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"),
			time.Now().Add(writeWait))
		p.mu.Unlock()
		p.close()
	}
}

func errorFrame(requestID, code, message string) Frame {
	raw, _ := json.Marshal(map[string]string{"code": code, "message": message})
	return Frame{Type: "error", RequestID: requestID, Payload: raw}
}
