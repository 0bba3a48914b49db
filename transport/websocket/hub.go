package websocket

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/wricardo/minigame/game/room"
	"github.com/wricardo/minigame/game/service"
)

const (
	// Time allowed to write a message to the peer.
	defaultWriteWait = 10 * time.Second

	// Send pings to peer with this period.
	defaultHeartbeatInterval = 5 * time.Second

	// A peer silent for longer than this is considered dead.
	defaultStaleThreshold = 10 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	// Close code sent when a room is torn down under a connection.
	closeRoomClosed = websocket.ClosePolicyViolation
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Config tunes connection timing. Zero fields take the defaults.
type Config struct {
	HeartbeatInterval time.Duration
	StaleThreshold    time.Duration
	WriteWait         time.Duration
}

func (c Config) withDefaults() Config {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = defaultHeartbeatInterval
	}
	if c.StaleThreshold <= 0 {
		c.StaleThreshold = defaultStaleThreshold
	}
	if c.WriteWait <= 0 {
		c.WriteWait = defaultWriteWait
	}
	return c
}

// Hub accepts room connections and runs one session per connection.
type Hub struct {
	svc    service.RoomService
	cfg    Config
	logger *slog.Logger

	// mu orders session admission against Shutdown so wg.Add never races
	// wg.Wait.
	mu       sync.Mutex
	stopping bool
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	active   atomic.Int64
}

// NewHub creates a hub serving connections for svc.
func NewHub(svc service.RoomService, cfg Config, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		svc:    svc,
		cfg:    cfg.withDefaults(),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Active returns the number of running sessions.
func (h *Hub) Active() int {
	return int(h.active.Load())
}

// Shutdown ends every session and waits for their reconciliation, or for ctx.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.stopping = true
	h.mu.Unlock()
	h.cancel()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// admit registers a new session unless Shutdown has begun.
func (h *Hub) admit() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopping {
		return false
	}
	h.wg.Add(1)
	h.active.Add(1)
	return true
}

// ServeWS validates the join parameters, upgrades the connection and runs the
// session until it ends. Invalid parameters yield 400 and an unknown room 404,
// both before the upgrade.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	req, err := parseJoinParams(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if _, err := h.svc.GetRoom(r.Context(), req.RoomID); err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if !h.admit() {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	defer func() {
		h.active.Add(-1)
		h.wg.Done()
	}()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	s := &session{
		id:     uuid.NewString(),
		req:    req,
		svc:    h.svc,
		cfg:    h.cfg,
		conn:   conn,
		out:    newOutbound(conn, h.cfg.WriteWait),
		logger: h.logger,
	}
	s.logger = h.logger.With("session", s.id, "room_id", req.RoomID, "player_id", req.PlayerID)

	s.run(h.ctx)
}
