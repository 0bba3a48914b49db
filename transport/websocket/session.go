package websocket

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/wricardo/minigame/game/broadcast"
	"github.com/wricardo/minigame/game/room"
	"github.com/wricardo/minigame/game/service"
	"golang.org/x/sync/errgroup"
)

var errHeartbeatTimeout = errors.New("heartbeat timeout")

// session is one joined connection. It runs three duties: read (inbound
// frames to the room), forward (room events to the peer) and heartbeat.
// The first duty to finish cancels the others; reconciliation runs once all
// three have returned.
type session struct {
	id     string
	req    service.JoinRequest
	svc    service.RoomService
	cfg    Config
	conn   *websocket.Conn
	out    *outbound
	rx     *broadcast.Receiver[room.Event]
	logger *slog.Logger
}

func (s *session) run(parent context.Context) {
	snapshot, rx, err := s.svc.JoinRoom(parent, s.req)
	if err != nil {
		s.logger.Warn("join failed", "error", err)
		s.out.WriteClose(closeRoomClosed, "room closed")
		s.out.Close()
		return
	}
	s.rx = rx

	if err := s.out.WriteJSON(newSyncMessage(*snapshot)); err != nil {
		s.logger.Warn("failed to send initial snapshot", "error", err)
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	var writers errgroup.Group
	writers.Go(func() error {
		defer cancel()
		return s.forward(ctx)
	})
	writers.Go(func() error {
		defer cancel()
		return s.heartbeat(ctx)
	})

	var duties errgroup.Group
	duties.Go(func() error {
		defer cancel()
		return s.read(ctx)
	})
	duties.Go(func() error {
		err := writers.Wait()
		if parent.Err() != nil {
			s.out.WriteClose(websocket.CloseGoingAway, "server shutting down")
		}
		// Unblocks the reader.
		s.out.Close()
		return err
	})

	if err := duties.Wait(); err != nil {
		s.logger.Debug("session ended", "reason", err)
	}

	if err := s.svc.Reconcile(context.WithoutCancel(parent), s.req.RoomID, s.req.PlayerID); err != nil {
		s.logger.Error("reconcile failed", "error", err)
		return
	}
	s.logger.Info("session closed")
}

// read publishes inbound chat frames to the room until the transport closes.
// A close frame from the peer is an explicit quit.
func (s *session) read(ctx context.Context) error {
	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetPongHandler(func(string) error {
		s.svc.RecordPong(s.req.PlayerID)
		return nil
	})
	// Only a real close frame reaches this handler; a dropped transport does
	// not. The close reply is written by the session, not by the read loop.
	closeFrame := false
	s.conn.SetCloseHandler(func(code int, text string) error {
		closeFrame = true
		return nil
	})

	for {
		mt, data, err := s.conn.ReadMessage()
		if err != nil {
			if closeFrame {
				s.logger.Info("peer requested quit")
				if err := s.svc.RequestQuit(context.WithoutCancel(ctx), s.req.RoomID, s.req.PlayerID); err != nil {
					s.logger.Warn("quit request failed", "error", err)
				}
				return nil
			}
			return err
		}
		if mt != websocket.TextMessage {
			continue
		}

		ev, err := decodeInbound(data)
		if err != nil {
			s.logger.Warn("dropping inbound frame", "error", err)
			continue
		}
		if err := s.svc.Publish(ctx, s.req.RoomID, ev); err != nil {
			s.logger.Debug("publish failed", "error", err)
		}
	}
}

// forward writes room events to the peer until the room closes, this player
// is asked to quit, or ctx is done. Events already buffered when ctx ends are
// still delivered.
func (s *session) forward(ctx context.Context) error {
	defer s.rx.Close()

	for {
		ev, err := s.rx.Recv(ctx)
		if err != nil {
			var lagged *broadcast.LaggedError
			switch {
			case errors.As(err, &lagged):
				s.logger.Debug("receiver lagged", "skipped", lagged.Skipped)
				continue
			case errors.Is(err, broadcast.ErrClosed):
				s.logger.Info("room closed under session")
				return s.out.WriteClose(closeRoomClosed, "room closed")
			default:
				return nil
			}
		}

		if ev.Kind == room.EventQuit {
			if ev.PlayerID != s.req.PlayerID {
				continue
			}
			return s.quit(ctx)
		}

		msg, ok := encodeEvent(ev)
		if !ok {
			continue
		}
		if err := s.out.WriteJSON(msg); err != nil {
			return err
		}
	}
}

// quit removes this player from the room, sends the resulting snapshot and,
// when the closure was expected, a normal close frame.
func (s *session) quit(ctx context.Context) error {
	snapshot, _, err := s.svc.LeaveRoom(context.WithoutCancel(ctx), s.req.RoomID, s.req.PlayerID)
	if err == nil {
		if err := s.out.WriteJSON(newSyncMessage(*snapshot)); err != nil {
			s.logger.Debug("failed to send final snapshot", "error", err)
		}
	}

	if s.svc.IsExpected(s.req.PlayerID) {
		return s.out.WriteClose(websocket.CloseNormalClosure, "quit")
	}
	return nil
}

// heartbeat pings the peer every interval and ends when no pong has been seen
// for longer than the stale threshold.
func (s *session) heartbeat(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if since := s.svc.SinceLastPong(s.req.PlayerID); since > s.cfg.StaleThreshold {
				s.logger.Warn("heartbeat timeout", "silent_for", since)
				return errHeartbeatTimeout
			}
			if err := s.out.WritePing(); err != nil {
				return err
			}
		}
	}
}
