package websocket

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var errCloseSent = errors.New("close frame already sent")

// outbound serializes every write to a connection. Each method holds the lock
// for exactly one frame.
type outbound struct {
	mu        sync.Mutex
	conn      *websocket.Conn
	writeWait time.Duration
	closeSent bool
	closed    bool
}

func newOutbound(conn *websocket.Conn, writeWait time.Duration) *outbound {
	return &outbound{conn: conn, writeWait: writeWait}
}

// WriteJSON writes v as one text frame.
func (o *outbound) WriteJSON(v interface{}) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closeSent || o.closed {
		return errCloseSent
	}
	o.conn.SetWriteDeadline(time.Now().Add(o.writeWait))
	return o.conn.WriteJSON(v)
}

// WritePing sends a ping control frame.
func (o *outbound) WritePing() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closeSent || o.closed {
		return errCloseSent
	}
	return o.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(o.writeWait))
}

// WriteClose sends a close frame. Only the first call writes anything.
func (o *outbound) WriteClose(code int, reason string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closeSent || o.closed {
		return nil
	}
	o.closeSent = true
	return o.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(o.writeWait))
}

// Close closes the underlying connection without writing anything. A peer
// that was not sent a close frame sees the transport drop.
func (o *outbound) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return nil
	}
	o.closed = true
	return o.conn.Close()
}
