package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
	"github.com/wricardo/minigame/game/room"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 16384
)

// ChatMsg is a text or emoji frame relayed by the room.
type ChatMsg struct {
	Kind     string
	PlayerID int32
	Content  string
}

// SyncMsg carries a fresh room snapshot.
type SyncMsg struct {
	Room room.Room
}

// DisconnectedMsg is sent when the WebSocket connection is lost.
type DisconnectedMsg struct {
	Code   int
	Reason string
	Err    error
}

// JoinParams are the query parameters of the join handshake.
type JoinParams struct {
	PlayerID     int32
	PlayerName   string
	RoomID       int32
	CarID        int32
	SkinID       int32
	WeatherID    int32
	BackgroundID int32
}

// JoinURL appends the join parameters to the server's /ws URL.
func JoinURL(server string, p JoinParams) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("invalid server url: %w", err)
	}

	q := u.Query()
	q.Set("player_id", strconv.Itoa(int(p.PlayerID)))
	q.Set("player_name", p.PlayerName)
	q.Set("room_id", strconv.Itoa(int(p.RoomID)))
	q.Set("car_id", strconv.Itoa(int(p.CarID)))
	q.Set("skin_id", strconv.Itoa(int(p.SkinID)))
	q.Set("weather_id", strconv.Itoa(int(p.WeatherID)))
	q.Set("background_id", strconv.Itoa(int(p.BackgroundID)))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Client manages the WebSocket connection to the room server.
type Client struct {
	mu       sync.Mutex
	conn     *websocket.Conn
	playerID int32
	program  *tea.Program
	closed   bool
}

// Dial joins a room. A rejected handshake reports the HTTP status.
func Dial(ctx context.Context, server string, p JoinParams) (*Client, error) {
	target, err := JoinURL(server, p)
	if err != nil {
		return nil, err
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("join rejected: %s", resp.Status)
		}
		return nil, err
	}

	return &Client{conn: conn, playerID: p.PlayerID}, nil
}

// SetProgram sets the bubbletea program so the client can send messages to it.
func (c *Client) SetProgram(p *tea.Program) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.program = p
}

// Start launches the read pump.
func (c *Client) Start() {
	go c.readPump()
}

// SendChat sends one chat frame. kind is "text" or "emoji".
func (c *Client) SendChat(kind, content string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("connection closed")
	}

	frame := map[string]interface{}{
		"player_id": c.playerID,
		"content":   content,
		"mes_type":  kind,
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(frame)
}

// Quit sends a close frame, which the server treats as leaving the room.
// The server answers with a final snapshot and closes the connection.
func (c *Client) Quit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	return c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "quit"),
		time.Now().Add(writeWait))
}

// Close shuts down the client connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.conn.Close()
}

func (c *Client) send(msg tea.Msg) {
	c.mu.Lock()
	p := c.program
	c.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

// readPump reads frames and sends them to the bubbletea program. Pings from
// the server are answered by the default ping handler.
func (c *Client) readPump() {
	c.conn.SetReadLimit(maxMessageSize)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			msg := DisconnectedMsg{Err: err}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				msg.Code = closeErr.Code
				msg.Reason = closeErr.Text
			}
			c.send(msg)
			return
		}

		if msg, ok := decodeFrame(data); ok {
			c.send(msg)
		}
	}
}

// decodeFrame turns one server frame into a tea.Msg.
func decodeFrame(data []byte) (tea.Msg, bool) {
	var frame struct {
		Type     string     `json:"type"`
		PlayerID int32      `json:"player_id"`
		Content  string     `json:"content"`
		RoomInfo *room.Room `json:"room_info"`
	}
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, false
	}

	switch frame.Type {
	case "text", "emoji":
		return ChatMsg{Kind: frame.Type, PlayerID: frame.PlayerID, Content: frame.Content}, true
	case "sync":
		if frame.RoomInfo == nil {
			return nil, false
		}
		return SyncMsg{Room: *frame.RoomInfo}, true
	default:
		return nil, false
	}
}
