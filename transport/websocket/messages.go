package websocket

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/wricardo/minigame/game/room"
)

const (
	kindText  = "text"
	kindEmoji = "emoji"
	kindSync  = "sync"
)

var errMalformedFrame = errors.New("malformed frame")

// inboundMessage is a chat frame sent by a client.
type inboundMessage struct {
	PlayerID *int32  `json:"player_id"`
	Content  *string `json:"content"`
	MesType  string  `json:"mes_type"`
}

// chatMessage is the outbound form of text and emoji events.
type chatMessage struct {
	Type     string `json:"type"`
	PlayerID int32  `json:"player_id"`
	Content  string `json:"content"`
}

// syncMessage is the outbound form of a room snapshot.
type syncMessage struct {
	Type     string    `json:"type"`
	RoomInfo room.Room `json:"room_info"`
}

func newSyncMessage(snapshot room.Room) syncMessage {
	return syncMessage{Type: kindSync, RoomInfo: snapshot}
}

// decodeInbound turns a text frame into a room event.
func decodeInbound(data []byte) (room.Event, error) {
	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return room.Event{}, fmt.Errorf("%w: %v", errMalformedFrame, err)
	}
	if msg.PlayerID == nil {
		return room.Event{}, fmt.Errorf("%w: missing player_id", errMalformedFrame)
	}
	if msg.Content == nil {
		return room.Event{}, fmt.Errorf("%w: missing content", errMalformedFrame)
	}

	switch msg.MesType {
	case kindText:
		return room.TextEvent(*msg.PlayerID, *msg.Content), nil
	case kindEmoji:
		return room.EmojiEvent(*msg.PlayerID, *msg.Content), nil
	default:
		return room.Event{}, fmt.Errorf("%w: unknown mes_type %q", errMalformedFrame, msg.MesType)
	}
}

// encodeEvent returns the wire form of ev. Quit events have none.
func encodeEvent(ev room.Event) (interface{}, bool) {
	switch ev.Kind {
	case room.EventText:
		return chatMessage{Type: kindText, PlayerID: ev.PlayerID, Content: ev.Content}, true
	case room.EventEmoji:
		return chatMessage{Type: kindEmoji, PlayerID: ev.PlayerID, Content: ev.Content}, true
	case room.EventSync:
		return newSyncMessage(ev.Room), true
	default:
		return nil, false
	}
}
