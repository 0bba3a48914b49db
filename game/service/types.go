package service

import (
	"errors"
	"fmt"

	"github.com/wricardo/minigame/game/store"
)

var (
	ErrBadParameter    = errors.New("bad parameter")
	ErrPlayerNotInRoom = errors.New("player not in room")
)

// ReasonReservedID is the ParamError reason for a zero player or room id.
// Zero is never a valid id.
const ReasonReservedID = "0 is reserved"

// ParamError names the request field that was missing or malformed.
type ParamError struct {
	Field  string
	Reason string
}

func (e *ParamError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("bad parameter %q", e.Field)
	}
	return fmt.Sprintf("bad parameter %q: %s", e.Field, e.Reason)
}

func (e *ParamError) Unwrap() error {
	return ErrBadParameter
}

// CreateRoomRequest opens a room hosted by PlayerID. The room id is the
// host's player id.
type CreateRoomRequest struct {
	PlayerID     int32  `json:"player_id"`
	PlayerName   string `json:"player_name"`
	CarID        int32  `json:"car_id"`
	WeatherID    int32  `json:"weather_id"`
	BackgroundID int32  `json:"background_id"`
}

// CreateRoomResult is returned by CreateRoom.
type CreateRoomResult struct {
	RoomID  int32  `json:"room_id"`
	Content string `json:"content"`
}

// JoinRequest carries everything a connection supplies when it enters a room.
type JoinRequest struct {
	RoomID       int32
	PlayerID     int32
	PlayerName   string
	CarID        int32
	SkinID       int32
	WeatherID    int32
	BackgroundID int32
}

// FriendList is a player's friends with their profiles.
type FriendList struct {
	MasterID  int32           `json:"master_id"`
	FriendIDs []int32         `json:"friend_ids"`
	Friends   []store.Profile `json:"friends"`
}
