package service

import (
	"context"
	"time"

	"github.com/wricardo/minigame/game/broadcast"
	"github.com/wricardo/minigame/game/room"
)

// RoomService is the single context object shared by every transport. It
// owns the room registry, the liveness registries and the friend store.
type RoomService interface {
	// Rooms
	CreateRoom(ctx context.Context, req CreateRoomRequest) (*CreateRoomResult, error)
	GetRoom(ctx context.Context, roomID int32) (*room.Room, error)
	ListRooms(ctx context.Context) ([]room.Room, error)

	// Connection lifecycle
	JoinRoom(ctx context.Context, req JoinRequest) (*room.Room, *broadcast.Receiver[room.Event], error)
	LeaveRoom(ctx context.Context, roomID, playerID int32) (*room.Room, bool, error)
	Publish(ctx context.Context, roomID int32, ev room.Event) error
	RequestQuit(ctx context.Context, roomID, playerID int32) error
	Reconcile(ctx context.Context, roomID, playerID int32) error

	// Liveness
	RecordPong(playerID int32)
	IsExpected(playerID int32) bool
	SinceLastPong(playerID int32) time.Duration

	// Cars
	ChangeCar(ctx context.Context, roomID, playerID, carID int32) (*room.Room, error)
	ChangeCarSkin(ctx context.Context, roomID, carID, skinID int32) (*room.Room, error)

	// Players and friends
	AddPlayer(ctx context.Context, playerID int32, playerName string) error
	AddFriend(ctx context.Context, masterID, friendID int32) error
	RemoveFriend(ctx context.Context, masterID, friendID int32) error
	ListFriends(ctx context.Context, masterID int32) (*FriendList, error)
}
