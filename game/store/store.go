package store

import (
	"context"
	"errors"
)

var (
	ErrPlayerExists   = errors.New("player already exists")
	ErrFriendExists   = errors.New("friend already added")
	ErrFriendNotFound = errors.New("friend not found")
	ErrSelfFriend     = errors.New("cannot befriend yourself")
)

// Profile is the public view of a player.
type Profile struct {
	PlayerID   int32  `json:"player_id"`
	PlayerName string `json:"player_name"`
}

// FriendStore persists player profiles and friend lists.
type FriendStore interface {
	AddPlayer(ctx context.Context, playerID int32, playerName string) error
	AddFriend(ctx context.Context, masterID, friendID int32) error
	RemoveFriend(ctx context.Context, masterID, friendID int32) error
	// ListFriends returns masterID's friends ordered by player id. Friends
	// without a stored profile have an empty name.
	ListFriends(ctx context.Context, masterID int32) ([]Profile, error)
	Close()
}
