package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/wricardo/minigame/game/broadcast"
	"github.com/wricardo/minigame/game/liveness"
	"github.com/wricardo/minigame/game/room"
	"github.com/wricardo/minigame/game/store"
)

// roomServiceImpl implements the RoomService interface
type roomServiceImpl struct {
	rooms   *room.Registry
	live    *liveness.Tracker
	friends store.FriendStore
	logger  *slog.Logger
}

// NewRoomService creates a room service over the given registries and store.
// A nil logger discards output.
func NewRoomService(rooms *room.Registry, live *liveness.Tracker, friends store.FriendStore, logger *slog.Logger) RoomService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &roomServiceImpl{
		rooms:   rooms,
		live:    live,
		friends: friends,
		logger:  logger,
	}
}

// CreateRoom registers an empty room whose id is the requesting player's id.
func (s *roomServiceImpl) CreateRoom(ctx context.Context, req CreateRoomRequest) (*CreateRoomResult, error) {
	if req.PlayerID == 0 {
		return nil, &ParamError{Field: "player_id", Reason: ReasonReservedID}
	}

	if _, err := s.rooms.Create(req.PlayerID, req.WeatherID, req.BackgroundID); err != nil {
		return nil, fmt.Errorf("failed to create room %d: %w", req.PlayerID, err)
	}

	s.logger.Info("room created",
		"room_id", req.PlayerID,
		"weather_id", req.WeatherID,
		"background_id", req.BackgroundID)

	return &CreateRoomResult{
		RoomID:  req.PlayerID,
		Content: "room created",
	}, nil
}

func (s *roomServiceImpl) GetRoom(ctx context.Context, roomID int32) (*room.Room, error) {
	snapshot, err := s.rooms.Get(roomID)
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (s *roomServiceImpl) ListRooms(ctx context.Context) ([]room.Room, error) {
	return s.rooms.List(), nil
}

// JoinRoom seats the player in a new car of its own and subscribes it to the
// room channel.
func (s *roomServiceImpl) JoinRoom(ctx context.Context, req JoinRequest) (*room.Room, *broadcast.Receiver[room.Event], error) {
	player := room.Player{
		PlayerID:     req.PlayerID,
		PlayerName:   req.PlayerName,
		CarID:        req.CarID,
		WeatherID:    req.WeatherID,
		BackgroundID: req.BackgroundID,
	}
	car := room.Car{
		CarID:     req.CarID,
		SkinID:    req.SkinID,
		PlayerIDs: []int32{req.PlayerID},
	}

	snapshot, rx, err := s.rooms.Join(req.RoomID, player, car)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("player joined",
		"room_id", req.RoomID,
		"player_id", req.PlayerID,
		"players", len(snapshot.Players))
	return &snapshot, rx, nil
}

func (s *roomServiceImpl) LeaveRoom(ctx context.Context, roomID, playerID int32) (*room.Room, bool, error) {
	snapshot, removed, err := s.rooms.Leave(roomID, playerID)
	if err != nil {
		return nil, false, err
	}
	if removed {
		s.logger.Info("player left",
			"room_id", roomID,
			"player_id", playerID,
			"players", len(snapshot.Players))
	}
	return &snapshot, removed, nil
}

func (s *roomServiceImpl) Publish(ctx context.Context, roomID int32, ev room.Event) error {
	return s.rooms.Publish(roomID, ev)
}

// RequestQuit handles an explicit departure. A departing host asks every
// other occupant's session to close and then its own, which tears the room
// down; a host with no connected session closes the room directly. Anyone
// else asks only its own session to close.
func (s *roomServiceImpl) RequestQuit(ctx context.Context, roomID, playerID int32) error {
	snapshot, err := s.rooms.Get(roomID)
	if err != nil {
		return err
	}

	if !snapshot.IsHost(playerID) {
		if !snapshot.HasPlayer(playerID) {
			return ErrPlayerNotInRoom
		}
		s.live.MarkExpected(playerID)
		return s.rooms.Publish(roomID, room.QuitEvent(playerID, roomID))
	}

	others := otherOccupants(snapshot, playerID)
	s.live.MarkExpected(others...)
	for _, id := range others {
		if err := s.rooms.Publish(roomID, room.QuitEvent(id, roomID)); err != nil {
			return err
		}
	}

	s.logger.Info("host quit requested",
		"room_id", roomID,
		"player_id", playerID,
		"evicting", len(others))

	if !snapshot.HasPlayer(playerID) {
		return s.Reconcile(ctx, roomID, playerID)
	}
	s.live.MarkExpected(playerID)
	return s.rooms.Publish(roomID, room.QuitEvent(playerID, roomID))
}

// Reconcile tears down whatever a finished connection left behind. It is
// called exactly once per connection.
func (s *roomServiceImpl) Reconcile(ctx context.Context, roomID, playerID int32) error {
	defer s.live.Forget(playerID)

	if roomID == playerID {
		// Guests are marked under the room lock: one leaving concurrently is
		// either absent from last or forgets its mark afterwards.
		_, err := s.rooms.RemoveFunc(roomID, func(last room.Room) {
			s.live.MarkExpected(otherOccupants(last, playerID)...)
		})
		if err != nil {
			if errors.Is(err, room.ErrRoomNotFound) {
				return nil
			}
			return err
		}
		s.logger.Info("room closed", "room_id", roomID, "host_id", playerID)
		return nil
	}

	_, removed, err := s.LeaveRoom(ctx, roomID, playerID)
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) || errors.Is(err, room.ErrRoomGone) {
			return nil
		}
		return err
	}
	if !removed {
		return nil
	}

	if err := s.rooms.Publish(roomID, room.QuitEvent(playerID, roomID)); err != nil && !errors.Is(err, room.ErrRoomGone) && !errors.Is(err, room.ErrRoomNotFound) {
		return err
	}
	return nil
}

func (s *roomServiceImpl) RecordPong(playerID int32) {
	s.live.RecordPong(playerID)
}

func (s *roomServiceImpl) IsExpected(playerID int32) bool {
	return s.live.IsExpected(playerID)
}

func (s *roomServiceImpl) SinceLastPong(playerID int32) time.Duration {
	return s.live.SinceLastPong(playerID)
}

func (s *roomServiceImpl) ChangeCar(ctx context.Context, roomID, playerID, carID int32) (*room.Room, error) {
	snapshot, err := s.rooms.ChangeCar(roomID, playerID, carID)
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (s *roomServiceImpl) ChangeCarSkin(ctx context.Context, roomID, carID, skinID int32) (*room.Room, error) {
	snapshot, err := s.rooms.ChangeCarSkin(roomID, carID, skinID)
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (s *roomServiceImpl) AddPlayer(ctx context.Context, playerID int32, playerName string) error {
	if playerName == "" {
		return &ParamError{Field: "player_name", Reason: "required"}
	}
	return s.friends.AddPlayer(ctx, playerID, playerName)
}

func (s *roomServiceImpl) AddFriend(ctx context.Context, masterID, friendID int32) error {
	return s.friends.AddFriend(ctx, masterID, friendID)
}

func (s *roomServiceImpl) RemoveFriend(ctx context.Context, masterID, friendID int32) error {
	return s.friends.RemoveFriend(ctx, masterID, friendID)
}

func (s *roomServiceImpl) ListFriends(ctx context.Context, masterID int32) (*FriendList, error) {
	profiles, err := s.friends.ListFriends(ctx, masterID)
	if err != nil {
		return nil, err
	}

	ids := make([]int32, 0, len(profiles))
	for _, p := range profiles {
		ids = append(ids, p.PlayerID)
	}
	return &FriendList{
		MasterID:  masterID,
		FriendIDs: ids,
		Friends:   profiles,
	}, nil
}

// otherOccupants returns the distinct player ids in snapshot other than self.
func otherOccupants(snapshot room.Room, self int32) []int32 {
	seen := make(map[int32]bool, len(snapshot.Players))
	ids := make([]int32, 0, len(snapshot.Players))
	for _, id := range snapshot.PlayerIDs() {
		if id == self || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}
