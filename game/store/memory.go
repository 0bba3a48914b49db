package store

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-process FriendStore. Its contents do not survive a
// restart.
type MemoryStore struct {
	mu      sync.RWMutex
	players map[int32]string
	friends map[int32]map[int32]struct{}
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		players: make(map[int32]string),
		friends: make(map[int32]map[int32]struct{}),
	}
}

func (s *MemoryStore) AddPlayer(ctx context.Context, playerID int32, playerName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.players[playerID]; exists {
		return ErrPlayerExists
	}
	s.players[playerID] = playerName
	return nil
}

func (s *MemoryStore) AddFriend(ctx context.Context, masterID, friendID int32) error {
	if masterID == friendID {
		return ErrSelfFriend
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.friends[masterID]
	if !ok {
		set = make(map[int32]struct{})
		s.friends[masterID] = set
	}
	if _, exists := set[friendID]; exists {
		return ErrFriendExists
	}
	set[friendID] = struct{}{}
	return nil
}

func (s *MemoryStore) RemoveFriend(ctx context.Context, masterID, friendID int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.friends[masterID]
	if !ok {
		return ErrFriendNotFound
	}
	if _, exists := set[friendID]; !exists {
		return ErrFriendNotFound
	}
	delete(set, friendID)
	if len(set) == 0 {
		delete(s.friends, masterID)
	}
	return nil
}

func (s *MemoryStore) ListFriends(ctx context.Context, masterID int32) ([]Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profiles := make([]Profile, 0, len(s.friends[masterID]))
	for id := range s.friends[masterID] {
		profiles = append(profiles, Profile{PlayerID: id, PlayerName: s.players[id]})
	}
	sort.Slice(profiles, func(i, j int) bool {
		return profiles[i].PlayerID < profiles[j].PlayerID
	})
	return profiles, nil
}

func (s *MemoryStore) Close() {}
