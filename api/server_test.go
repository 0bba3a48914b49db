package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/wricardo/minigame/game/broadcast"
	"github.com/wricardo/minigame/game/liveness"
	"github.com/wricardo/minigame/game/room"
	"github.com/wricardo/minigame/game/service"
	"github.com/wricardo/minigame/game/store"
	"github.com/wricardo/minigame/ratelimit"
	"github.com/wricardo/minigame/transport/websocket"
)

// MockRoomService implements service.RoomService for testing
type MockRoomService struct {
	CreateRoomFunc    func(ctx context.Context, req service.CreateRoomRequest) (*service.CreateRoomResult, error)
	GetRoomFunc       func(ctx context.Context, roomID int32) (*room.Room, error)
	ListRoomsFunc     func(ctx context.Context) ([]room.Room, error)
	RequestQuitFunc   func(ctx context.Context, roomID, playerID int32) error
	ChangeCarFunc     func(ctx context.Context, roomID, playerID, carID int32) (*room.Room, error)
	ChangeCarSkinFunc func(ctx context.Context, roomID, carID, skinID int32) (*room.Room, error)
	AddPlayerFunc     func(ctx context.Context, playerID int32, playerName string) error
	AddFriendFunc     func(ctx context.Context, masterID, friendID int32) error
	RemoveFriendFunc  func(ctx context.Context, masterID, friendID int32) error
	ListFriendsFunc   func(ctx context.Context, masterID int32) (*service.FriendList, error)
}

func (m *MockRoomService) CreateRoom(ctx context.Context, req service.CreateRoomRequest) (*service.CreateRoomResult, error) {
	if m.CreateRoomFunc != nil {
		return m.CreateRoomFunc(ctx, req)
	}
	return &service.CreateRoomResult{RoomID: req.PlayerID, Content: "room created"}, nil
}

func (m *MockRoomService) GetRoom(ctx context.Context, roomID int32) (*room.Room, error) {
	if m.GetRoomFunc != nil {
		return m.GetRoomFunc(ctx, roomID)
	}
	return &room.Room{RoomID: roomID, Players: []room.Player{}, Cars: []room.Car{}}, nil
}

func (m *MockRoomService) ListRooms(ctx context.Context) ([]room.Room, error) {
	if m.ListRoomsFunc != nil {
		return m.ListRoomsFunc(ctx)
	}
	return []room.Room{}, nil
}

func (m *MockRoomService) JoinRoom(ctx context.Context, req service.JoinRequest) (*room.Room, *broadcast.Receiver[room.Event], error) {
	return nil, nil, errors.New("not implemented")
}

func (m *MockRoomService) LeaveRoom(ctx context.Context, roomID, playerID int32) (*room.Room, bool, error) {
	return nil, false, errors.New("not implemented")
}

func (m *MockRoomService) Publish(ctx context.Context, roomID int32, ev room.Event) error {
	return nil
}

func (m *MockRoomService) RequestQuit(ctx context.Context, roomID, playerID int32) error {
	if m.RequestQuitFunc != nil {
		return m.RequestQuitFunc(ctx, roomID, playerID)
	}
	return nil
}

func (m *MockRoomService) Reconcile(ctx context.Context, roomID, playerID int32) error {
	return nil
}

func (m *MockRoomService) RecordPong(playerID int32)                  {}
func (m *MockRoomService) IsExpected(playerID int32) bool             { return false }
func (m *MockRoomService) SinceLastPong(playerID int32) time.Duration { return 0 }

func (m *MockRoomService) ChangeCar(ctx context.Context, roomID, playerID, carID int32) (*room.Room, error) {
	if m.ChangeCarFunc != nil {
		return m.ChangeCarFunc(ctx, roomID, playerID, carID)
	}
	return &room.Room{RoomID: roomID}, nil
}

func (m *MockRoomService) ChangeCarSkin(ctx context.Context, roomID, carID, skinID int32) (*room.Room, error) {
	if m.ChangeCarSkinFunc != nil {
		return m.ChangeCarSkinFunc(ctx, roomID, carID, skinID)
	}
	return &room.Room{RoomID: roomID}, nil
}

func (m *MockRoomService) AddPlayer(ctx context.Context, playerID int32, playerName string) error {
	if m.AddPlayerFunc != nil {
		return m.AddPlayerFunc(ctx, playerID, playerName)
	}
	return nil
}

func (m *MockRoomService) AddFriend(ctx context.Context, masterID, friendID int32) error {
	if m.AddFriendFunc != nil {
		return m.AddFriendFunc(ctx, masterID, friendID)
	}
	return nil
}

func (m *MockRoomService) RemoveFriend(ctx context.Context, masterID, friendID int32) error {
	if m.RemoveFriendFunc != nil {
		return m.RemoveFriendFunc(ctx, masterID, friendID)
	}
	return nil
}

func (m *MockRoomService) ListFriends(ctx context.Context, masterID int32) (*service.FriendList, error) {
	if m.ListFriendsFunc != nil {
		return m.ListFriendsFunc(ctx, masterID)
	}
	return &service.FriendList{MasterID: masterID, FriendIDs: []int32{}, Friends: []store.Profile{}}, nil
}

func doRequest(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return resp["error"]
}

func TestServer_CreateRoom(t *testing.T) {
	mock := &MockRoomService{}
	var got service.CreateRoomRequest
	mock.CreateRoomFunc = func(ctx context.Context, req service.CreateRoomRequest) (*service.CreateRoomResult, error) {
		got = req
		return &service.CreateRoomResult{RoomID: req.PlayerID, Content: "room created"}, nil
	}
	server := NewServer(mock, nil, nil, nil)

	w := doRequest(t, server, "POST", "/createroom", map[string]interface{}{
		"player_id":     42,
		"player_name":   "ana",
		"car_id":        1,
		"weather_id":    2,
		"background_id": 3,
	})

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", w.Code)
	}
	if got.PlayerID != 42 || got.PlayerName != "ana" || got.WeatherID != 2 || got.BackgroundID != 3 {
		t.Errorf("Unexpected request passed to service: %+v", got)
	}

	var resp service.CreateRoomResult
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.RoomID != 42 {
		t.Errorf("Expected room_id 42, got %d", resp.RoomID)
	}
}

func TestServer_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"bad parameter", &service.ParamError{Field: "player_id"}, http.StatusBadRequest},
		{"room not found", room.ErrRoomNotFound, http.StatusNotFound},
		{"player not in room", service.ErrPlayerNotInRoom, http.StatusNotFound},
		{"room exists", fmt.Errorf("failed to create room 1: %w", room.ErrRoomExists), http.StatusConflict},
		{"room gone", room.ErrRoomGone, http.StatusGone},
		{"friend exists", store.ErrFriendExists, http.StatusConflict},
		{"friend missing", store.ErrFriendNotFound, http.StatusNotFound},
		{"self friend", store.ErrSelfFriend, http.StatusBadRequest},
		{"player exists", store.ErrPlayerExists, http.StatusConflict},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.status {
				t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.status)
			}
		})
	}
}

func TestServer_Handlers(t *testing.T) {
	notFound := func(ctx context.Context, roomID, playerID, carID int32) (*room.Room, error) {
		return nil, room.ErrRoomNotFound
	}
	gone := func(ctx context.Context, roomID, carID, skinID int32) (*room.Room, error) {
		return nil, room.ErrRoomGone
	}

	tests := []struct {
		name   string
		mock   *MockRoomService
		method string
		path   string
		body   interface{}
		status int
	}{
		{"change car", &MockRoomService{}, "POST", "/changecar", map[string]int{"room_id": 1, "player_id": 2, "car_id": 3}, http.StatusOK},
		{"change car missing room", &MockRoomService{ChangeCarFunc: notFound}, "POST", "/changecar", map[string]int{"room_id": 1}, http.StatusNotFound},
		{"change skin", &MockRoomService{}, "POST", "/changecarskin", map[string]int{"room_id": 1, "car_id": 3, "skin_id": 4}, http.StatusOK},
		{"change skin room gone", &MockRoomService{ChangeCarSkinFunc: gone}, "POST", "/changecarskin", map[string]int{"room_id": 1}, http.StatusGone},
		{"quit room", &MockRoomService{}, "POST", "/quitroom", map[string]int{"room_id": 1, "player_id": 2}, http.StatusOK},
		{"add player", &MockRoomService{}, "POST", "/addplayer", map[string]interface{}{"player_id": 1, "player_name": "ana"}, http.StatusCreated},
		{"add friend", &MockRoomService{}, "POST", "/addfriend", map[string]int{"master_id": 1, "friend_id": 2}, http.StatusOK},
		{"remove friend", &MockRoomService{}, "POST", "/removefriend", map[string]int{"master_id": 1, "friend_id": 2}, http.StatusOK},
		{"get friends", &MockRoomService{}, "POST", "/getfriends", map[string]int{"master_id": 1}, http.StatusOK},
		{"list rooms", &MockRoomService{}, "GET", "/api/rooms", nil, http.StatusOK},
		{"get room", &MockRoomService{}, "GET", "/api/rooms/42", nil, http.StatusOK},
		{"get room bad id", &MockRoomService{}, "GET", "/api/rooms/abc", nil, http.StatusBadRequest},
		{"invalid json", &MockRoomService{}, "POST", "/changecar", "{not json", http.StatusBadRequest},
		{"wrong method", &MockRoomService{}, "GET", "/createroom", nil, http.StatusMethodNotAllowed},
		{"health", &MockRoomService{}, "GET", "/health", nil, http.StatusOK},
		{"ws without hub", &MockRoomService{}, "GET", "/ws", nil, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := NewServer(tt.mock, nil, nil, nil)
			w := doRequest(t, server, tt.method, tt.path, tt.body)
			if w.Code != tt.status {
				t.Errorf("Expected status %d, got %d (body %s)", tt.status, w.Code, w.Body.String())
			}
		})
	}
}

func TestServer_ErrorBody(t *testing.T) {
	mock := &MockRoomService{
		GetRoomFunc: func(ctx context.Context, roomID int32) (*room.Room, error) {
			return nil, room.ErrRoomNotFound
		},
	}
	server := NewServer(mock, nil, nil, nil)

	w := doRequest(t, server, "GET", "/api/rooms/7", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d", w.Code)
	}
	if msg := decodeError(t, w); msg != room.ErrRoomNotFound.Error() {
		t.Errorf("Expected error %q, got %q", room.ErrRoomNotFound.Error(), msg)
	}
}

func TestServer_CORS(t *testing.T) {
	server := NewServer(&MockRoomService{}, nil, nil, nil)

	w := doRequest(t, server, "GET", "/health", nil)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Expected permissive CORS header, got %q", got)
	}

	w = doRequest(t, server, "OPTIONS", "/createroom", nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("Expected 204 for preflight, got %d", w.Code)
	}
}

// TestServer_RoomFlow drives the real service through the HTTP surface.
func TestServer_RoomFlow(t *testing.T) {
	rooms := room.NewRegistry(room.DefaultChannelCapacity)
	svc := service.NewRoomService(rooms, liveness.NewTracker(), store.NewMemoryStore(), nil)
	hub := websocket.NewHub(svc, websocket.Config{}, nil)
	server := NewServer(svc, hub, nil, nil)

	w := doRequest(t, server, "POST", "/createroom", map[string]int{"player_id": 42, "weather_id": 1, "background_id": 2})
	if w.Code != http.StatusCreated {
		t.Fatalf("createroom: expected 201, got %d", w.Code)
	}
	w = doRequest(t, server, "POST", "/createroom", map[string]int{"player_id": 42})
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate createroom: expected 409, got %d", w.Code)
	}

	// Seat two players the way a connection would.
	for _, p := range []struct{ id, car int32 }{{42, 3}, {7, 1}} {
		if _, rx, err := svc.JoinRoom(context.Background(), service.JoinRequest{RoomID: 42, PlayerID: p.id, CarID: p.car}); err != nil {
			t.Fatalf("JoinRoom failed: %v", err)
		} else {
			rx.Close()
		}
	}

	w = doRequest(t, server, "POST", "/changecar", map[string]int{"room_id": 42, "player_id": 7, "car_id": 3})
	if w.Code != http.StatusOK {
		t.Fatalf("changecar: expected 200, got %d", w.Code)
	}
	var snapshot room.Room
	json.NewDecoder(w.Body).Decode(&snapshot)
	if car, ok := snapshot.FindCar(3); !ok || len(car.PlayerIDs) != 2 {
		t.Errorf("Expected car 3 to hold both players, got %+v", car)
	}

	w = doRequest(t, server, "GET", "/api/rooms", nil)
	var list struct {
		Count int         `json:"count"`
		Rooms []room.Room `json:"rooms"`
	}
	json.NewDecoder(w.Body).Decode(&list)
	if list.Count != 1 || list.Rooms[0].RoomID != 42 {
		t.Errorf("Unexpected room list: %+v", list)
	}

	w = doRequest(t, server, "POST", "/quitroom", map[string]int{"room_id": 42, "player_id": 99})
	if w.Code != http.StatusNotFound {
		t.Errorf("quitroom for absent player: expected 404, got %d", w.Code)
	}

	w = doRequest(t, server, "POST", "/addfriend", map[string]int{"master_id": 1, "friend_id": 1})
	if w.Code != http.StatusBadRequest {
		t.Errorf("self addfriend: expected 400, got %d", w.Code)
	}

	// A host with no connection closes its room directly.
	doRequest(t, server, "POST", "/createroom", map[string]int{"player_id": 99})
	w = doRequest(t, server, "POST", "/quitroom", map[string]int{"room_id": 99, "player_id": 99})
	if w.Code != http.StatusOK {
		t.Fatalf("host quitroom: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	w = doRequest(t, server, "GET", "/api/rooms/99", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("room after host quit: expected 404, got %d", w.Code)
	}
}

func TestServer_CreateRoomRateLimited(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	limiter := ratelimit.NewLimiter(client, ratelimit.Limits{Requests: 2, Window: time.Minute}, nil)
	server := NewServer(&MockRoomService{}, nil, limiter, nil)

	for i := 0; i < 2; i++ {
		w := doRequest(t, server, "POST", "/createroom", map[string]int{"player_id": 1})
		if w.Code != http.StatusCreated {
			t.Fatalf("request %d: expected 201, got %d", i, w.Code)
		}
	}

	w := doRequest(t, server, "POST", "/createroom", map[string]int{"player_id": 1})
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("Expected 429 after budget is spent, got %d", w.Code)
	}
	if msg := decodeError(t, w); msg != ratelimit.ErrRateLimited.Error() {
		t.Errorf("Unexpected error body %q", msg)
	}

	// Other routes are not limited.
	w = doRequest(t, server, "GET", "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected /health to stay available, got %d", w.Code)
	}
}
