package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/wricardo/minigame/game/room"
	"github.com/wricardo/minigame/game/service"
	"github.com/wricardo/minigame/game/store"
)

func callTool(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil {
		t.Fatal("Expected result, got nil")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatal("Expected text content in result")
	}
	return text.Text
}

func sampleRoom() room.Room {
	return room.Room{
		RoomID:       42,
		WeatherID:    1,
		BackgroundID: 2,
		Players: []room.Player{
			{PlayerID: 42, PlayerName: "host", CarID: 3},
			{PlayerID: 7, PlayerName: "guest", CarID: 1},
		},
		Cars: []room.Car{
			{CarID: 3, SkinID: 9, PlayerIDs: []int32{42, 7}},
			{CarID: 1, PlayerIDs: []int32{}},
		},
	}
}

func TestNewClient(t *testing.T) {
	baseURL := "http://localhost:7777/"
	client := NewClient(baseURL)

	if client == nil {
		t.Fatal("Expected client to be created")
	}

	if client.baseURL != "http://localhost:7777" {
		t.Errorf("Expected trailing slash to be trimmed, got %s", client.baseURL)
	}

	if client.httpClient == nil {
		t.Error("Expected HTTP client to be initialized")
	}

	if client.GetMCPServer() == nil {
		t.Error("Expected MCP server to be initialized")
	}
}

func TestClient_apiCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(sampleRoom())
	}))
	defer server.Close()

	client := NewClient(server.URL)

	var snapshot room.Room
	if err := client.apiCall(context.Background(), "GET", "/api/rooms/42", nil, &snapshot); err != nil {
		t.Fatalf("apiCall failed: %v", err)
	}

	if snapshot.RoomID != 42 || len(snapshot.Players) != 2 {
		t.Errorf("Unexpected snapshot: %+v", snapshot)
	}
}

func TestClient_apiCall_Error(t *testing.T) {
	client := NewClient("http://invalid-url-that-does-not-exist:9999")

	if err := client.apiCall(context.Background(), "GET", "/api/rooms", nil, nil); err == nil {
		t.Error("Expected error for invalid URL")
	}
}

func TestClient_apiCall_HTTPError(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"plain body", http.StatusInternalServerError, "Internal Server Error", "API error: 500"},
		{"json error", http.StatusNotFound, `{"error":"room not found"}`, "room not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewClient(server.URL)
			err := client.apiCall(context.Background(), "GET", "/api/rooms/1", nil, nil)
			if err == nil {
				t.Fatal("Expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected %q in error, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestIntArg(t *testing.T) {
	args := map[string]interface{}{
		"from_json": float64(42),
		"plain":     7,
		"text":      "7",
	}

	tests := []struct {
		key     string
		want    int32
		wantErr bool
	}{
		{"from_json", 42, false},
		{"plain", 7, false},
		{"text", 0, true},
		{"missing", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := intArg(args, tt.key)
			if (err != nil) != tt.wantErr {
				t.Fatalf("intArg(%q) error = %v, wantErr %v", tt.key, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("intArg(%q) = %d, want %d", tt.key, got, tt.want)
			}
		})
	}
}

func TestClient_handleCreateRoom(t *testing.T) {
	var got service.CreateRoomRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" || r.URL.Path != "/createroom" {
			t.Errorf("Expected POST /createroom, got %s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(service.CreateRoomResult{RoomID: got.PlayerID, Content: "room created"})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	result, err := client.handleCreateRoom(context.Background(), callTool("create_room", map[string]interface{}{
		"player_id":  float64(42),
		"weather_id": float64(3),
	}))
	if err != nil {
		t.Fatalf("handleCreateRoom failed: %v", err)
	}

	if text := resultText(t, result); !strings.Contains(text, "Created room 42") {
		t.Errorf("Expected room id in result, got: %s", text)
	}
	if got.PlayerID != 42 || got.WeatherID != 3 {
		t.Errorf("Unexpected request body: %+v", got)
	}
}

func TestClient_handleCreateRoom_MissingPlayer(t *testing.T) {
	client := NewClient("http://localhost:7777")

	result, err := client.handleCreateRoom(context.Background(), callTool("create_room", map[string]interface{}{}))
	if err != nil {
		t.Fatalf("handleCreateRoom failed: %v", err)
	}
	if !result.IsError {
		t.Error("Expected tool error for missing player_id")
	}
	if text := resultText(t, result); !strings.Contains(text, "player_id is required") {
		t.Errorf("Unexpected error text: %s", text)
	}
}

func TestClient_handleChangeCar(t *testing.T) {
	var body map[string]int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/changecar" {
			t.Errorf("Expected /changecar, got %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&body)
		json.NewEncoder(w).Encode(sampleRoom())
	}))
	defer server.Close()

	client := NewClient(server.URL)
	result, err := client.handleChangeCar(context.Background(), callTool("change_car", map[string]interface{}{
		"room_id":   float64(42),
		"player_id": float64(7),
		"car_id":    float64(3),
	}))
	if err != nil {
		t.Fatalf("handleChangeCar failed: %v", err)
	}

	text := resultText(t, result)
	if !strings.Contains(text, "Player 7 moved to car 3") {
		t.Errorf("Expected confirmation in result, got: %s", text)
	}
	if body["room_id"] != 42 || body["player_id"] != 7 || body["car_id"] != 3 {
		t.Errorf("Unexpected request body: %v", body)
	}
}

func TestClient_handleGetRoom_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"room not found"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	result, err := client.handleGetRoom(context.Background(), callTool("get_room", map[string]interface{}{
		"room_id": float64(5),
	}))
	if err != nil {
		t.Fatalf("handleGetRoom failed: %v", err)
	}
	if !result.IsError {
		t.Error("Expected tool error")
	}
	if text := resultText(t, result); text != "room not found" {
		t.Errorf("Expected API error to be surfaced, got: %s", text)
	}
}

func TestClient_handleListFriends(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(service.FriendList{
			MasterID:  1,
			FriendIDs: []int32{2, 3},
			Friends: []store.Profile{
				{PlayerID: 2, PlayerName: "bo"},
				{PlayerID: 3},
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	result, err := client.handleListFriends(context.Background(), callTool("list_friends", map[string]interface{}{
		"master_id": float64(1),
	}))
	if err != nil {
		t.Fatalf("handleListFriends failed: %v", err)
	}

	text := resultText(t, result)
	for _, want := range []string{"Friends of 1 (2)", "2 bo", "3 (no profile)"} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected %q in result, got: %s", want, text)
		}
	}
}

func TestFormatRoom(t *testing.T) {
	r := sampleRoom()
	result := formatRoom(&r)

	expectedFields := []string{
		"Room 42 (weather 1, background 2)",
		"Players (2):",
		"42 host [host]",
		"7 guest",
		"car 3 (skin 9): 42, 7",
		"car 1 (skin 0): nobody",
	}

	for _, field := range expectedFields {
		if !strings.Contains(result, field) {
			t.Errorf("Expected field '%s' in formatted output, got: %s", field, result)
		}
	}
}

func TestFormatRoom_Empty(t *testing.T) {
	result := formatRoom(&room.Room{RoomID: 9})

	if !strings.Contains(result, "(empty)") {
		t.Errorf("Expected '(empty)' in result, got: %s", result)
	}
}

func TestFormatRoomList(t *testing.T) {
	result := formatRoomList([]room.Room{sampleRoom(), {RoomID: 9}})

	for _, want := range []string{"Live Rooms (2)", "Room 42: 2 players, 2 cars", "Room 9: 0 players, 0 cars"} {
		if !strings.Contains(result, want) {
			t.Errorf("Expected %q in result, got: %s", want, result)
		}
	}
}
