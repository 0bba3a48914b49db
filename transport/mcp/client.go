package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/wricardo/minigame/game/room"
	"github.com/wricardo/minigame/game/service"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Minigame Room Server",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Minigame Room Server - MCP Interface

This is a thin client that proxies all requests to the REST API server.

Rooms are owned by their host: a room's id is the host's player id, and the
room closes for everyone when the host leaves. Players join rooms over
WebSocket; these tools inspect and administer rooms from the outside.

AVAILABLE TOOLS:
- create_room: Create a room owned by a player
- list_rooms: List every live room
- get_room: Show one room with its players and cars
- change_car: Move a player into another car
- change_car_skin: Change the skin of a car
- quit_room: Ask a connected player to leave its room
- add_player: Register a player profile
- add_friend / remove_friend: Edit a friend list
- list_friends: Show a player's friends`),
	)

	// Register all tools
	c.registerTools()
}

func intProperty(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "integer",
		"description": description,
	}
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	// Rooms
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_room",
		Description: "Create an empty room owned by player_id. The room id equals the host's player id.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"player_id":     intProperty("Host player id"),
				"weather_id":    intProperty("Weather preset (optional)"),
				"background_id": intProperty("Background preset (optional)"),
			},
			Required: []string{"player_id"},
		},
	}, c.handleCreateRoom)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_rooms",
		Description: "List every live room",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListRooms)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_room",
		Description: "Get a room snapshot with its players and cars",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"room_id": intProperty("Room id"),
			},
			Required: []string{"room_id"},
		},
	}, c.handleGetRoom)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "quit_room",
		Description: "Ask a connected player to leave its room. When the host quits, every other occupant is closed and the room is removed.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"room_id":   intProperty("Room id"),
				"player_id": intProperty("Player leaving the room"),
			},
			Required: []string{"room_id", "player_id"},
		},
	}, c.handleQuitRoom)

	// Cars
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "change_car",
		Description: "Move a player out of every car and into car_id",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"room_id":   intProperty("Room id"),
				"player_id": intProperty("Player to move"),
				"car_id":    intProperty("Destination car"),
			},
			Required: []string{"room_id", "player_id", "car_id"},
		},
	}, c.handleChangeCar)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "change_car_skin",
		Description: "Change the skin of a car",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"room_id": intProperty("Room id"),
				"car_id":  intProperty("Car to repaint"),
				"skin_id": intProperty("New skin"),
			},
			Required: []string{"room_id", "car_id", "skin_id"},
		},
	}, c.handleChangeCarSkin)

	// Players and friends
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "add_player",
		Description: "Register a player profile so it shows up by name in friend lists",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"player_id": intProperty("Player id"),
				"player_name": map[string]interface{}{
					"type":        "string",
					"description": "Display name",
				},
			},
			Required: []string{"player_id", "player_name"},
		},
	}, c.handleAddPlayer)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "add_friend",
		Description: "Add friend_id to master_id's friend list",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"master_id": intProperty("Owner of the friend list"),
				"friend_id": intProperty("Player to add"),
			},
			Required: []string{"master_id", "friend_id"},
		},
	}, c.handleAddFriend)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "remove_friend",
		Description: "Remove friend_id from master_id's friend list",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"master_id": intProperty("Owner of the friend list"),
				"friend_id": intProperty("Player to remove"),
			},
			Required: []string{"master_id", "friend_id"},
		},
	}, c.handleRemoveFriend)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_friends",
		Description: "List master_id's friends",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"master_id": intProperty("Owner of the friend list"),
			},
			Required: []string{"master_id"},
		},
	}, c.handleListFriends)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	url := c.baseURL + path

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	if args == nil {
		return map[string]interface{}{}
	}
	return args
}

// intArg reads a numeric argument. JSON numbers arrive as float64.
func intArg(args map[string]interface{}, key string) (int32, error) {
	switch v := args[key].(type) {
	case float64:
		return int32(v), nil
	case int:
		return int32(v), nil
	case int32:
		return v, nil
	case int64:
		return int32(v), nil
	case nil:
		return 0, fmt.Errorf("%s is required", key)
	default:
		return 0, fmt.Errorf("%s must be an integer", key)
	}
}

// intArgs reads every key in order and stops at the first missing one.
func intArgs(args map[string]interface{}, keys ...string) ([]int32, error) {
	values := make([]int32, len(keys))
	for i, key := range keys {
		v, err := intArg(args, key)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

// Tool handlers

func (c *Client) handleCreateRoom(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	playerID, err := intArg(args, "player_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	weatherID, _ := intArg(args, "weather_id")
	backgroundID, _ := intArg(args, "background_id")

	body := service.CreateRoomRequest{
		PlayerID:     playerID,
		WeatherID:    weatherID,
		BackgroundID: backgroundID,
	}

	var created service.CreateRoomResult
	if err := c.apiCall(ctx, "POST", "/createroom", body, &created); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Created room %d (%s)\n", created.RoomID, created.Content)), nil
}

func (c *Client) handleListRooms(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count int         `json:"count"`
		Rooms []room.Room `json:"rooms"`
	}

	if err := c.apiCall(ctx, "GET", "/api/rooms", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatRoomList(response.Rooms)), nil
}

func (c *Client) handleGetRoom(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	roomID, err := intArg(arguments(request), "room_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var snapshot room.Room
	if err := c.apiCall(ctx, "GET", fmt.Sprintf("/api/rooms/%d", roomID), nil, &snapshot); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatRoom(&snapshot)), nil
}

func (c *Client) handleQuitRoom(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ids, err := intArgs(arguments(request), "room_id", "player_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	body := map[string]int32{"room_id": ids[0], "player_id": ids[1]}
	var response map[string]string
	if err := c.apiCall(ctx, "POST", "/quitroom", body, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(response["message"]), nil
}

func (c *Client) handleChangeCar(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ids, err := intArgs(arguments(request), "room_id", "player_id", "car_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	body := map[string]int32{"room_id": ids[0], "player_id": ids[1], "car_id": ids[2]}
	var snapshot room.Room
	if err := c.apiCall(ctx, "POST", "/changecar", body, &snapshot); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Player %d moved to car %d\n\n%s", ids[1], ids[2], formatRoom(&snapshot))), nil
}

func (c *Client) handleChangeCarSkin(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ids, err := intArgs(arguments(request), "room_id", "car_id", "skin_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	body := map[string]int32{"room_id": ids[0], "car_id": ids[1], "skin_id": ids[2]}
	var snapshot room.Room
	if err := c.apiCall(ctx, "POST", "/changecarskin", body, &snapshot); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Car %d now uses skin %d\n\n%s", ids[1], ids[2], formatRoom(&snapshot))), nil
}

func (c *Client) handleAddPlayer(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	playerID, err := intArg(args, "player_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name, _ := args["player_name"].(string)

	body := map[string]interface{}{"player_id": playerID, "player_name": name}
	if err := c.apiCall(ctx, "POST", "/addplayer", body, nil); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Registered player %d (%s)", playerID, name)), nil
}

func (c *Client) handleAddFriend(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return c.editFriends(ctx, request, "/addfriend")
}

func (c *Client) handleRemoveFriend(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return c.editFriends(ctx, request, "/removefriend")
}

func (c *Client) editFriends(ctx context.Context, request mcp.CallToolRequest, path string) (*mcp.CallToolResult, error) {
	ids, err := intArgs(arguments(request), "master_id", "friend_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	body := map[string]int32{"master_id": ids[0], "friend_id": ids[1]}
	var response map[string]string
	if err := c.apiCall(ctx, "POST", path, body, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(response["message"]), nil
}

func (c *Client) handleListFriends(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	masterID, err := intArg(arguments(request), "master_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var list service.FriendList
	if err := c.apiCall(ctx, "POST", "/getfriends", map[string]int32{"master_id": masterID}, &list); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatFriendList(&list)), nil
}

// Formatting

func formatRoom(r *room.Room) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Room %d (weather %d, background %d)\n", r.RoomID, r.WeatherID, r.BackgroundID))

	sb.WriteString(fmt.Sprintf("\nPlayers (%d):\n", len(r.Players)))
	if len(r.Players) == 0 {
		sb.WriteString("  (empty)\n")
	}
	for _, p := range r.Players {
		host := ""
		if r.IsHost(p.PlayerID) {
			host = " [host]"
		}
		sb.WriteString(fmt.Sprintf("  - %d %s%s\n", p.PlayerID, p.PlayerName, host))
	}

	sb.WriteString(fmt.Sprintf("\nCars (%d):\n", len(r.Cars)))
	for _, car := range r.Cars {
		occupants := make([]string, 0, len(car.PlayerIDs))
		for _, id := range car.PlayerIDs {
			occupants = append(occupants, fmt.Sprintf("%d", id))
		}
		if len(occupants) == 0 {
			occupants = append(occupants, "nobody")
		}
		sb.WriteString(fmt.Sprintf("  - car %d (skin %d): %s\n", car.CarID, car.SkinID, strings.Join(occupants, ", ")))
	}

	return sb.String()
}

func formatRoomList(rooms []room.Room) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Live Rooms (%d):\n\n", len(rooms)))
	for _, r := range rooms {
		sb.WriteString(fmt.Sprintf("- Room %d: %d players, %d cars\n", r.RoomID, len(r.Players), len(r.Cars)))
	}
	return sb.String()
}

func formatFriendList(list *service.FriendList) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Friends of %d (%d):\n", list.MasterID, len(list.Friends)))
	for _, f := range list.Friends {
		name := f.PlayerName
		if name == "" {
			name = "(no profile)"
		}
		sb.WriteString(fmt.Sprintf("  - %d %s\n", f.PlayerID, name))
	}
	return sb.String()
}
