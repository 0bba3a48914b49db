// Package api provides the HTTP endpoints of the room server.
//
// The api package implements:
//   - Room creation and explicit departure
//   - Car assignment and skin changes for an existing room
//   - Player profiles and friend lists
//   - Read-only room inspection
//   - WebSocket upgrade handling via the websocket hub
//
// Endpoints:
//
// Rooms:
//   - POST /createroom - Create a room owned by player_id (201, 409 if it exists)
//   - POST /quitroom - Ask a player's session to leave its room
//   - GET /api/rooms - List every live room
//   - GET /api/rooms/{id} - Get one room snapshot
//
// Cars:
//   - POST /changecar - Move a player into another car
//   - POST /changecarskin - Change the skin of a car
//
// Friends:
//   - POST /addplayer - Register a player profile
//   - POST /addfriend - Add friend_id to master_id's list
//   - POST /removefriend - Remove friend_id from master_id's list
//   - POST /getfriends - List master_id's friends
//
// Transport:
//   - GET /ws - Join a room over WebSocket (query parameters player_id,
//     player_name, room_id, car_id, skin_id, weather_id, background_id)
//   - GET /health - Liveness probe with the open connection count
//
// Request/Response Format:
//
// All endpoints accept and return JSON. Errors are returned as
//
//	{"error": "room not found"}
//
// with 400 for bad parameters, 404 for unknown rooms or players, 409 for
// duplicates, 410 for a room torn down mid-request and 429 when rate limited.
//
// Usage:
//
//	svc := service.NewRoomService(room.NewRegistry(100), liveness.NewTracker(), store.NewMemoryStore(), logger)
//	hub := websocket.NewHub(svc, websocket.Config{}, logger)
//	server := api.NewServer(svc, hub, limiter, logger)
//	http.ListenAndServe(":7777", server)
package api
