// Package mcp provides a Model Context Protocol front end for the room server.
//
// The mcp package implements:
//   - An MCP server whose tools proxy to the REST API
//   - Tool definitions for room administration and friend lists
//   - Plain-text rendering of rooms for AI agents
//
// MCP Tools:
//
// The package exposes the following tools for AI agents:
//   - create_room: Create an empty room owned by a player
//   - list_rooms: List every live room
//   - get_room: Show one room with players and cars
//   - quit_room: Ask a connected player to leave
//   - change_car: Move a player into another car
//   - change_car_skin: Change a car's skin
//   - add_player: Register a player profile
//   - add_friend / remove_friend: Edit a friend list
//   - list_friends: Show a player's friends
//
// Transport Modes:
//
// The server supports two transport modes:
//   - Stdio: Direct stdio communication for local MCP clients
//   - HTTP: The /mcp endpoint mounted by the serve command
//
// Joining a room is not exposed as a tool; players join over WebSocket.
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:7777")
//	server.ServeStdio(client.GetMCPServer())
package mcp
