// Package service provides the room service, the one context object every
// transport (HTTP, WebSocket, MCP) is handed at startup.
//
// The service package implements:
//   - Room creation and inspection
//   - Seating, car changes and skin changes
//   - The explicit quit cascade and the end-of-connection reconciler
//   - Liveness bookkeeping for heartbeat checks
//   - Player profiles and friend lists
//
// Core Interfaces:
//
// RoomService is the main service interface. It is built once from a
// room.Registry, a liveness.Tracker and a store.FriendStore and injected into
// every connection; there is no package-level state.
//
// Lifecycle:
//
// A connection joins with JoinRoom and receives a room snapshot plus a
// channel receiver. An explicit quit goes through RequestQuit, which marks
// the affected players as expected closures and publishes Quit events; a
// host's quit ends its own connection last, or removes the room at once when
// the host has none. When
// the connection finishes, Reconcile runs once:
//
//   - host (room id == player id): every other occupant is marked expected
//     and the room is removed, closing its channel
//   - guest: the player and its car are removed and a Quit is published
//
// Both paths forget the player's liveness entries.
//
// Usage:
//
//	rooms := room.NewRegistry(room.DefaultChannelCapacity)
//	svc := service.NewRoomService(rooms, liveness.NewTracker(), store.NewMemoryStore(), logger)
//
//	res, err := svc.CreateRoom(ctx, service.CreateRoomRequest{PlayerID: 42})
//	snapshot, rx, err := svc.JoinRoom(ctx, service.JoinRequest{RoomID: 42, PlayerID: 42})
package service
