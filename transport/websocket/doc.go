// Package websocket provides the real-time transport for minigame rooms.
//
// The websocket package implements:
//   - Join parameter validation before the upgrade
//   - One session per connection with reader, forwarder and heartbeat duties
//   - Serialized writes through a single outbound sink
//   - Explicit quit via close frame and heartbeat-detected death
//
// Connection:
//
// Clients connect to /ws with every parameter in the query string:
//
//	/ws?player_id=7&room_id=42&player_name=ana&car_id=1&weather_id=0&background_id=0&skin_id=3
//
// A missing or malformed parameter yields 400 and an unknown room 404; in both
// cases nothing is mutated. On success the player is seated in a new car of
// its own and receives the room snapshot as its first frame. Player and room
// ids of 0 are reserved and rejected.
//
// Message Protocol:
//
//   - Incoming: {"player_id": 7, "content": "hi", "mes_type": "text"|"emoji"}
//   - Outgoing: {"type": "text"|"emoji", "player_id": 7, "content": "hi"}
//   - Outgoing: {"type": "sync", "room_info": {...}}
//
// Malformed incoming frames are logged and dropped. Liveness uses native
// ping/pong frames.
//
// Session Lifecycle:
//
//  1. Reader publishes chat, records pongs, and turns a close frame into a quit
//  2. Forwarder writes room events; a Quit for this player ends it with a
//     final snapshot and, when expected, a normal close frame
//  3. Heartbeat pings every interval and ends the session when the peer has
//     been silent past the stale threshold
//  4. When the room is removed the forwarder sends close code 1008
//  5. Server shutdown sends close code 1001; any other ending drops the
//     transport without a close frame
//  6. Once all duties return, the room service reconciles the player exactly once
//
// A host's quit, by close frame or over HTTP, closes every guest with a normal
// close frame and then removes the room.
//
// Events may be skipped when a connection cannot keep up with its room;
// the next Sync brings it back to the current state.
package websocket
