// Package room holds the shared state of every live room and the broadcast
// channel that keeps a room's occupants in sync.
//
// A Registry maps room ids to entries. Each entry couples the Room value with
// its broadcast.Channel, so the two are always created and removed together.
// The map itself is lock-free across keys; all contention is local to the
// entry of a single room.
//
// Mutations (Join, Leave, ChangeCar, ChangeCarSkin) work on a copy of the
// room, publish a Sync event carrying that copy, and only then store it. A
// mutation whose Sync cannot be published (the room was removed concurrently)
// leaves the room untouched and reports ErrRoomGone. Because the publish
// happens inside the entry's critical section, the order of Sync events on
// the channel is the order in which mutations were applied.
//
// Host rule:
//
// The host of a room is the player whose id equals the room id. There is no
// separate host flag.
//
// Events:
//
//   - EventText / EventEmoji: chat from one player, fanned out to everyone
//   - EventSync: a full room snapshot after a mutation
//   - EventQuit: a request for one player's session to close
package room
