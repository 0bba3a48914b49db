// Package store persists player profiles and friend lists.
//
// Two FriendStore implementations are provided: PostgresStore, backed by a
// pgx connection pool over the player_info and friend_mapping tables, and
// MemoryStore, used when no database is configured and in tests. Room state
// never goes through this package.
package store
