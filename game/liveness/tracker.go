// Package liveness tracks which players are expected to disconnect and when
// each player last answered a heartbeat probe.
package liveness

import (
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// Tracker holds the expected-closure set and the last-pong map. It is safe
// for concurrent use.
type Tracker struct {
	expected *xsync.MapOf[int32, struct{}]
	lastPong *xsync.MapOf[int32, time.Time]
	now      func() time.Time
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		expected: xsync.NewMapOf[int32, struct{}](),
		lastPong: xsync.NewMapOf[int32, time.Time](),
		now:      time.Now,
	}
}

// MarkExpected records that the given players are about to be closed on
// purpose.
func (t *Tracker) MarkExpected(playerIDs ...int32) {
	for _, id := range playerIDs {
		t.expected.Store(id, struct{}{})
	}
}

// IsExpected reports whether playerID was marked by MarkExpected.
func (t *Tracker) IsExpected(playerID int32) bool {
	_, ok := t.expected.Load(playerID)
	return ok
}

// RecordPong stamps playerID with the current time.
func (t *Tracker) RecordPong(playerID int32) {
	t.lastPong.Store(playerID, t.now())
}

// SinceLastPong returns how long ago playerID last answered. A player with no
// recorded pong is stamped now and reports zero.
func (t *Tracker) SinceLastPong(playerID int32) time.Duration {
	now := t.now()
	last, _ := t.lastPong.LoadOrStore(playerID, now)
	return now.Sub(last)
}

// Forget drops every entry for playerID.
func (t *Tracker) Forget(playerID int32) {
	t.expected.Delete(playerID)
	t.lastPong.Delete(playerID)
}
