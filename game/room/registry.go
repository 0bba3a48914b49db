package room

import (
	"errors"
	"sort"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/wricardo/minigame/game/broadcast"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomExists   = errors.New("room already exists")
	ErrRoomGone     = errors.New("room is gone")
)

// DefaultChannelCapacity is the number of events a room channel retains for
// slow receivers before they start lagging.
const DefaultChannelCapacity = 100

// entry couples a room with its broadcast channel. Both are created and
// removed together.
type entry struct {
	mu      sync.Mutex
	room    Room
	ch      *broadcast.Channel[Event]
	removed bool
}

// Registry holds every live room keyed by room id. Rooms are independent:
// operations on one room never wait on another.
type Registry struct {
	rooms    *xsync.MapOf[int32, *entry]
	capacity int
}

// NewRegistry creates a registry whose room channels retain capacity events.
func NewRegistry(capacity int) *Registry {
	if capacity < 1 {
		capacity = DefaultChannelCapacity
	}
	return &Registry{
		rooms:    xsync.NewMapOf[int32, *entry](),
		capacity: capacity,
	}
}

// Create registers an empty room and its channel as one unit.
func (r *Registry) Create(roomID, weatherID, backgroundID int32) (Room, error) {
	e := &entry{
		room: Room{
			RoomID:       roomID,
			Players:      []Player{},
			Cars:         []Car{},
			WeatherID:    weatherID,
			BackgroundID: backgroundID,
		},
		ch: broadcast.New[Event](r.capacity),
	}

	if _, loaded := r.rooms.LoadOrStore(roomID, e); loaded {
		return Room{}, ErrRoomExists
	}
	return e.room.Clone(), nil
}

// Get returns a snapshot of the room.
func (r *Registry) Get(roomID int32) (Room, error) {
	e, ok := r.rooms.Load(roomID)
	if !ok {
		return Room{}, ErrRoomNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return Room{}, ErrRoomNotFound
	}
	return e.room.Clone(), nil
}

// Exists reports whether a room is registered.
func (r *Registry) Exists(roomID int32) bool {
	_, ok := r.rooms.Load(roomID)
	return ok
}

// List returns snapshots of every room ordered by room id.
func (r *Registry) List() []Room {
	rooms := make([]Room, 0, r.rooms.Size())
	r.rooms.Range(func(_ int32, e *entry) bool {
		e.mu.Lock()
		if !e.removed {
			rooms = append(rooms, e.room.Clone())
		}
		e.mu.Unlock()
		return true
	})

	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].RoomID < rooms[j].RoomID
	})
	return rooms
}

// Join appends player and car to the room, publishes a Sync event and returns
// the resulting snapshot together with a receiver positioned after that Sync.
// Duplicate player ids are not rejected.
func (r *Registry) Join(roomID int32, player Player, car Car) (Room, *broadcast.Receiver[Event], error) {
	e, ok := r.rooms.Load(roomID)
	if !ok {
		return Room{}, nil, ErrRoomNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return Room{}, nil, ErrRoomGone
	}

	next := e.room.Clone()
	if car.PlayerIDs == nil {
		car.PlayerIDs = []int32{player.PlayerID}
	}
	next.Players = append(next.Players, player)
	next.Cars = append(next.Cars, car)

	if err := e.commit(next); err != nil {
		return Room{}, nil, err
	}
	return next.Clone(), e.ch.Subscribe(), nil
}

// Leave removes every player entry with playerID, strips the id from every
// car, and drops the departing player's own car when it is left empty. It
// publishes a Sync event only when something was removed.
func (r *Registry) Leave(roomID, playerID int32) (Room, bool, error) {
	e, ok := r.rooms.Load(roomID)
	if !ok {
		return Room{}, false, ErrRoomNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return Room{}, false, ErrRoomGone
	}

	next := e.room.Clone()
	joinCar, listed := int32(0), false
	players := next.Players[:0]
	for _, p := range next.Players {
		if p.PlayerID == playerID {
			if !listed {
				joinCar, listed = p.CarID, true
			}
			continue
		}
		players = append(players, p)
	}
	next.Players = players

	seated := false
	for i := range next.Cars {
		if removeID(&next.Cars[i].PlayerIDs, playerID) {
			seated = true
		}
	}

	if listed {
		for i, c := range next.Cars {
			if c.CarID == joinCar {
				if len(c.PlayerIDs) == 0 {
					next.Cars = append(next.Cars[:i], next.Cars[i+1:]...)
				}
				break
			}
		}
	}

	if !listed && !seated {
		return e.room.Clone(), false, nil
	}
	if err := e.commit(next); err != nil {
		return Room{}, false, err
	}
	return next.Clone(), true, nil
}

// ChangeCar moves playerID out of every car and into the first car with
// carID. When no car matches the player ends up in no car.
func (r *Registry) ChangeCar(roomID, playerID, carID int32) (Room, error) {
	return r.mutate(roomID, func(next *Room) {
		placed := false
		for i := range next.Cars {
			removeID(&next.Cars[i].PlayerIDs, playerID)
			if !placed && next.Cars[i].CarID == carID {
				next.Cars[i].PlayerIDs = append(next.Cars[i].PlayerIDs, playerID)
				placed = true
			}
		}
	})
}

// ChangeCarSkin sets the skin of the first car with carID. A missing car is
// not an error.
func (r *Registry) ChangeCarSkin(roomID, carID, skinID int32) (Room, error) {
	return r.mutate(roomID, func(next *Room) {
		for i := range next.Cars {
			if next.Cars[i].CarID == carID {
				next.Cars[i].SkinID = skinID
				return
			}
		}
	})
}

// Publish sends ev on the room channel.
func (r *Registry) Publish(roomID int32, ev Event) error {
	e, ok := r.rooms.Load(roomID)
	if !ok {
		return ErrRoomNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return ErrRoomGone
	}
	if err := e.ch.Send(ev); err != nil {
		return ErrRoomGone
	}
	return nil
}

// Subscribe returns a receiver for the room channel.
func (r *Registry) Subscribe(roomID int32) (*broadcast.Receiver[Event], error) {
	e, ok := r.rooms.Load(roomID)
	if !ok {
		return nil, ErrRoomNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return nil, ErrRoomGone
	}
	return e.ch.Subscribe(), nil
}

// Remove deletes the room and closes its channel, returning the last state.
// Every receiver of the room observes broadcast.ErrClosed once it has read the
// events published before the removal.
func (r *Registry) Remove(roomID int32) (Room, error) {
	return r.RemoveFunc(roomID, nil)
}

// RemoveFunc is Remove with a hook. fn sees the last state while the room is
// still locked, so no concurrent Join or Leave falls between fn and the
// removal.
func (r *Registry) RemoveFunc(roomID int32, fn func(last Room)) (Room, error) {
	e, ok := r.rooms.LoadAndDelete(roomID)
	if !ok {
		return Room{}, ErrRoomNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.removed = true
	last := e.room.Clone()
	if fn != nil {
		fn(last)
	}
	e.ch.Close()
	return last, nil
}

// mutate applies fn to a copy of the room and commits it together with a
// Sync publish.
func (r *Registry) mutate(roomID int32, fn func(next *Room)) (Room, error) {
	e, ok := r.rooms.Load(roomID)
	if !ok {
		return Room{}, ErrRoomNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return Room{}, ErrRoomGone
	}

	next := e.room.Clone()
	fn(&next)
	if err := e.commit(next); err != nil {
		return Room{}, err
	}
	return next.Clone(), nil
}

// commit publishes a Sync for next and stores it. Nothing is stored when the
// publish fails. Callers hold e.mu.
func (e *entry) commit(next Room) error {
	if err := e.ch.Send(SyncEvent(next.Clone())); err != nil {
		return ErrRoomGone
	}
	e.room = next
	return nil
}

func removeID(ids *[]int32, id int32) bool {
	kept := (*ids)[:0]
	removed := false
	for _, v := range *ids {
		if v == id {
			removed = true
			continue
		}
		kept = append(kept, v)
	}
	*ids = kept
	return removed
}
