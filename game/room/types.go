package room

// Room is the shared state of one multiplayer room. RoomID equals the
// player id of the host that created it.
type Room struct {
	RoomID       int32    `json:"room_id"`
	Players      []Player `json:"players"`
	Cars         []Car    `json:"cars"`
	WeatherID    int32    `json:"weather_id"`
	BackgroundID int32    `json:"background_id"`
}

// Player is one occupant of a room together with the selections it joined with.
type Player struct {
	PlayerID     int32  `json:"player_id"`
	PlayerName   string `json:"player_name"`
	CarID        int32  `json:"car_id"`
	WeatherID    int32  `json:"weather_id"`
	BackgroundID int32  `json:"background_id"`
}

// Car is a vehicle in a room. A player id appears in at most one car's
// PlayerIDs at any time.
type Car struct {
	CarID     int32   `json:"car_id"`
	SkinID    int32   `json:"skin_id"`
	PlayerIDs []int32 `json:"player_ids"`
}

// IsHost reports whether playerID hosts the room.
func (r Room) IsHost(playerID int32) bool {
	return r.RoomID == playerID
}

// HasPlayer reports whether playerID is listed in the room.
func (r Room) HasPlayer(playerID int32) bool {
	for _, p := range r.Players {
		if p.PlayerID == playerID {
			return true
		}
	}
	return false
}

// PlayerIDs returns the ids of every listed player in join order.
func (r Room) PlayerIDs() []int32 {
	ids := make([]int32, 0, len(r.Players))
	for _, p := range r.Players {
		ids = append(ids, p.PlayerID)
	}
	return ids
}

// FindCar returns the first car with the given id.
func (r Room) FindCar(carID int32) (Car, bool) {
	for _, c := range r.Cars {
		if c.CarID == carID {
			return c, true
		}
	}
	return Car{}, false
}

// CarOf returns the car currently occupied by playerID.
func (r Room) CarOf(playerID int32) (Car, bool) {
	for _, c := range r.Cars {
		for _, id := range c.PlayerIDs {
			if id == playerID {
				return c, true
			}
		}
	}
	return Car{}, false
}

// Clone returns a deep copy that shares no slices with r.
func (r Room) Clone() Room {
	out := r
	out.Players = make([]Player, len(r.Players))
	copy(out.Players, r.Players)
	out.Cars = make([]Car, len(r.Cars))
	for i, c := range r.Cars {
		ids := make([]int32, len(c.PlayerIDs))
		copy(ids, c.PlayerIDs)
		c.PlayerIDs = ids
		out.Cars[i] = c
	}
	return out
}

// EventKind tags an Event.
type EventKind int

const (
	EventText EventKind = iota
	EventEmoji
	EventSync
	EventQuit
)

func (k EventKind) String() string {
	switch k {
	case EventText:
		return "text"
	case EventEmoji:
		return "emoji"
	case EventSync:
		return "sync"
	case EventQuit:
		return "quit"
	default:
		return "unknown"
	}
}

// Event is a value published on a room's broadcast channel.
//
//	EventText, EventEmoji: PlayerID, Content
//	EventSync:             Room
//	EventQuit:             PlayerID, RoomID
type Event struct {
	Kind     EventKind
	PlayerID int32
	Content  string
	Room     Room
	RoomID   int32
}

// TextEvent builds a chat event.
func TextEvent(playerID int32, content string) Event {
	return Event{Kind: EventText, PlayerID: playerID, Content: content}
}

// EmojiEvent builds an emoji event.
func EmojiEvent(playerID int32, content string) Event {
	return Event{Kind: EventEmoji, PlayerID: playerID, Content: content}
}

// SyncEvent builds a full state event from a snapshot.
func SyncEvent(snapshot Room) Event {
	return Event{Kind: EventSync, Room: snapshot, RoomID: snapshot.RoomID}
}

// QuitEvent builds a departure event.
func QuitEvent(playerID, roomID int32) Event {
	return Event{Kind: EventQuit, PlayerID: playerID, RoomID: roomID}
}
