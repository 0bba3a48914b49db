package websocket

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/wricardo/minigame/game/service"
)

// parseJoinParams reads the connection parameters from the upgrade request.
// Every parameter is required; the first missing or malformed one is reported
// as a *service.ParamError naming it.
func parseJoinParams(q url.Values) (service.JoinRequest, error) {
	var req service.JoinRequest

	ints := []struct {
		field string
		dst   *int32
		id    bool
	}{
		{"player_id", &req.PlayerID, true},
		{"room_id", &req.RoomID, true},
		{"car_id", &req.CarID, false},
		{"weather_id", &req.WeatherID, false},
		{"background_id", &req.BackgroundID, false},
		{"skin_id", &req.SkinID, false},
	}

	for _, p := range ints {
		v, err := parseInt32(q, p.field)
		if err != nil {
			return service.JoinRequest{}, err
		}
		if p.id && v == 0 {
			return service.JoinRequest{}, &service.ParamError{Field: p.field, Reason: service.ReasonReservedID}
		}
		*p.dst = v
	}

	name := strings.TrimSpace(q.Get("player_name"))
	if name == "" {
		return service.JoinRequest{}, &service.ParamError{Field: "player_name", Reason: "missing"}
	}
	req.PlayerName = name

	return req, nil
}

func parseInt32(q url.Values, field string) (int32, error) {
	raw := q.Get(field)
	if raw == "" {
		return 0, &service.ParamError{Field: field, Reason: "missing"}
	}
	v, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return 0, &service.ParamError{Field: field, Reason: "not a 32-bit integer"}
	}
	return int32(v), nil
}
