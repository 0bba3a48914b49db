package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/wricardo/minigame/game/room"
	"github.com/wricardo/minigame/game/service"
	"github.com/wricardo/minigame/game/store"
	"github.com/wricardo/minigame/ratelimit"
	"github.com/wricardo/minigame/transport/websocket"
)

// Server represents the HTTP API server
type Server struct {
	service service.RoomService
	hub     *websocket.Hub
	limiter *ratelimit.Limiter
	router  *mux.Router
	logger  *slog.Logger
}

// NewServer creates a new API server. hub and limiter may be nil.
func NewServer(roomService service.RoomService, hub *websocket.Hub, limiter *ratelimit.Limiter, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		service: roomService,
		hub:     hub,
		limiter: limiter,
		router:  mux.NewRouter(),
		logger:  logger,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.Use(corsMiddleware)

	limited := s.limiter.Middleware

	// Rooms
	s.router.Handle("/createroom", limited("createroom")(http.HandlerFunc(s.handleCreateRoom))).Methods("POST")
	s.router.HandleFunc("/quitroom", s.handleQuitRoom).Methods("POST")

	// Cars
	s.router.HandleFunc("/changecar", s.handleChangeCar).Methods("POST")
	s.router.HandleFunc("/changecarskin", s.handleChangeCarSkin).Methods("POST")

	// Players and friends
	s.router.HandleFunc("/addplayer", s.handleAddPlayer).Methods("POST")
	s.router.HandleFunc("/addfriend", s.handleAddFriend).Methods("POST")
	s.router.HandleFunc("/removefriend", s.handleRemoveFriend).Methods("POST")
	s.router.HandleFunc("/getfriends", s.handleGetFriends).Methods("POST")

	// Inspection
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/rooms", s.handleListRooms).Methods("GET")
	api.HandleFunc("/rooms/{id}", s.handleGetRoom).Methods("GET")

	// WebSocket
	s.router.Handle("/ws", limited("ws")(http.HandlerFunc(s.handleWebSocket))).Methods("GET")

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	s.router.PathPrefix("/").Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		next.ServeHTTP(w, r)
	})
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrBadParameter), errors.Is(err, store.ErrSelfFriend):
		return http.StatusBadRequest
	case errors.Is(err, room.ErrRoomNotFound), errors.Is(err, service.ErrPlayerNotInRoom), errors.Is(err, store.ErrFriendNotFound):
		return http.StatusNotFound
	case errors.Is(err, room.ErrRoomExists), errors.Is(err, store.ErrPlayerExists), errors.Is(err, store.ErrFriendExists):
		return http.StatusConflict
	case errors.Is(err, room.ErrRoomGone):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	}
	respondError(w, status, err.Error())
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if r.Body == nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// Room Handlers

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req service.CreateRoomRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := s.service.CreateRoom(r.Context(), req)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, result)
}

func (s *Server) handleQuitRoom(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RoomID   int32 `json:"room_id"`
		PlayerID int32 `json:"player_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	if err := s.service.RequestQuit(r.Context(), req.RoomID, req.PlayerID); err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Player %d is leaving room %d", req.PlayerID, req.RoomID),
	})
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.service.ListRooms(r.Context())
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(rooms),
		"rooms": rooms,
	})
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := strconv.ParseInt(vars["id"], 10, 32)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid room id")
		return
	}

	snapshot, err := s.service.GetRoom(r.Context(), int32(id))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, snapshot)
}

// Car Handlers

func (s *Server) handleChangeCar(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RoomID   int32 `json:"room_id"`
		PlayerID int32 `json:"player_id"`
		CarID    int32 `json:"car_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	snapshot, err := s.service.ChangeCar(r.Context(), req.RoomID, req.PlayerID, req.CarID)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleChangeCarSkin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RoomID int32 `json:"room_id"`
		CarID  int32 `json:"car_id"`
		SkinID int32 `json:"skin_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	snapshot, err := s.service.ChangeCarSkin(r.Context(), req.RoomID, req.CarID, req.SkinID)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, snapshot)
}

// Player and Friend Handlers

func (s *Server) handleAddPlayer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlayerID   int32  `json:"player_id"`
		PlayerName string `json:"player_name"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	if err := s.service.AddPlayer(r.Context(), req.PlayerID, req.PlayerName); err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"player_id":   req.PlayerID,
		"player_name": req.PlayerName,
	})
}

type friendRequest struct {
	MasterID int32 `json:"master_id"`
	FriendID int32 `json:"friend_id"`
}

func (s *Server) handleAddFriend(w http.ResponseWriter, r *http.Request) {
	var req friendRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := s.service.AddFriend(r.Context(), req.MasterID, req.FriendID); err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Player %d added to friends of %d", req.FriendID, req.MasterID),
	})
}

func (s *Server) handleRemoveFriend(w http.ResponseWriter, r *http.Request) {
	var req friendRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := s.service.RemoveFriend(r.Context(), req.MasterID, req.FriendID); err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Player %d removed from friends of %d", req.FriendID, req.MasterID),
	})
}

func (s *Server) handleGetFriends(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MasterID int32 `json:"master_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	list, err := s.service.ListFriends(r.Context(), req.MasterID)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, list)
}

// WebSocket Handler

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		respondError(w, http.StatusServiceUnavailable, "WebSocket transport not configured")
		return
	}
	s.hub.ServeWS(w, r)
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	active := 0
	if s.hub != nil {
		active = s.hub.Active()
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"connections": active,
	})
}
