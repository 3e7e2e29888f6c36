package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"quizroom-service/internal/app"
	"quizroom-service/internal/domain"
)

// RoomsHandler serves read-only room snapshots.
type RoomsHandler struct {
	coordinator *app.Coordinator
}

func NewRoomsHandler(coordinator *app.Coordinator) *RoomsHandler {
	return &RoomsHandler{coordinator: coordinator}
}

// GetRoom writes the snapshot of the room named by the {code} path segment.
func (h *RoomsHandler) GetRoom(w http.ResponseWriter, r *http.Request) {
	snap, err := h.coordinator.GetRoom(r.PathValue("code"))
	if errors.Is(err, domain.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, domain.ErrorPayload{Code: domain.ErrorCode(err), Message: err.Error()})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, domain.ErrorPayload{Code: domain.ErrorCode(err), Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// NewRouter mounts the websocket gateway, room snapshots and health check behind CORS.
func NewRouter(ws *WSHandler, rooms *RoomsHandler, allowOrigins []string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /ws", ws.ServeWS)
	mux.HandleFunc("GET /rooms/{code}", rooms.GetRoom)

	if len(allowOrigins) == 0 {
		allowOrigins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins: allowOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         300,
	}).Handler(mux)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Warn().Err(err).Msg("failed to write response")
	}
}
