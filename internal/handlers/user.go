package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/eventmgr/apiserver/internal/services"
	"github.com/go-chi/chi/v5"
)

// UserHandler serves user listings for the attendee picker and the
// per-user attendance lookup.
type UserHandler struct {
	userService  *services.UserService
	eventService *services.EventService
	log          *slog.Logger
}

func NewUserHandler(userService *services.UserService, eventService *services.EventService, log *slog.Logger) *UserHandler {
	return &UserHandler{
		userService:  userService,
		eventService: eventService,
		log:          log,
	}
}

// List returns every user's public profile, ordered by name.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.ListPublic(r.Context())
	if err != nil {
		h.log.Error("list users failed", "error", err)
		writeMessage(w, http.StatusInternalServerError, "Error fetching users from database.")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// Attending returns the ids of every event the user is attending.
func (h *UserHandler) Attending(w http.ResponseWriter, r *http.Request) {
	userID, err := parseIDParam(r, "userID")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid user id.")
		return
	}

	ids, err := h.eventService.AttendingEventIDs(r.Context(), userID)
	if err != nil {
		h.log.Error("list attending failed", "user_id", userID, "error", err)
		writeMessage(w, http.StatusInternalServerError, "Error fetching user data.")
		return
	}
	writeJSON(w, http.StatusOK, ids)
}

func parseIDParam(r *http.Request, name string) (int, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}
