package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/eventmgr/apiserver/internal/services"
	"github.com/eventmgr/apiserver/internal/store"
	"github.com/eventmgr/apiserver/types"
	"github.com/go-chi/chi/v5"
)

const (
	maxMultipartMemory = 8 << 20
	maxPosterBytes     = 8 << 20
	formFieldPoster    = "poster"
)

// EventHandler provides HTTP handlers for events, attendance, and
// poster images.
type EventHandler struct {
	eventService *services.EventService
	log          *slog.Logger
}

func NewEventHandler(eventService *services.EventService, log *slog.Logger) *EventHandler {
	return &EventHandler{
		eventService: eventService,
		log:          log,
	}
}

// EventRouter registers event routes on the given router. requireAuth
// gates any-identity routes; requireManager composes on top of it for
// manager-only routes.
func EventRouter(
	r chi.Router,
	eventService *services.EventService,
	log *slog.Logger,
	requireAuth func(http.Handler) http.Handler,
) {
	handler := NewEventHandler(eventService, log)

	r.Get("/", handler.List)
	r.Get("/categories", handler.Categories)
	r.With(requireAuth, RequireManager).Post("/", handler.Create)

	r.Route("/{eventID}", func(r chi.Router) {
		r.With(requireAuth, RequireManager).Put("/", handler.Update)
		r.With(requireAuth, RequireManager).Delete("/", handler.Delete)

		r.Get("/attendees", handler.Attendees)
		r.With(requireAuth, RequireManager).Post("/attendees", handler.AddAttendee)
		r.With(requireAuth, RequireManager).Delete("/attendees/{userID}", handler.RemoveAttendee)

		r.With(requireAuth).Post("/attend", handler.Attend)
		r.With(requireAuth).Delete("/unattend", handler.Unattend)

		r.Get("/poster", handler.GetPoster)
		r.With(requireAuth, RequireManager).Put("/poster", handler.UploadPoster)
	})
}

type EventUpsertRequest struct {
	Title    string    `json:"title"`
	Date     time.Time `json:"date"`
	Address  string    `json:"address"`
	Category string    `json:"category"`
}

type AddAttendeeRequest struct {
	UserID int `json:"userId"`
}

func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	events, err := h.eventService.List(r.Context())
	if err != nil {
		h.log.Error("list events failed", "error", err)
		writeMessage(w, http.StatusInternalServerError, "Error fetching events.")
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *EventHandler) Categories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.eventService.Categories(r.Context())
	if err != nil {
		h.log.Error("list categories failed", "error", err)
		writeMessage(w, http.StatusInternalServerError, "Error fetching event categories.")
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

// Create inserts an event owned by the requesting manager. The manager
// id comes from the verified claims, never the request body.
func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, err := claimsFromContext(r.Context())
	if err != nil {
		writeMessage(w, http.StatusUnauthorized, "Authorization header missing.")
		return
	}

	req, err := parseEventBody(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	_, err = h.eventService.Create(r.Context(), types.Event{
		Title:     req.Title,
		Date:      req.Date,
		Address:   req.Address,
		Category:  req.Category,
		ManagerID: claims.UserID,
	})
	if err != nil {
		h.log.Error("create event failed", "error", err)
		writeMessage(w, http.StatusInternalServerError, "Error creating event.")
		return
	}

	writeMessage(w, http.StatusCreated, "Event created successfully.")
}

func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "eventID")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid event id.")
		return
	}

	req, err := parseEventBody(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	_, err = h.eventService.Update(r.Context(), types.Event{
		ID:       id,
		Title:    req.Title,
		Date:     req.Date,
		Address:  req.Address,
		Category: req.Category,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeMessage(w, http.StatusNotFound, "Event not found.")
			return
		}
		h.log.Error("update event failed", "event_id", id, "error", err)
		writeMessage(w, http.StatusInternalServerError, "Error updating event.")
		return
	}

	writeMessage(w, http.StatusOK, "Event updated successfully.")
}

func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "eventID")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid event id.")
		return
	}

	if err := h.eventService.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeMessage(w, http.StatusNotFound, "Event not found.")
			return
		}
		h.log.Error("delete event failed", "event_id", id, "error", err)
		writeMessage(w, http.StatusInternalServerError, "Error deleting event.")
		return
	}

	writeMessage(w, http.StatusOK, "Event deleted successfully.")
}

func (h *EventHandler) Attendees(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "eventID")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid event id.")
		return
	}

	attendees, err := h.eventService.Attendees(r.Context(), id)
	if err != nil {
		h.log.Error("list attendees failed", "event_id", id, "error", err)
		writeMessage(w, http.StatusInternalServerError, "Error fetching event attendees.")
		return
	}
	writeJSON(w, http.StatusOK, attendees)
}

// AddAttendee lets a manager register any user for an event.
func (h *EventHandler) AddAttendee(w http.ResponseWriter, r *http.Request) {
	eventID, err := parseIDParam(r, "eventID")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid event id.")
		return
	}

	var req AddAttendeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID < 1 {
		writeMessage(w, http.StatusBadRequest, "User ID is required.")
		return
	}

	if err := h.eventService.Attend(r.Context(), eventID, req.UserID); err != nil {
		h.writeAttendError(w, err, eventID, "User is already attending this event.", "Error adding user to event.")
		return
	}
	writeMessage(w, http.StatusCreated, "User successfully added to the event.")
}

func (h *EventHandler) RemoveAttendee(w http.ResponseWriter, r *http.Request) {
	eventID, err := parseIDParam(r, "eventID")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid event id.")
		return
	}
	userID, err := parseIDParam(r, "userID")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid user id.")
		return
	}

	if err := h.eventService.Unattend(r.Context(), eventID, userID); err != nil {
		h.log.Error("remove attendee failed", "event_id", eventID, "user_id", userID, "error", err)
		writeMessage(w, http.StatusInternalServerError, "Error removing user from event.")
		return
	}
	writeMessage(w, http.StatusOK, "User has been removed from the event.")
}

// Attend registers the requesting user; the identity comes from the
// verified claims.
func (h *EventHandler) Attend(w http.ResponseWriter, r *http.Request) {
	eventID, err := parseIDParam(r, "eventID")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid event id.")
		return
	}
	claims, err := claimsFromContext(r.Context())
	if err != nil {
		writeMessage(w, http.StatusUnauthorized, "Authorization header missing.")
		return
	}

	if err := h.eventService.Attend(r.Context(), eventID, claims.UserID); err != nil {
		h.writeAttendError(w, err, eventID, "You are already attending this event.", "Error registering for event.")
		return
	}
	writeMessage(w, http.StatusCreated, "Successfully registered for the event.")
}

func (h *EventHandler) Unattend(w http.ResponseWriter, r *http.Request) {
	eventID, err := parseIDParam(r, "eventID")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid event id.")
		return
	}
	claims, err := claimsFromContext(r.Context())
	if err != nil {
		writeMessage(w, http.StatusUnauthorized, "Authorization header missing.")
		return
	}

	if err := h.eventService.Unattend(r.Context(), eventID, claims.UserID); err != nil {
		h.log.Error("unattend failed", "event_id", eventID, "error", err)
		writeMessage(w, http.StatusInternalServerError, "Error removing from event.")
		return
	}
	writeMessage(w, http.StatusOK, "You have been removed from the event.")
}

// UploadPoster stores a poster image for the event in object storage.
func (h *EventHandler) UploadPoster(w http.ResponseWriter, r *http.Request) {
	eventID, err := parseIDParam(r, "eventID")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid event id.")
		return
	}

	file, contentType, size, err := parsePosterFile(w, r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	defer file.Close()

	if err := h.eventService.SetPoster(r.Context(), eventID, file, size, contentType); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeMessage(w, http.StatusNotFound, "Event not found.")
			return
		}
		if errors.Is(err, services.ErrNoPosterStorage) {
			writeMessage(w, http.StatusServiceUnavailable, "Poster storage is not available.")
			return
		}
		h.log.Error("upload poster failed", "event_id", eventID, "error", err)
		writeMessage(w, http.StatusInternalServerError, "Error uploading poster.")
		return
	}

	writeMessage(w, http.StatusOK, "Poster uploaded successfully.")
}

// GetPoster streams the event's poster image.
func (h *EventHandler) GetPoster(w http.ResponseWriter, r *http.Request) {
	eventID, err := parseIDParam(r, "eventID")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid event id.")
		return
	}

	reader, err := h.eventService.GetPoster(r.Context(), eventID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, services.ErrNoPoster) {
			writeMessage(w, http.StatusNotFound, "Poster not found.")
			return
		}
		if errors.Is(err, services.ErrNoPosterStorage) {
			writeMessage(w, http.StatusServiceUnavailable, "Poster storage is not available.")
			return
		}
		h.log.Error("get poster failed", "event_id", eventID, "error", err)
		writeMessage(w, http.StatusInternalServerError, "Error fetching poster.")
		return
	}
	defer reader.Close()

	// Sniff the content type from the stream prefix before writing.
	prefix := make([]byte, 512)
	n, _ := io.ReadFull(reader, prefix)
	w.Header().Set("Content-Type", http.DetectContentType(prefix[:n]))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(prefix[:n])
	_, _ = io.Copy(w, reader)
}

func (h *EventHandler) writeAttendError(w http.ResponseWriter, err error, eventID int, conflictMsg, genericMsg string) {
	switch {
	case errors.Is(err, store.ErrConflict):
		writeMessage(w, http.StatusConflict, conflictMsg)
	case errors.Is(err, store.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "Event not found.")
	default:
		h.log.Error("attendance update failed", "event_id", eventID, "error", err)
		writeMessage(w, http.StatusInternalServerError, genericMsg)
	}
}

func parseEventBody(r *http.Request) (EventUpsertRequest, error) {
	var req EventUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return EventUpsertRequest{}, errors.New("Invalid request body.")
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return EventUpsertRequest{}, errors.New("Title is required.")
	}
	if req.Date.IsZero() {
		return EventUpsertRequest{}, errors.New("Date is required.")
	}
	return req, nil
}

func parsePosterFile(w http.ResponseWriter, r *http.Request) (multipart.File, string, int64, error) {
	// Cut oversized uploads off at the limit instead of spooling them;
	// the slack covers the multipart framing around the file part.
	r.Body = http.MaxBytesReader(w, r.Body, maxPosterBytes+4096)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, "", 0, errors.New("Poster file too large.")
		}
		return nil, "", 0, errors.New("Invalid multipart form.")
	}

	file, header, err := r.FormFile(formFieldPoster)
	if err != nil {
		return nil, "", 0, errors.New("Poster file is required.")
	}
	if header.Size > maxPosterBytes {
		_ = file.Close()
		return nil, "", 0, errors.New("Poster file too large.")
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return file, contentType, header.Size, nil
}
