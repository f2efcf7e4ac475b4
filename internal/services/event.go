package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/eventmgr/apiserver/internal/storage"
	"github.com/eventmgr/apiserver/types"
)

// EventRepository defines persistence operations for events.
type EventRepository interface {
	List(ctx context.Context) ([]types.Event, error)
	Get(ctx context.Context, id int) (types.Event, error)
	Categories(ctx context.Context) ([]string, error)
	Create(ctx context.Context, event types.Event) (types.Event, error)
	Update(ctx context.Context, event types.Event) (types.Event, error)
	Delete(ctx context.Context, id int) error
	SetPosterKey(ctx context.Context, id int, key string) error
}

// AttendeeRepository defines persistence for the attendance relation.
type AttendeeRepository interface {
	ListByEvent(ctx context.Context, eventID int) ([]types.Attendee, error)
	EventIDsByUser(ctx context.Context, userID int) ([]int, error)
	Add(ctx context.Context, eventID, userID int) error
	Remove(ctx context.Context, eventID, userID int) error
}

// EventService encapsulates event and attendance use-cases.
type EventService struct {
	repo      EventRepository
	attendees AttendeeRepository
	posters   *storage.Storage
	log       *slog.Logger
}

// NewEventService constructs an EventService. posters may be nil when no
// object-storage backend is configured; poster operations then fail.
func NewEventService(repo EventRepository, attendees AttendeeRepository, posters *storage.Storage, log *slog.Logger) *EventService {
	return &EventService{
		repo:      repo,
		attendees: attendees,
		posters:   posters,
		log:       log,
	}
}

func (s *EventService) List(ctx context.Context) ([]types.Event, error) {
	return s.repo.List(ctx)
}

func (s *EventService) Get(ctx context.Context, id int) (types.Event, error) {
	return s.repo.Get(ctx, id)
}

func (s *EventService) Categories(ctx context.Context) ([]string, error) {
	return s.repo.Categories(ctx)
}

func (s *EventService) Create(ctx context.Context, event types.Event) (types.Event, error) {
	return s.repo.Create(ctx, event)
}

func (s *EventService) Update(ctx context.Context, event types.Event) (types.Event, error) {
	return s.repo.Update(ctx, event)
}

// Delete removes the event and its attendance rows, then cleans up the
// poster object. The row delete is authoritative; a failed object delete
// is logged, not surfaced.
func (s *EventService) Delete(ctx context.Context, id int) error {
	event, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	if event.PosterKey != "" && s.posters != nil {
		if err := s.posters.Delete(ctx, event.PosterKey); err != nil {
			s.log.Error("delete poster failed", "event_id", id, "key", event.PosterKey, "error", err)
		}
	}
	return nil
}

func (s *EventService) Attendees(ctx context.Context, eventID int) ([]types.Attendee, error) {
	return s.attendees.ListByEvent(ctx, eventID)
}

func (s *EventService) AttendingEventIDs(ctx context.Context, userID int) ([]int, error) {
	return s.attendees.EventIDsByUser(ctx, userID)
}

// Attend registers a user for an event. A duplicate registration
// surfaces as store.ErrConflict.
func (s *EventService) Attend(ctx context.Context, eventID, userID int) error {
	if _, err := s.repo.Get(ctx, eventID); err != nil {
		return err
	}
	return s.attendees.Add(ctx, eventID, userID)
}

// Unattend removes a user's registration.
func (s *EventService) Unattend(ctx context.Context, eventID, userID int) error {
	return s.attendees.Remove(ctx, eventID, userID)
}

// ErrNoPosterStorage indicates no object-storage backend is configured.
var ErrNoPosterStorage = errors.New("poster storage not configured")

// ErrNoPoster indicates the event exists but has no poster uploaded.
var ErrNoPoster = errors.New("no poster")

func posterKey(eventID int) string {
	return fmt.Sprintf("events/%d/poster", eventID)
}

// SetPoster uploads the poster image to object storage and records its
// key on the event.
func (s *EventService) SetPoster(ctx context.Context, eventID int, r io.Reader, size int64, contentType string) error {
	if s.posters == nil {
		return ErrNoPosterStorage
	}
	if _, err := s.repo.Get(ctx, eventID); err != nil {
		return err
	}

	key := posterKey(eventID)
	if err := s.posters.Put(ctx, key, r, size, contentType); err != nil {
		return fmt.Errorf("store poster: %w", err)
	}
	return s.repo.SetPosterKey(ctx, eventID, key)
}

// GetPoster opens the event's poster for streaming.
func (s *EventService) GetPoster(ctx context.Context, eventID int) (io.ReadCloser, error) {
	if s.posters == nil {
		return nil, ErrNoPosterStorage
	}
	event, err := s.repo.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.PosterKey == "" {
		return nil, ErrNoPoster
	}
	return s.posters.Get(ctx, event.PosterKey)
}
