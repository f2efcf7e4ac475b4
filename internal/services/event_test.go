package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/eventmgr/apiserver/internal/storage"
	"github.com/eventmgr/apiserver/internal/store"
	"github.com/eventmgr/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEventRepo struct {
	events  map[int]types.Event
	deleted []int
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{events: map[int]types.Event{}}
}

func (r *fakeEventRepo) List(_ context.Context) ([]types.Event, error) { return nil, nil }

func (r *fakeEventRepo) Get(_ context.Context, id int) (types.Event, error) {
	event, ok := r.events[id]
	if !ok {
		return types.Event{}, store.ErrNotFound
	}
	return event, nil
}

func (r *fakeEventRepo) Categories(_ context.Context) ([]string, error) { return nil, nil }

func (r *fakeEventRepo) Create(_ context.Context, event types.Event) (types.Event, error) {
	return event, nil
}

func (r *fakeEventRepo) Update(_ context.Context, event types.Event) (types.Event, error) {
	return event, nil
}

func (r *fakeEventRepo) Delete(_ context.Context, id int) error {
	if _, ok := r.events[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.events, id)
	r.deleted = append(r.deleted, id)
	return nil
}

func (r *fakeEventRepo) SetPosterKey(_ context.Context, id int, key string) error {
	event, ok := r.events[id]
	if !ok {
		return store.ErrNotFound
	}
	event.PosterKey = key
	r.events[id] = event
	return nil
}

type fakeAttendeeRepo struct{}

func (fakeAttendeeRepo) ListByEvent(_ context.Context, _ int) ([]types.Attendee, error) {
	return nil, nil
}
func (fakeAttendeeRepo) EventIDsByUser(_ context.Context, _ int) ([]int, error) { return nil, nil }
func (fakeAttendeeRepo) Add(_ context.Context, _, _ int) error                  { return nil }
func (fakeAttendeeRepo) Remove(_ context.Context, _, _ int) error               { return nil }

type fakeObjectStorage struct {
	objects   map[string][]byte
	deleted   []string
	deleteErr error
}

func newFakeObjectStorage() *fakeObjectStorage {
	return &fakeObjectStorage{objects: map[string][]byte{}}
}

func (s *fakeObjectStorage) EnsureBucket(_ context.Context) error { return nil }

func (s *fakeObjectStorage) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.objects[key] = data
	return nil
}

func (s *fakeObjectStorage) Get(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := s.objects[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *fakeObjectStorage) Delete(_ context.Context, key string) error {
	s.deleted = append(s.deleted, key)
	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.objects, key)
	return nil
}

func (s *fakeObjectStorage) Bucket() string { return "event-posters" }

func newTestEventService(repo *fakeEventRepo, objects *fakeObjectStorage) *EventService {
	var posters *storage.Storage
	if objects != nil {
		posters = storage.NewStorage(objects)
	}
	return NewEventService(repo, fakeAttendeeRepo{}, posters, slog.New(slog.DiscardHandler))
}

func TestEventService_DeleteRemovesPosterObject(t *testing.T) {
	repo := newFakeEventRepo()
	repo.events[5] = types.Event{ID: 5, Title: "Expo", PosterKey: "events/5/poster"}
	objects := newFakeObjectStorage()
	objects.objects["events/5/poster"] = []byte("png")
	svc := newTestEventService(repo, objects)

	require.NoError(t, svc.Delete(context.Background(), 5))

	assert.Equal(t, []int{5}, repo.deleted)
	assert.Equal(t, []string{"events/5/poster"}, objects.deleted)
	assert.Empty(t, objects.objects)
}

func TestEventService_DeleteWithoutPosterSkipsStorage(t *testing.T) {
	repo := newFakeEventRepo()
	repo.events[5] = types.Event{ID: 5, Title: "Expo"}
	objects := newFakeObjectStorage()
	svc := newTestEventService(repo, objects)

	require.NoError(t, svc.Delete(context.Background(), 5))
	assert.Empty(t, objects.deleted)
}

func TestEventService_DeleteSucceedsWhenPosterDeleteFails(t *testing.T) {
	repo := newFakeEventRepo()
	repo.events[5] = types.Event{ID: 5, Title: "Expo", PosterKey: "events/5/poster"}
	objects := newFakeObjectStorage()
	objects.deleteErr = errors.New("bucket unreachable")
	svc := newTestEventService(repo, objects)

	require.NoError(t, svc.Delete(context.Background(), 5))
	assert.Equal(t, []int{5}, repo.deleted)
}

func TestEventService_DeleteWithoutStorageConfigured(t *testing.T) {
	repo := newFakeEventRepo()
	repo.events[5] = types.Event{ID: 5, Title: "Expo", PosterKey: "events/5/poster"}
	svc := newTestEventService(repo, nil)

	require.NoError(t, svc.Delete(context.Background(), 5))
	assert.Equal(t, []int{5}, repo.deleted)
}

func TestEventService_DeleteUnknownEvent(t *testing.T) {
	svc := newTestEventService(newFakeEventRepo(), newFakeObjectStorage())

	err := svc.Delete(context.Background(), 99)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestEventService_SetPosterRecordsKey(t *testing.T) {
	repo := newFakeEventRepo()
	repo.events[5] = types.Event{ID: 5, Title: "Expo"}
	objects := newFakeObjectStorage()
	svc := newTestEventService(repo, objects)

	err := svc.SetPoster(context.Background(), 5, bytes.NewReader([]byte("png")), 3, "image/png")
	require.NoError(t, err)

	assert.Equal(t, "events/5/poster", repo.events[5].PosterKey)
	assert.Equal(t, []byte("png"), objects.objects["events/5/poster"])
}

func TestEventService_PosterOperationsWithoutStorage(t *testing.T) {
	repo := newFakeEventRepo()
	repo.events[5] = types.Event{ID: 5, Title: "Expo"}
	svc := newTestEventService(repo, nil)

	err := svc.SetPoster(context.Background(), 5, bytes.NewReader(nil), 0, "image/png")
	assert.ErrorIs(t, err, ErrNoPosterStorage)

	_, err = svc.GetPoster(context.Background(), 5)
	assert.ErrorIs(t, err, ErrNoPosterStorage)
}
