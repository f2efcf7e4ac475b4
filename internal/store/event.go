package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/eventmgr/apiserver/types"
)

// EventRepository handles persistence for events.
type EventRepository struct {
	db *sql.DB
}

func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
}

// List returns all events ordered by date, each annotated with the
// owning manager's name and its attendee count.
func (r *EventRepository) List(ctx context.Context) ([]types.Event, error) {
	const query = `
		SELECT e.event_id, e.title, e.date, e.address, e.category,
			COALESCE(e.event_manager_id, 0), COALESCE(m.name, ''),
			(SELECT COUNT(*) FROM event_attendees WHERE event_id = e.event_id),
			e.poster_key, e.created_at, e.updated_at
		FROM events e
		LEFT JOIN users m ON e.event_manager_id = m.user_id
		ORDER BY e.date`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []types.Event{}
	for rows.Next() {
		var event types.Event
		if err := rows.Scan(
			&event.ID,
			&event.Title,
			&event.Date,
			&event.Address,
			&event.Category,
			&event.ManagerID,
			&event.ManagerName,
			&event.AttendeeCount,
			&event.PosterKey,
			&event.CreatedAt,
			&event.UpdatedAt,
		); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func (r *EventRepository) Get(ctx context.Context, id int) (types.Event, error) {
	const query = `
		SELECT e.event_id, e.title, e.date, e.address, e.category,
			COALESCE(e.event_manager_id, 0), COALESCE(m.name, ''),
			(SELECT COUNT(*) FROM event_attendees WHERE event_id = e.event_id),
			e.poster_key, e.created_at, e.updated_at
		FROM events e
		LEFT JOIN users m ON e.event_manager_id = m.user_id
		WHERE e.event_id = $1`
	var event types.Event
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&event.ID,
		&event.Title,
		&event.Date,
		&event.Address,
		&event.Category,
		&event.ManagerID,
		&event.ManagerName,
		&event.AttendeeCount,
		&event.PosterKey,
		&event.CreatedAt,
		&event.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Event{}, ErrNotFound
		}
		return types.Event{}, err
	}
	return event, nil
}

// Categories returns the distinct non-empty event categories.
func (r *EventRepository) Categories(ctx context.Context) ([]string, error) {
	const query = `
		SELECT DISTINCT category FROM events
		WHERE category IS NOT NULL AND category <> ''
		ORDER BY category ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := []string{}
	for rows.Next() {
		var category string
		if err := rows.Scan(&category); err != nil {
			return nil, err
		}
		categories = append(categories, category)
	}
	return categories, rows.Err()
}

func (r *EventRepository) Create(ctx context.Context, event types.Event) (types.Event, error) {
	now := time.Now()
	event.CreatedAt = now
	event.UpdatedAt = now

	const query = `
		INSERT INTO events (title, date, address, category, event_manager_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING event_id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		event.Title,
		event.Date,
		event.Address,
		event.Category,
		event.ManagerID,
		event.CreatedAt,
		event.UpdatedAt,
	).Scan(&event.ID); err != nil {
		return types.Event{}, err
	}
	return event, nil
}

func (r *EventRepository) Update(ctx context.Context, event types.Event) (types.Event, error) {
	event.UpdatedAt = time.Now()

	const query = `
		UPDATE events
		SET title = $1,
			date = $2,
			address = $3,
			category = $4,
			updated_at = $5
		WHERE event_id = $6`
	result, err := r.db.ExecContext(
		ctx,
		query,
		event.Title,
		event.Date,
		event.Address,
		event.Category,
		event.UpdatedAt,
		event.ID,
	)
	if err != nil {
		return types.Event{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Event{}, err
	}
	if affected == 0 {
		return types.Event{}, ErrNotFound
	}
	return event, nil
}

// Delete removes the event's attendee rows and the event itself in one
// transaction.
func (r *EventRepository) Delete(ctx context.Context, id int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM event_attendees WHERE event_id = $1`, id); err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM events WHERE event_id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}

	return tx.Commit()
}

// SetPosterKey records the object-storage key of the event's poster.
func (r *EventRepository) SetPosterKey(ctx context.Context, id int, key string) error {
	const query = `UPDATE events SET poster_key = $1, updated_at = $2 WHERE event_id = $3`
	result, err := r.db.ExecContext(ctx, query, key, time.Now(), id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
