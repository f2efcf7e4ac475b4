package store

import (
	"context"
	"database/sql"

	"github.com/eventmgr/apiserver/types"
)

// AttendeeRepository handles the event/user attendance relation.
type AttendeeRepository struct {
	db *sql.DB
}

func NewAttendeeRepository(db *sql.DB) *AttendeeRepository {
	return &AttendeeRepository{db: db}
}

// ListByEvent returns the users attending an event, ordered by name.
func (r *AttendeeRepository) ListByEvent(ctx context.Context, eventID int) ([]types.Attendee, error) {
	const query = `
		SELECT u.user_id, u.name, u.email, u.is_manager
		FROM event_attendees ea
		JOIN users u ON ea.user_id = u.user_id
		WHERE ea.event_id = $1
		ORDER BY u.name`
	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	attendees := []types.Attendee{}
	for rows.Next() {
		var attendee types.Attendee
		if err := rows.Scan(&attendee.UserID, &attendee.Name, &attendee.Email, &attendee.IsManager); err != nil {
			return nil, err
		}
		attendees = append(attendees, attendee)
	}
	return attendees, rows.Err()
}

// EventIDsByUser returns the ids of every event the user is attending.
func (r *AttendeeRepository) EventIDsByUser(ctx context.Context, userID int) ([]int, error) {
	const query = `SELECT event_id FROM event_attendees WHERE user_id = $1`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []int{}
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Add registers a user for an event. Duplicate registrations surface
// as ErrConflict via the primary key.
func (r *AttendeeRepository) Add(ctx context.Context, eventID, userID int) error {
	const query = `INSERT INTO event_attendees (event_id, user_id) VALUES ($1, $2)`
	if _, err := r.db.ExecContext(ctx, query, eventID, userID); err != nil {
		return mapConflict(err)
	}
	return nil
}

// Remove deletes a user's registration. Removing a non-attendee is not
// an error, matching the idempotent delete semantics of the API.
func (r *AttendeeRepository) Remove(ctx context.Context, eventID, userID int) error {
	const query = `DELETE FROM event_attendees WHERE event_id = $1 AND user_id = $2`
	_, err := r.db.ExecContext(ctx, query, eventID, userID)
	return err
}
