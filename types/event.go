package types

import "time"

// Event represents a scheduled event owned by a manager.
type Event struct {
	// ID is the unique identifier of the event.
	ID int `json:"event_id" db:"event_id"`

	// Title is the display name of the event.
	Title string `json:"title" db:"title"`

	// Date is when the event takes place.
	Date time.Time `json:"date" db:"date"`

	// Address is the free-form location of the event.
	Address string `json:"address" db:"address"`

	// Category groups events for filtering on the dashboard.
	Category string `json:"category" db:"category"`

	// ManagerID is the user id of the manager who created the event.
	ManagerID int `json:"event_manager_id" db:"event_manager_id"`

	// ManagerName is the display name of the owning manager.
	// Populated on reads only.
	ManagerName string `json:"manager_name,omitempty" db:"manager_name"`

	// AttendeeCount is the number of users attending. Populated on reads only.
	AttendeeCount int `json:"attendee_count" db:"attendee_count"`

	// PosterKey is the object-storage key of the event poster image,
	// empty when no poster has been uploaded.
	PosterKey string `json:"poster_key,omitempty" db:"poster_key"`

	// CreatedAt is the timestamp when the event was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the event.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Attendee is a user attending an event, as listed on the attendee
// management screen.
type Attendee struct {
	UserID    int    `json:"user_id" db:"user_id"`
	Name      string `json:"name" db:"name"`
	Email     string `json:"email" db:"email"`
	IsManager bool   `json:"is_manager" db:"is_manager"`
}
