package types

import "time"

// User represents an account in the system.
// It contains identity, role, and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"user_id" db:"user_id"`

	// Name is the user's display or full name.
	Name string `json:"name" db:"name"`

	// Email is the user's email address. Unique across all users.
	Email string `json:"email" db:"email"`

	// Username is the unique login name chosen by the user.
	Username string `json:"username" db:"username"`

	// IsManager indicates whether the user holds the manager role.
	IsManager bool `json:"is_manager" db:"is_manager"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// ResetToken is the live password-reset grant, if any. At most one
	// grant exists per user; it is overwritten on each forgot-password
	// request and cleared when consumed.
	ResetToken *string `json:"-" db:"password_reset_token"`

	// ResetTokenExpiresAt is the expiry of the live reset grant.
	ResetTokenExpiresAt *time.Time `json:"-" db:"password_reset_expires"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// PublicUser is the subset of User exposed in listings, e.g. the
// manager's attendee picker.
type PublicUser struct {
	ID        int    `json:"user_id" db:"user_id"`
	Name      string `json:"name" db:"name"`
	IsManager bool   `json:"is_manager" db:"is_manager"`
}
