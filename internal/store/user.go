package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/eventmgr/apiserver/types"
)

// UserRepository handles persistence for users and their reset grants.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `user_id, name, email, username, is_manager, password_hash,
		password_reset_token, password_reset_expires, created_at, updated_at`

func scanUser(row *sql.Row) (types.User, error) {
	var user types.User
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.Username,
		&user.IsManager,
		&user.PasswordHash,
		&user.ResetToken,
		&user.ResetTokenExpiresAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int) (types.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE user_id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (types.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, username))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, email))
}

// UsernameOrEmailTaken reports whether either unique field is already in use.
// The unique constraints remain authoritative; a concurrent insert still
// surfaces as ErrConflict from Create.
func (r *UserRepository) UsernameOrEmailTaken(ctx context.Context, username, email string) (bool, error) {
	const query = `SELECT user_id FROM users WHERE username = $1 OR email = $2`
	var id int
	err := r.db.QueryRowContext(ctx, query, username, email).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Create inserts the user row and, for managers, the auxiliary managers
// row in a single transaction. If either insert fails nothing persists.
func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.User{}, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const insertUser = `
		INSERT INTO users (name, email, username, is_manager, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING user_id`
	if err := tx.QueryRowContext(
		ctx,
		insertUser,
		user.Name,
		user.Email,
		user.Username,
		user.IsManager,
		user.PasswordHash,
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID); err != nil {
		return types.User{}, mapConflict(err)
	}

	if user.IsManager {
		const insertManager = `INSERT INTO managers (user_id) VALUES ($1)`
		if _, err := tx.ExecContext(ctx, insertManager, user.ID); err != nil {
			return types.User{}, mapConflict(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return types.User{}, err
	}
	return user, nil
}

// SetResetGrant writes a fresh reset token and expiry, replacing any
// previous grant for the user.
func (r *UserRepository) SetResetGrant(ctx context.Context, userID int, token string, expiresAt time.Time) error {
	const query = `
		UPDATE users
		SET password_reset_token = $1,
			password_reset_expires = $2,
			updated_at = $3
		WHERE user_id = $4`
	result, err := r.db.ExecContext(ctx, query, token, expiresAt, time.Now(), userID)
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

// GetByResetToken finds the user holding an unexpired grant with the
// given token value. Unknown and expired tokens are indistinguishable.
func (r *UserRepository) GetByResetToken(ctx context.Context, token string, now time.Time) (types.User, error) {
	const query = `SELECT ` + userColumns + `
		FROM users
		WHERE password_reset_token = $1 AND password_reset_expires > $2`
	return scanUser(r.db.QueryRowContext(ctx, query, token, now))
}

// ConsumeResetGrant stores the new password hash and clears the grant
// fields in a single statement, making the grant single-use.
func (r *UserRepository) ConsumeResetGrant(ctx context.Context, userID int, passwordHash string) error {
	const query = `
		UPDATE users
		SET password_hash = $1,
			password_reset_token = NULL,
			password_reset_expires = NULL,
			updated_at = $2
		WHERE user_id = $3`
	result, err := r.db.ExecContext(ctx, query, passwordHash, time.Now(), userID)
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

// ListPublic returns the public profile of every user, ordered by name.
func (r *UserRepository) ListPublic(ctx context.Context) ([]types.PublicUser, error) {
	const query = `SELECT user_id, name, is_manager FROM users ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []types.PublicUser{}
	for rows.Next() {
		var user types.PublicUser
		if err := rows.Scan(&user.ID, &user.Name, &user.IsManager); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}
