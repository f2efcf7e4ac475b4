package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/eventmgr/apiserver/config"
	"github.com/eventmgr/apiserver/internal/auth"
	"github.com/eventmgr/apiserver/internal/store"
	"github.com/eventmgr/apiserver/types"
)

// ErrInvalidCredentials is returned for both unknown usernames and wrong
// passwords so callers cannot tell which check failed.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrInvalidResetToken is returned for unknown, mismatched, and expired
// reset grants alike.
var ErrInvalidResetToken = errors.New("invalid or expired reset token")

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	UsernameOrEmailTaken(ctx context.Context, username, email string) (bool, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	SetResetGrant(ctx context.Context, userID int, token string, expiresAt time.Time) error
	GetByResetToken(ctx context.Context, token string, now time.Time) (types.User, error)
	ConsumeResetGrant(ctx context.Context, userID int, passwordHash string) error
	ListPublic(ctx context.Context) ([]types.PublicUser, error)
}

// ResetNotifier delivers password-reset notifications out of band.
type ResetNotifier interface {
	PasswordReset(ctx context.Context, email, token string, expiresAt time.Time) error
}

// RegisterParams is the input to Register. ManagerSecret is optional.
type RegisterParams struct {
	Name          string
	Email         string
	Username      string
	Password      string
	ManagerSecret string
}

// UserService encapsulates authentication and account use-cases.
type UserService struct {
	repo          UserRepository
	tokens        *auth.TokenManager
	managerSecret string
	resetTTL      time.Duration
	notifier      ResetNotifier
}

// NewUserService constructs a UserService. notifier may be nil, in which
// case reset grants are issued without an outbound notification.
func NewUserService(repo UserRepository, tokens *auth.TokenManager, cfg config.AuthConfig, notifier ResetNotifier) *UserService {
	return &UserService{
		repo:          repo,
		tokens:        tokens,
		managerSecret: cfg.ManagerSecret,
		resetTTL:      cfg.ResetTokenTTL,
		notifier:      notifier,
	}
}

// Login verifies the credential pair and issues a token. Unknown users
// and wrong passwords both return ErrInvalidCredentials.
func (s *UserService) Login(ctx context.Context, username, password string) (string, types.User, error) {
	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", types.User{}, ErrInvalidCredentials
		}
		return "", types.User{}, err
	}

	if !auth.VerifyPassword(user.PasswordHash, password) {
		return "", types.User{}, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return "", types.User{}, fmt.Errorf("issue token: %w", err)
	}
	return token, user, nil
}

// Register creates an account. The manager role is granted only when the
// supplied secret exactly matches the configured constant. Duplicate
// usernames or emails return store.ErrConflict with nothing persisted.
func (s *UserService) Register(ctx context.Context, params RegisterParams) (types.User, error) {
	taken, err := s.repo.UsernameOrEmailTaken(ctx, params.Username, params.Email)
	if err != nil {
		return types.User{}, err
	}
	if taken {
		return types.User{}, store.ErrConflict
	}

	isManager := s.managerSecret != "" &&
		subtle.ConstantTimeCompare([]byte(params.ManagerSecret), []byte(s.managerSecret)) == 1

	hash, err := auth.HashPassword(params.Password)
	if err != nil {
		return types.User{}, fmt.Errorf("hash password: %w", err)
	}

	return s.repo.Create(ctx, types.User{
		Name:         params.Name,
		Email:        params.Email,
		Username:     params.Username,
		IsManager:    isManager,
		PasswordHash: hash,
	})
}

// RequestPasswordReset issues a fresh reset grant for a known email and
// hands it to the notifier. Unknown emails return nil so the caller's
// response cannot leak which addresses are registered.
func (s *UserService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}

	token, err := auth.NewResetToken()
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}

	expiresAt := time.Now().Add(s.resetTTL)
	if err := s.repo.SetResetGrant(ctx, user.ID, token, expiresAt); err != nil {
		return err
	}

	if s.notifier != nil {
		if err := s.notifier.PasswordReset(ctx, user.Email, token, expiresAt); err != nil {
			return fmt.Errorf("notify reset: %w", err)
		}
	}
	return nil
}

// ResetPassword consumes an unexpired grant: the new password hash is
// stored and the grant fields cleared atomically. Unknown, mismatched,
// and expired tokens all return ErrInvalidResetToken.
func (s *UserService) ResetPassword(ctx context.Context, token, newPassword string) error {
	user, err := s.repo.GetByResetToken(ctx, token, time.Now())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidResetToken
		}
		return err
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.repo.ConsumeResetGrant(ctx, user.ID, hash)
}

func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *UserService) ListPublic(ctx context.Context) ([]types.PublicUser, error) {
	return s.repo.ListPublic(ctx)
}
