package services

import (
	"context"
	"testing"
	"time"

	"github.com/eventmgr/apiserver/config"
	"github.com/eventmgr/apiserver/internal/auth"
	"github.com/eventmgr/apiserver/internal/store"
	"github.com/eventmgr/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUserRepo struct {
	users  map[int]types.User
	nextID int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[int]types.User{}, nextID: 1}
}

func (r *fakeUserRepo) GetByID(_ context.Context, id int) (types.User, error) {
	user, ok := r.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *fakeUserRepo) GetByUsername(_ context.Context, username string) (types.User, error) {
	for _, user := range r.users {
		if user.Username == username {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (types.User, error) {
	for _, user := range r.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *fakeUserRepo) UsernameOrEmailTaken(_ context.Context, username, email string) (bool, error) {
	for _, user := range r.users {
		if user.Username == username || user.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeUserRepo) Create(_ context.Context, user types.User) (types.User, error) {
	for _, existing := range r.users {
		if existing.Username == user.Username || existing.Email == user.Email {
			return types.User{}, store.ErrConflict
		}
	}
	user.ID = r.nextID
	r.nextID++
	r.users[user.ID] = user
	return user, nil
}

func (r *fakeUserRepo) SetResetGrant(_ context.Context, userID int, token string, expiresAt time.Time) error {
	user, ok := r.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	user.ResetToken = &token
	user.ResetTokenExpiresAt = &expiresAt
	r.users[userID] = user
	return nil
}

func (r *fakeUserRepo) GetByResetToken(_ context.Context, token string, now time.Time) (types.User, error) {
	for _, user := range r.users {
		if user.ResetToken != nil && *user.ResetToken == token &&
			user.ResetTokenExpiresAt != nil && user.ResetTokenExpiresAt.After(now) {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *fakeUserRepo) ConsumeResetGrant(_ context.Context, userID int, passwordHash string) error {
	user, ok := r.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	user.PasswordHash = passwordHash
	user.ResetToken = nil
	user.ResetTokenExpiresAt = nil
	r.users[userID] = user
	return nil
}

func (r *fakeUserRepo) ListPublic(_ context.Context) ([]types.PublicUser, error) {
	users := []types.PublicUser{}
	for _, user := range r.users {
		users = append(users, types.PublicUser{ID: user.ID, Name: user.Name, IsManager: user.IsManager})
	}
	return users, nil
}

type fakeNotifier struct {
	emails []string
	tokens []string
}

func (n *fakeNotifier) PasswordReset(_ context.Context, email, token string, _ time.Time) error {
	n.emails = append(n.emails, email)
	n.tokens = append(n.tokens, token)
	return nil
}

func newTestUserService(repo *fakeUserRepo, notifier ResetNotifier) *UserService {
	cfg := config.AuthConfig{
		JWTSecret:     "test-secret",
		TokenTTL:      2 * time.Hour,
		Issuer:        "eventmgr-test",
		ManagerSecret: "let-me-manage",
		ResetTokenTTL: time.Hour,
	}
	return NewUserService(repo, auth.NewTokenManager(cfg), cfg, notifier)
}

func register(t *testing.T, svc *UserService, username, secret string) types.User {
	t.Helper()
	user, err := svc.Register(context.Background(), RegisterParams{
		Name:          "Test " + username,
		Email:         username + "@x.com",
		Username:      username,
		Password:      "p1",
		ManagerSecret: secret,
	})
	require.NoError(t, err)
	return user
}

func TestRegister_OrdinaryByDefault(t *testing.T) {
	svc := newTestUserService(newFakeUserRepo(), nil)

	user := register(t, svc, "a1", "")
	assert.False(t, user.IsManager)
	assert.NotEmpty(t, user.PasswordHash)
	assert.NotEqual(t, "p1", user.PasswordHash)
}

func TestRegister_ManagerOnExactSecret(t *testing.T) {
	svc := newTestUserService(newFakeUserRepo(), nil)

	assert.True(t, register(t, svc, "m1", "let-me-manage").IsManager)
	assert.False(t, register(t, svc, "m2", "LET-ME-MANAGE").IsManager)
	assert.False(t, register(t, svc, "m3", "let-me-manage ").IsManager)
}

func TestRegister_DuplicateConflicts(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestUserService(repo, nil)
	register(t, svc, "a1", "")

	_, err := svc.Register(context.Background(), RegisterParams{
		Name: "Other", Email: "other@x.com", Username: "a1", Password: "p2",
	})
	assert.ErrorIs(t, err, store.ErrConflict)

	_, err = svc.Register(context.Background(), RegisterParams{
		Name: "Other", Email: "a1@x.com", Username: "other", Password: "p2",
	})
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestLogin_Success(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestUserService(repo, nil)
	created := register(t, svc, "a1", "")

	token, user, err := svc.Login(context.Background(), "a1", "p1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, user.ID)

	claims, err := auth.DecodeUnverified(token)
	require.NoError(t, err)
	assert.Equal(t, created.ID, claims.UserID)
	assert.False(t, claims.IsManager)
}

func TestLogin_WrongPasswordAndUnknownUserAreIndistinguishable(t *testing.T) {
	svc := newTestUserService(newFakeUserRepo(), nil)
	register(t, svc, "a1", "")

	_, _, errWrongPassword := svc.Login(context.Background(), "a1", "nope")
	_, _, errUnknownUser := svc.Login(context.Background(), "ghost", "p1")

	assert.ErrorIs(t, errWrongPassword, ErrInvalidCredentials)
	assert.ErrorIs(t, errUnknownUser, ErrInvalidCredentials)
	assert.Equal(t, errWrongPassword.Error(), errUnknownUser.Error())
}

func TestRequestPasswordReset_UnknownEmailIsSilent(t *testing.T) {
	notifier := &fakeNotifier{}
	svc := newTestUserService(newFakeUserRepo(), notifier)

	require.NoError(t, svc.RequestPasswordReset(context.Background(), "nobody@x.com"))
	assert.Empty(t, notifier.emails)
}

func TestRequestPasswordReset_IssuesGrantAndNotifies(t *testing.T) {
	repo := newFakeUserRepo()
	notifier := &fakeNotifier{}
	svc := newTestUserService(repo, notifier)
	user := register(t, svc, "a1", "")

	require.NoError(t, svc.RequestPasswordReset(context.Background(), "a1@x.com"))

	stored := repo.users[user.ID]
	require.NotNil(t, stored.ResetToken)
	require.NotNil(t, stored.ResetTokenExpiresAt)
	assert.True(t, stored.ResetTokenExpiresAt.After(time.Now()))

	require.Len(t, notifier.emails, 1)
	assert.Equal(t, "a1@x.com", notifier.emails[0])
	assert.Equal(t, *stored.ResetToken, notifier.tokens[0])
}

func TestRequestPasswordReset_SupersedesPreviousGrant(t *testing.T) {
	repo := newFakeUserRepo()
	notifier := &fakeNotifier{}
	svc := newTestUserService(repo, notifier)
	register(t, svc, "a1", "")

	require.NoError(t, svc.RequestPasswordReset(context.Background(), "a1@x.com"))
	require.NoError(t, svc.RequestPasswordReset(context.Background(), "a1@x.com"))

	require.Len(t, notifier.tokens, 2)
	assert.NotEqual(t, notifier.tokens[0], notifier.tokens[1])

	// Only the latest grant is honored.
	err := svc.ResetPassword(context.Background(), notifier.tokens[0], "p2")
	assert.ErrorIs(t, err, ErrInvalidResetToken)
	require.NoError(t, svc.ResetPassword(context.Background(), notifier.tokens[1], "p2"))
}

func TestResetPassword_ConsumesGrant(t *testing.T) {
	repo := newFakeUserRepo()
	notifier := &fakeNotifier{}
	svc := newTestUserService(repo, notifier)
	register(t, svc, "a1", "")
	require.NoError(t, svc.RequestPasswordReset(context.Background(), "a1@x.com"))
	token := notifier.tokens[0]

	require.NoError(t, svc.ResetPassword(context.Background(), token, "newpass"))

	_, _, err := svc.Login(context.Background(), "a1", "p1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = svc.Login(context.Background(), "a1", "newpass")
	require.NoError(t, err)

	// Single use: the same token no longer works.
	err = svc.ResetPassword(context.Background(), token, "again")
	assert.ErrorIs(t, err, ErrInvalidResetToken)
}

func TestResetPassword_ExpiredGrantRejected(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestUserService(repo, nil)
	user := register(t, svc, "a1", "")

	expired := time.Now().Add(-time.Minute)
	token := "deadbeef"
	repo.users[user.ID] = func(u types.User) types.User {
		u.ResetToken = &token
		u.ResetTokenExpiresAt = &expired
		return u
	}(repo.users[user.ID])

	err := svc.ResetPassword(context.Background(), token, "p2")
	assert.ErrorIs(t, err, ErrInvalidResetToken)
}

func TestResetPassword_UnknownTokenRejected(t *testing.T) {
	svc := newTestUserService(newFakeUserRepo(), nil)

	err := svc.ResetPassword(context.Background(), "no-such-token", "p2")
	assert.ErrorIs(t, err, ErrInvalidResetToken)
}
