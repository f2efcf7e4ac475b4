package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/eventmgr/apiserver/types"
)

// requestTimeout bounds every API call; timed-out calls are abandoned
// and surfaced as ErrTimeout with no automatic retry.
const requestTimeout = 10 * time.Second

// ErrTimeout is returned when a request exceeds the bounded timeout.
var ErrTimeout = errors.New("request timed out")

// APIError is a non-2xx response decoded into the server's message shape.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// Client talks to the event manager API, attaching the session token to
// every request.
type Client struct {
	baseURL  string
	http     *http.Client
	store    *SessionStore
	identity *Identity
	token    string
}

// New constructs a Client and bootstraps the session from the store.
// The returned client may be logged out; check Identity.
func New(baseURL string, store *SessionStore) (*Client, error) {
	identity, token, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	return &Client{
		baseURL:  baseURL,
		http:     &http.Client{Timeout: requestTimeout},
		store:    store,
		identity: identity,
		token:    token,
	}, nil
}

// Identity returns the current identity, or nil when logged out. Routes
// that require identity should redirect to login when this is nil; the
// session bootstrap in New has already completed by the time a Client
// exists, so there is no logged-out flash to guard against.
func (c *Client) Identity() *Identity {
	return c.identity
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string     `json:"token"`
	User  types.User `json:"user"`
}

// Login authenticates and replaces the persisted session.
func (c *Client) Login(ctx context.Context, username, password string) error {
	var resp loginResponse
	if err := c.do(ctx, http.MethodPost, "/login", loginRequest{Username: username, Password: password}, &resp); err != nil {
		return err
	}

	if err := c.store.Save(resp.Token); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	c.token = resp.Token
	c.identity = &Identity{
		UserID:    resp.User.ID,
		IsManager: resp.User.IsManager,
		Name:      resp.User.Name,
	}
	return nil
}

// Logout clears the persisted session and in-memory identity. Any token
// already issued remains valid server-side until its natural expiry.
func (c *Client) Logout() error {
	c.identity = nil
	c.token = ""
	return c.store.Clear()
}

type registerRequest struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	Username      string `json:"username"`
	Password      string `json:"password"`
	ManagerSecret string `json:"managerSecret,omitempty"`
}

// Register creates a new account. It does not log in.
func (c *Client) Register(ctx context.Context, name, email, username, password, managerSecret string) error {
	return c.do(ctx, http.MethodPost, "/users", registerRequest{
		Name:          name,
		Email:         email,
		Username:      username,
		Password:      password,
		ManagerSecret: managerSecret,
	}, nil)
}

// ForgotPassword requests a reset grant for the given email. The server
// responds identically whether or not the email is registered.
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/forgot-password", map[string]string{"email": email}, nil)
}

// ResetPassword consumes a reset grant.
func (c *Client) ResetPassword(ctx context.Context, token, password string) error {
	return c.do(ctx, http.MethodPost, "/reset-password/"+url.PathEscape(token), map[string]string{"password": password}, nil)
}

// Events lists all events for the dashboard.
func (c *Client) Events(ctx context.Context) ([]types.Event, error) {
	var events []types.Event
	if err := c.do(ctx, http.MethodGet, "/events", nil, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// Attend registers the logged-in user for an event.
func (c *Client) Attend(ctx context.Context, eventID int) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/events/%d/attend", eventID), nil, nil)
}

// Unattend removes the logged-in user from an event.
func (c *Client) Unattend(ctx context.Context, eventID int) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/events/%d/unattend", eventID), nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewBuffer(data)
	} else {
		reqBody = &bytes.Buffer{}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) && urlErr.Timeout() {
			return ErrTimeout
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var payload struct {
			Message string `json:"message"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && payload.Message != "" {
			apiErr.Message = payload.Message
		} else {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
