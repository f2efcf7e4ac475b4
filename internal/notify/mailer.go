// Package notify hands password-reset notifications to the message
// broker. Actual email delivery is performed by whatever consumes the
// channel; the broker hand-off is the boundary of this service.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/eventmgr/apiserver/config"
	"github.com/eventmgr/apiserver/internal/mq"
)

// ResetEmail is the JSON payload published for each reset grant.
type ResetEmail struct {
	To        string    `json:"to"`
	From      string    `json:"from"`
	Subject   string    `json:"subject"`
	ResetURL  string    `json:"reset_url"`
	ExpiresAt time.Time `json:"expires_at"`
}

const resetSubject = "Password Reset Instructions"

// Mailer publishes reset notifications to the configured channel.
type Mailer struct {
	mq      *mq.MQ
	channel string
	baseURL string
	from    string
}

// NewMailer constructs a Mailer over the given broker.
func NewMailer(broker *mq.MQ, cfg config.NotifyConfig) *Mailer {
	return &Mailer{
		mq:      broker,
		channel: cfg.Channel,
		baseURL: cfg.ResetBaseURL,
		from:    cfg.FromAddress,
	}
}

// PasswordReset publishes a reset-email job for the given grant.
func (m *Mailer) PasswordReset(ctx context.Context, email, token string, expiresAt time.Time) error {
	payload := ResetEmail{
		To:        email,
		From:      m.from,
		Subject:   resetSubject,
		ResetURL:  fmt.Sprintf("%s/%s", m.baseURL, token),
		ExpiresAt: expiresAt,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal reset email: %w", err)
	}

	if _, err := m.mq.Publish(ctx, m.channel, data, map[string]string{"type": "password_reset"}); err != nil {
		return fmt.Errorf("publish reset email: %w", err)
	}
	return nil
}
