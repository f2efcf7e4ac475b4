package notify

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/eventmgr/apiserver/internal/mq"
)

// Consumer drains the notification channel. Delivery to an SMTP relay
// is left to the deployment; the consumer validates and records each
// job so redeliveries are visible.
type Consumer struct {
	mq      *mq.MQ
	channel string
	log     *slog.Logger
}

// NewConsumer constructs a Consumer over the given broker.
func NewConsumer(broker *mq.MQ, channel string, log *slog.Logger) *Consumer {
	return &Consumer{
		mq:      broker,
		channel: channel,
		log:     log,
	}
}

// Run subscribes and processes jobs until ctx is done.
func (c *Consumer) Run(ctx context.Context) error {
	return c.mq.Subscribe(ctx, c.channel, c.handle)
}

func (c *Consumer) handle(ctx context.Context, msg mq.Message) error {
	var email ResetEmail
	if err := json.Unmarshal(msg.Data, &email); err != nil {
		// Malformed payloads would redeliver forever; drop them.
		c.log.Error("discarding malformed notification", "message_id", msg.ID, "error", err)
		return nil
	}
	if email.To == "" || email.ResetURL == "" {
		c.log.Error("discarding incomplete notification", "message_id", msg.ID)
		return nil
	}

	c.log.Info("reset email ready for delivery",
		"message_id", msg.ID,
		"to", email.To,
		"expires_at", email.ExpiresAt,
	)
	return nil
}
