package server

import (
	"context"
	"testing"

	"github.com/eventmgr/apiserver/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBroker_Disabled(t *testing.T) {
	// An empty backend and a selected-but-unconfigured backend both mean
	// notifications are off, not a startup failure.
	for name, cfg := range map[string]config.MQConfig{
		"empty backend":         {Backend: ""},
		"rabbitmq without url":  {Backend: "rabbitmq"},
		"pubsub without params": {Backend: "pubsub"},
	} {
		broker, err := NewBroker(context.Background(), cfg)
		require.NoError(t, err, name)
		assert.Nil(t, broker, name)
	}
}

func TestNewBroker_UnknownBackend(t *testing.T) {
	_, err := NewBroker(context.Background(), config.MQConfig{Backend: "kafka"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mq backend")
}
