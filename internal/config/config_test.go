package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	require.Equal(t, "chatgo", cfg.AppName)
	require.Equal(t, "8081", cfg.APIServer.Port)
	require.Equal(t, "8080", cfg.Server.Port)
	require.Equal(t, "chat-outgoing", cfg.Kafka.OutgoingTopic)
	require.NotEmpty(t, cfg.Kafka.ConsumerGroup)
	require.Equal(t, "postgres", cfg.Database.Type)
	require.NotZero(t, cfg.Auth.JWTExpiry)
	require.Greater(t, cfg.WebSocket.PongWaitSeconds, cfg.WebSocket.PingPeriodSeconds)
}
