package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	req := require.New(t)

	cfg, err := Load()
	req.NoError(err)
	req.Equal(StorageDriverPostgres, cfg.Storage.Driver)
	req.Equal(4096, cfg.Chat.MaxBodyLength)
	req.Equal(256, cfg.Chat.SendBufferSize)
	req.Equal(30*time.Second, cfg.Chat.PingInterval)
	req.Empty(cfg.Kafka.Brokers)
}

func TestLoadFromEnvironment(t *testing.T) {
	req := require.New(t)

	t.Setenv("STORAGE_DRIVER", "badger")
	t.Setenv("BADGER_DIR", "/tmp/chat")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("SERVER_ALLOWED_ORIGINS", "https://app.example.com")
	t.Setenv("CHAT_SEND_RATE_PER_MINUTE", "10")

	cfg, err := Load()
	req.NoError(err)
	req.Equal(StorageDriverBadger, cfg.Storage.Driver)
	req.Equal("/tmp/chat", cfg.Storage.BadgerDir)
	req.Equal([]string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	req.Equal([]string{"https://app.example.com"}, cfg.Server.AllowedOrigins)
	req.Equal(10, cfg.Chat.SendRatePerMinute)
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "mongo")

	_, err := Load()
	require.ErrorContains(t, err, "unknown storage driver")
}

func TestLoadRejectsPingLongerThanPongWait(t *testing.T) {
	t.Setenv("CHAT_PING_INTERVAL", "2m")

	_, err := Load()
	require.ErrorContains(t, err, "ping interval")
}
