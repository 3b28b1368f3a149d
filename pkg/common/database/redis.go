package database

import (
	"context"
	"fmt"
	"time"

	"github.com/gabriel-ai-assistant/police-scanner/pkg/common/logger"
	"github.com/redis/go-redis/v9"
)

// Redis returns the shared Redis client, creating it on first use and
// verifying connectivity with a ping.
func (m *Manager) Redis() (*redis.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, fmt.Errorf("database manager already closed")
	}
	if m.redis != nil {
		return m.redis, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", m.cfg.RedisHost, m.cfg.RedisPort),
		Password: m.cfg.RedisPassword,
		DB:       m.cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	logger.Log.WithField("addr", client.Options().Addr).Info("Connected to Redis")

	m.redis = client
	return m.redis, nil
}
