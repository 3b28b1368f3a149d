package database

import (
	"context"
	"fmt"
	"sync"

	"github.com/gabriel-ai-assistant/police-scanner/pkg/common/config"
	"github.com/gabriel-ai-assistant/police-scanner/pkg/common/logger"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Manager owns the process-wide Postgres pool and Redis client. It is
// constructed once in main and passed by reference to every component;
// both handles are created lazily behind a mutex and torn down by a
// single idempotent Close.
type Manager struct {
	cfg *config.Config

	mu     sync.Mutex
	db     *gorm.DB
	redis  *redis.Client
	closed bool
}

func NewManager(cfg *config.Config) *Manager {
	return &Manager{cfg: cfg}
}

// Postgres returns the shared GORM handle, opening it on first use. The
// underlying sql.DB pool is bounded by DB_POOL_MIN_CONNS/DB_POOL_MAX_CONNS.
func (m *Manager) Postgres() (*gorm.DB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, fmt.Errorf("database manager already closed")
	}
	if m.db != nil {
		return m.db, nil
	}

	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		m.cfg.PostgresHost,
		m.cfg.PostgresUser,
		m.cfg.PostgresPassword,
		m.cfg.PostgresDB,
		m.cfg.PostgresPort,
		m.cfg.PostgresSSLMode,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("unwrapping sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(m.cfg.DBPoolMinConns)
	sqlDB.SetMaxOpenConns(m.cfg.DBPoolMaxConns)

	logger.Log.WithFields(logrus.Fields{
		"host":     m.cfg.PostgresHost,
		"database": m.cfg.PostgresDB,
		"pool_min": m.cfg.DBPoolMinConns,
		"pool_max": m.cfg.DBPoolMaxConns,
	}).Info("Connected to PostgreSQL")

	m.db = db
	return m.db, nil
}

// VerifySchema confirms the columns the pipeline depends on exist before
// any ingestion starts. Migrations are run by external tooling; a missing
// column here must abort startup rather than fail rows one by one.
func (m *Manager) VerifySchema(ctx context.Context) error {
	db, err := m.Postgres()
	if err != nil {
		return err
	}

	migrator := db.WithContext(ctx).Migrator()
	if !migrator.HasTable("calls_raw") {
		return fmt.Errorf("required table calls_raw is missing; run migrations first")
	}

	var missing []string
	for _, column := range []string{"playlist_uuid", "storage_key"} {
		if !migrator.HasColumn("calls_raw", column) {
			missing = append(missing, column)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("calls_raw is missing required columns %v; run migrations first", missing)
	}

	logger.Log.Info("Schema verification passed")
	return nil
}

// Close releases the pool and the Redis client. Safe to call more than once.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	var firstErr error
	if m.db != nil {
		if sqlDB, err := m.db.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				firstErr = err
			}
		}
		m.db = nil
	}
	if m.redis != nil {
		if err := m.redis.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		m.redis = nil
	}
	return firstErr
}
