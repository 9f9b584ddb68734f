package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/agsys-platform/svclink/pkg/model"
)

// Store defines the contract for keeping relay state: live status snapshots
// in Redis and a durable audit trail in Postgres.
type Store interface {
	RecordRelayEvent(ctx context.Context, ev model.RelayEvent) error
	ListRelayEvents(ctx context.Context, target string, limit int) ([]model.RelayEvent, error)
	UpdateServiceStatus(ctx context.Context, project string, st model.ServiceStatus, ttl time.Duration) error
	GetServiceStatus(ctx context.Context, project, service string) (*model.ServiceStatus, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	GetJSON(ctx context.Context, key string, dest any) error
	HealthCheck(ctx context.Context) error
	Close() error
}

type HybridStore struct {
	redis  *redis.Client
	PG     *pgxpool.Pool
	logger *zap.Logger
}

type PGPoolConfig struct {
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

// NewHybrid creates a Redis-first, Postgres-backed store. An empty pgURL
// disables the audit trail; snapshot reads and writes still work.
func NewHybrid(redisAddr string, redisDB int, pgURL string, pgPoolConfig PGPoolConfig, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
		DB:   redisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	var pgPool *pgxpool.Pool
	if pgURL != "" {
		cfg, err := pgxpool.ParseConfig(pgURL)
		if err != nil {
			return nil, fmt.Errorf("invalid pg config: %w", err)
		}
		if pgPoolConfig.MaxConns > 0 {
			cfg.MaxConns = pgPoolConfig.MaxConns
		}
		if pgPoolConfig.MinConns > 0 {
			cfg.MinConns = pgPoolConfig.MinConns
		}
		if pgPoolConfig.MaxConnLifetime > 0 {
			cfg.MaxConnLifetime = pgPoolConfig.MaxConnLifetime
		}
		if pgPoolConfig.MaxConnIdleTime > 0 {
			cfg.MaxConnIdleTime = pgPoolConfig.MaxConnIdleTime
		}
		if pgPoolConfig.HealthCheckPeriod > 0 {
			cfg.HealthCheckPeriod = pgPoolConfig.HealthCheckPeriod
		}
		pgPool, err = pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
	}

	return &HybridStore{redis: rdb, PG: pgPool, logger: logger}, nil
}

// statusKey builds the Redis key holding the latest snapshot for a service.
func statusKey(project, service string) string {
	return fmt.Sprintf("relay:status:%s:%s", project, service)
}

// RecordRelayEvent inserts an immutable audit row into audit.relay_event.
func (s *HybridStore) RecordRelayEvent(ctx context.Context, ev model.RelayEvent) error {
	if s.PG == nil {
		return nil
	}
	_, err := s.PG.Exec(ctx, `
		INSERT INTO audit.relay_event (
			project, source, target,
			method, path, outcome, status_code, duration_ms, recorded_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
	`, ev.Project, ev.Source, ev.Target,
		ev.Method, ev.Path, ev.Outcome, ev.StatusCode, ev.DurationMS)
	if err != nil {
		s.logger.Error("store.pg.insert_relay_event_failed", zap.Error(err))
	}
	return err
}

// ListRelayEvents returns the most recent audit rows, newest first. An
// empty target returns rows for every target.
func (s *HybridStore) ListRelayEvents(ctx context.Context, target string, limit int) ([]model.RelayEvent, error) {
	if s.PG == nil {
		return nil, fmt.Errorf("postgres unavailable")
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.PG.Query(ctx, `
		SELECT id, project, source, target, method, path, outcome, status_code, duration_ms, recorded_at
		FROM audit.relay_event
		WHERE ($1 = '' OR LOWER(target) = LOWER($1))
		ORDER BY recorded_at DESC
		LIMIT $2;
	`, target, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []model.RelayEvent
	for rows.Next() {
		var ev model.RelayEvent
		if err := rows.Scan(&ev.ID, &ev.Project, &ev.Source, &ev.Target,
			&ev.Method, &ev.Path, &ev.Outcome, &ev.StatusCode, &ev.DurationMS, &ev.RecordedAt); err != nil {
			return nil, err
		}
		results = append(results, ev)
	}
	return results, nil
}

// UpdateServiceStatus overwrites the snapshot for a service. The ttl bounds
// how long a stale snapshot survives a stopped prober.
func (s *HybridStore) UpdateServiceStatus(ctx context.Context, project string, st model.ServiceStatus, ttl time.Duration) error {
	return s.SetJSON(ctx, statusKey(project, st.Service), st, ttl)
}

// GetServiceStatus returns the latest snapshot for a service, or nil when
// none is known.
func (s *HybridStore) GetServiceStatus(ctx context.Context, project, service string) (*model.ServiceStatus, error) {
	data, err := s.redis.Get(ctx, statusKey(project, service)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	var st model.ServiceStatus
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *HybridStore) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, key, data, ttl).Err()
}

func (s *HybridStore) GetJSON(ctx context.Context, key string, dest any) error {
	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func (s *HybridStore) HealthCheck(ctx context.Context) error {
	if s.redis == nil {
		return fmt.Errorf("redis not initialized")
	}
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	if s.PG != nil {
		if err := s.PG.Ping(ctx); err != nil {
			return fmt.Errorf("postgres ping failed: %w", err)
		}
	}
	return nil
}

func (s *HybridStore) Close() error {
	if s.PG != nil {
		s.PG.Close()
	}
	if s.redis != nil {
		return s.redis.Close()
	}
	return nil
}
