package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/medflow/medflow-warehouse/internal/warehouse/domain"
	"github.com/medflow/medflow-warehouse/pkg/database"
	"github.com/redis/go-redis/v9"
)

// PostgresSequencer keeps daily document counters in document_sequences.
// It runs outside the document transaction, so a rolled back document
// leaves a gap.
type PostgresSequencer struct {
	q sqlx.QueryerContext
}

// NewPostgresSequencer creates a new sequencer on the pool
func NewPostgresSequencer(db *database.DB) *PostgresSequencer {
	return &PostgresSequencer{q: db.DB}
}

// Next increments and returns the counter for prefix on day
func (s *PostgresSequencer) Next(ctx context.Context, prefix string, day time.Time) (int64, error) {
	var n int64
	err := s.q.QueryRowxContext(ctx, `
		INSERT INTO document_sequences (prefix, day, last_value)
		VALUES ($1, $2, 1)
		ON CONFLICT (prefix, day) DO UPDATE SET last_value = document_sequences.last_value + 1
		RETURNING last_value
	`, prefix, day.Format("2006-01-02")).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to advance %s sequence: %w", prefix, database.MapError(err))
	}
	return n, nil
}

// DocumentCodeFloor reads the highest number already used by stored
// document codes, so a counter that lost its state resumes after it.
type DocumentCodeFloor struct {
	q sqlx.QueryerContext
}

func NewDocumentCodeFloor(db *database.DB) *DocumentCodeFloor {
	return &DocumentCodeFloor{q: db.DB}
}

// Highest returns the largest n of the codes <prefix>-<yyyymmdd>-n, or 0.
func (f *DocumentCodeFloor) Highest(ctx context.Context, prefix string, day time.Time) (int64, error) {
	table := "issuances"
	if prefix == domain.DocumentReceipt.Prefix() {
		table = "receipts"
	}

	var n int64
	err := f.q.QueryRowxContext(ctx, `
		SELECT COALESCE(MAX(CAST(split_part(code, '-', 3) AS BIGINT)), 0)
		FROM `+table+` WHERE code LIKE $1
	`, prefix+"-"+day.Format("20060102")+"-%").Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to read highest %s code: %w", prefix, database.MapError(err))
	}
	return n, nil
}

// SequenceFloor supplies the starting point of a counter key that does not exist.
type SequenceFloor interface {
	Highest(ctx context.Context, prefix string, day time.Time) (int64, error)
}

// RedisSequencer keeps daily document counters in Redis.
type RedisSequencer struct {
	client    redis.Cmdable
	keyPrefix string
	ttl       time.Duration
	floor     SequenceFloor
}

// NewRedisSequencer creates a sequencer whose daily keys expire after two days
func NewRedisSequencer(client redis.Cmdable) *RedisSequencer {
	return &RedisSequencer{
		client:    client,
		keyPrefix: "warehouse:seq:",
		ttl:       48 * time.Hour,
	}
}

// WithFloor seeds missing counters from floor, so a flushed Redis does not
// hand out codes that are already stored.
func (s *RedisSequencer) WithFloor(floor SequenceFloor) *RedisSequencer {
	s.floor = floor
	return s
}

// Next increments and returns the counter for prefix on day
func (s *RedisSequencer) Next(ctx context.Context, prefix string, day time.Time) (int64, error) {
	key := s.keyPrefix + prefix + ":" + day.Format("20060102")

	if s.floor != nil {
		if err := s.seed(ctx, key, prefix, day); err != nil {
			return 0, err
		}
	}

	n, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to advance %s sequence: %w", prefix, err)
	}
	if n == 1 {
		if err := s.client.Expire(ctx, key, s.ttl).Err(); err != nil {
			return 0, fmt.Errorf("failed to set %s sequence expiry: %w", prefix, err)
		}
	}
	return n, nil
}

func (s *RedisSequencer) seed(ctx context.Context, key, prefix string, day time.Time) error {
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to check %s sequence: %w", prefix, err)
	}
	if exists > 0 {
		return nil
	}

	highest, err := s.floor.Highest(ctx, prefix, day)
	if err != nil {
		return err
	}
	// SETNX: a concurrent first use may already have seeded the key
	if err := s.client.SetNX(ctx, key, highest, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to seed %s sequence: %w", prefix, err)
	}
	return nil
}
