package cache

import (
	"assignment-wizard-service/internal/domain"
	"assignment-wizard-service/internal/platform/obs"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SQLLegCache is a Postgres-backed cache for origin->destination route legs.
type SQLLegCache struct {
	DB  *sql.DB
	TTL time.Duration

	now func() time.Time
}

func NewSQLLegCache(db *sql.DB, ttl time.Duration) *SQLLegCache {
	return &SQLLegCache{DB: db, TTL: ttl, now: time.Now}
}

// Fetch cached legs. Missing or expired keys are absent from the result.
func (s *SQLLegCache) GetMany(
	ctx context.Context,
	keys []domain.LegKey,
) (_ map[domain.LegKey]domain.RouteLeg, err error) {
	defer obs.Time(ctx, "legs.cache.GetMany")(&err)

	if s.DB == nil {
		return nil, errors.New("leg cache: db is nil")
	}

	out := make(map[domain.LegKey]domain.RouteLeg, len(keys))
	origins, byOrigin := groupByOrigin(keys)
	minComputed := cutoff(s.now(), s.TTL)

	q := `
	SELECT destination, distance_meters, duration_seconds
	FROM leg_cache
	WHERE origin = $1
		AND computed_at >= $2
		AND destination = ANY($3::text[]);
	`
	for _, origin := range origins {
		if err := scanLegs(ctx, s.DB, q, []any{origin, minComputed, byOrigin[origin]}, origin, out); err != nil {
			return nil, err
		}
	}

	return out, nil
}

// Store many legs, refreshing computed_at for keys already present.
func (s *SQLLegCache) PutMany(ctx context.Context, legs map[domain.LegKey]domain.RouteLeg) error {
	if s.DB == nil {
		return errors.New("leg cache: db is nil")
	}

	if len(legs) == 0 {
		return nil
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("insert leg cache: db begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO leg_cache (origin, destination, distance_meters, duration_seconds, computed_at)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (origin, destination) DO UPDATE
	SET distance_meters = EXCLUDED.distance_meters,
		duration_seconds = EXCLUDED.duration_seconds,
		computed_at = EXCLUDED.computed_at;
	`)
	if err != nil {
		return fmt.Errorf("insert leg cache: db prepare: %w", err)
	}
	defer stmt.Close()

	computed := s.now().Unix()
	for k, leg := range legs {
		if strings.TrimSpace(k.Origin) == "" || strings.TrimSpace(k.Destination) == "" {
			return fmt.Errorf("insert leg cache: empty key %+v", k)
		}

		if _, err := stmt.ExecContext(ctx, k.Origin, k.Destination, leg.DistanceMeters, leg.DurationSeconds, computed); err != nil {
			return fmt.Errorf("insert leg cache %s->%s: %w", k.Origin, k.Destination, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("insert leg cache commit: %w", err)
	}

	return nil
}

func (s *SQLLegCache) Purge(ctx context.Context) (int64, error) {
	if s.DB == nil {
		return 0, errors.New("leg cache: db is nil")
	}
	if s.TTL <= 0 {
		return 0, nil
	}

	res, err := s.DB.ExecContext(ctx, `DELETE FROM leg_cache WHERE computed_at < $1`, cutoff(s.now(), s.TTL))
	if err != nil {
		return 0, fmt.Errorf("purge leg cache: %w", err)
	}
	return res.RowsAffected()
}
