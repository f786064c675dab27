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

// SQLite backed cache for origin->destination route legs.
// Entries older than TTL are ignored on read and removed by Purge.
type SqliteLegCache struct {
	DB  *sql.DB
	TTL time.Duration

	now func() time.Time
}

func NewSqliteLegCache(db *sql.DB, ttl time.Duration) *SqliteLegCache {
	return &SqliteLegCache{DB: db, TTL: ttl, now: time.Now}
}

// Fetch cached legs. Missing or expired keys are absent from the result.
func (s *SqliteLegCache) GetMany(
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

	for _, origin := range origins {
		dests := byOrigin[origin]

		ph := make([]string, 0, len(dests))
		args := make([]any, 0, 2+len(dests))
		args = append(args, origin, minComputed)
		for _, d := range dests {
			ph = append(ph, "?")
			args = append(args, d)
		}

		// SQLite does not support binding slices directly in an IN (...) clause.
		// Only the placeholder structure is interpolated; all values remain parameterized.
		q := fmt.Sprintf(`
		SELECT
			destination,
			distance_meters,
			duration_seconds
		FROM leg_cache
		WHERE origin = ?
			AND computed_at >= ?
			AND destination IN (%s);
		`, strings.Join(ph, ","))

		if err := scanLegs(ctx, s.DB, q, args, origin, out); err != nil {
			return nil, err
		}
	}

	return out, nil
}

// Store many legs, replacing older entries for the same keys.
func (s *SqliteLegCache) PutMany(ctx context.Context, legs map[domain.LegKey]domain.RouteLeg) error {
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
	INSERT OR REPLACE INTO leg_cache (
		origin,
		destination,
		distance_meters,
		duration_seconds,
		computed_at
	)
	VALUES (?, ?, ?, ?, ?)
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

// Purge deletes expired entries and returns how many were removed.
func (s *SqliteLegCache) Purge(ctx context.Context) (int64, error) {
	if s.DB == nil {
		return 0, errors.New("leg cache: db is nil")
	}
	if s.TTL <= 0 {
		return 0, nil
	}

	res, err := s.DB.ExecContext(ctx, `DELETE FROM leg_cache WHERE computed_at < ?`, cutoff(s.now(), s.TTL))
	if err != nil {
		return 0, fmt.Errorf("purge leg cache: %w", err)
	}
	return res.RowsAffected()
}

func scanLegs(
	ctx context.Context,
	db *sql.DB,
	q string,
	args []any,
	origin string,
	out map[domain.LegKey]domain.RouteLeg,
) error {
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("get leg cache: query leg_cache table: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var dest string
		var meters, seconds int
		if err := rows.Scan(&dest, &meters, &seconds); err != nil {
			return fmt.Errorf("get leg cache: scan rows: %w", err)
		}
		out[domain.LegKey{Origin: origin, Destination: dest}] = domain.RouteLeg{
			DistanceMeters:  meters,
			DurationSeconds: seconds,
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("get leg cache: row iteration: %w", err)
	}
	return nil
}
