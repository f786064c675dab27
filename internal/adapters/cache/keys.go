package cache

import (
	"assignment-wizard-service/internal/domain"
	"sort"
	"strings"
	"time"
)

// groupByOrigin collects unique, non-empty destinations per origin. Origins are
// returned sorted so lookups hit the table in a stable order.
func groupByOrigin(keys []domain.LegKey) ([]string, map[string][]string) {
	seen := map[domain.LegKey]struct{}{}
	byOrigin := map[string][]string{}
	for _, k := range keys {
		k.Origin = strings.TrimSpace(k.Origin)
		k.Destination = strings.TrimSpace(k.Destination)
		if k.Origin == "" || k.Destination == "" {
			continue
		}

		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		byOrigin[k.Origin] = append(byOrigin[k.Origin], k.Destination)
	}

	origins := make([]string, 0, len(byOrigin))
	for o := range byOrigin {
		origins = append(origins, o)
	}
	sort.Strings(origins)
	return origins, byOrigin
}

// cutoff returns the oldest computed_at (unix seconds) still considered fresh.
// A zero ttl never expires.
func cutoff(now time.Time, ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	return now.Add(-ttl).Unix()
}
