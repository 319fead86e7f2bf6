// Package history remembers which scan groups were committed remotely so a
// later discovery does not offer them again.
package history

import (
	"context"
	"fmt"
	"time"

	"checkscan/pkg/platform/sentinel"
)

// Store records committed group names for a bounded time.
type Store interface {
	Remember(ctx context.Context, names []string) error
	// Committed returns the subset of names that were remembered and have
	// not expired.
	Committed(ctx context.Context, names []string) (map[string]bool, error)
}

func validateTTL(ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("history ttl must be positive: %w", sentinel.ErrInvalidState)
	}
	return nil
}
