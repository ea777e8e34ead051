package cart

import (
	"context"
	"fmt"
	"time"
)

// StaleCartStore deletes guest carts that have not been touched recently.
type StaleCartStore interface {
	DeleteAbandonedGuest(ctx context.Context, cutoff time.Time) (int64, error)
}

// Janitor expires abandoned guest carts. User carts never expire; a guest
// cart whose token was lost is unreachable and only holds stock noise.
type Janitor struct {
	Carts StaleCartStore
	TTL   time.Duration
	Now   func() time.Time
}

// Sweep deletes guest carts older than the TTL and reports how many went.
func (j Janitor) Sweep(ctx context.Context) (int64, error) {
	ttl := j.TTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	now := time.Now
	if j.Now != nil {
		now = j.Now
	}
	n, err := j.Carts.DeleteAbandonedGuest(ctx, now().Add(-ttl))
	if err != nil {
		return 0, fmt.Errorf("purge guest carts: %w", err)
	}
	return n, nil
}
