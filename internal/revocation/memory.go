package revocation

import (
	"context"
	"time"

	"github.com/geocoder89/enrollhub/internal/cache"
)

type MemoryDenylist struct {
	entries *cache.Cache
}

func NewMemoryDenylist() *MemoryDenylist {
	return &MemoryDenylist{entries: cache.New(time.Hour)}
}

func (d *MemoryDenylist) Revoke(_ context.Context, jti string, until time.Time) error {
	if jti == "" {
		return nil
	}
	d.entries.SetWithTTL(jti, struct{}{}, time.Until(until))
	// keep the map bounded by dropping tokens that expired on their own
	d.entries.Sweep()
	return nil
}

func (d *MemoryDenylist) IsRevoked(_ context.Context, jti string) (bool, error) {
	_, ok := d.entries.Get(jti)
	return ok, nil
}
