package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"scanventory-api/internal/cache"
	"scanventory-api/internal/messaging"
	"scanventory-api/internal/reconcile"
	"scanventory-api/internal/repository"
	"scanventory-api/pkg/uid"
)

// dashboardCacheKey is the cache entry holding the serialized DashboardStats.
// dashboardGenKey holds a token replaced on every invalidation.
const (
	dashboardCacheKey = "dashboard"
	dashboardGenKey   = "dashboard:gen"
	dashboardGenTTL   = 24 * time.Hour
)

// Clock returns the current instant in the pantry's time zone.
type Clock func() time.Time

// NewClock returns a Clock reading the wall clock in loc.
func NewClock(loc *time.Location) Clock {
	return func() time.Time { return time.Now().In(loc) }
}

// Deps holds the collaborators shared by the pantry services.
type Deps struct {
	Store       repository.Store
	Reconciler  *reconcile.Reconciler
	Locker      cache.Locker
	Cache       cache.Cache
	CacheTTL    time.Duration
	Publisher   messaging.Publisher
	Clock       Clock
	LockTimeout time.Duration
}

func (d Deps) withDefaults() Deps {
	if d.Locker == nil {
		d.Locker = cache.NewMemoryLocker()
	}
	if d.Publisher == nil {
		d.Publisher = messaging.NewLogPublisher()
	}
	if d.Clock == nil {
		d.Clock = NewClock(time.UTC)
	}
	if d.LockTimeout <= 0 {
		d.LockTimeout = 10 * time.Second
	}
	if d.CacheTTL <= 0 {
		d.CacheTTL = 5 * time.Minute
	}
	return d
}

// withItemLock runs fn while holding the lock of itemID.
// Only lock acquisition is bounded by LockTimeout.
func (d Deps) withItemLock(ctx context.Context, itemID string, fn func() error) error {
	lockCtx, cancel := context.WithTimeout(ctx, d.LockTimeout)
	defer cancel()

	unlock, err := d.Locker.Lock(lockCtx, "item:"+itemID)
	if err != nil {
		return fmt.Errorf("locking item %s: %w", itemID, err)
	}
	defer unlock()

	return fn()
}

// invalidateDashboard drops the cached dashboard after any item or alert change.
// The generation is bumped before the delete so a reader that computed from
// older data notices the change and drops its own write.
func (d Deps) invalidateDashboard(ctx context.Context) {
	if d.Cache == nil {
		return
	}
	if err := d.Cache.Set(ctx, dashboardGenKey, []byte(uid.New()), dashboardGenTTL); err != nil {
		log.Printf("[Cache] Failed to bump dashboard generation: %v", err)
	}
	if err := d.Cache.Delete(ctx, dashboardCacheKey); err != nil {
		log.Printf("[Cache] Failed to invalidate dashboard: %v", err)
	}
}

// dashboardGeneration returns the current generation token, empty when unset.
func (d Deps) dashboardGeneration(ctx context.Context) string {
	gen, err := d.Cache.Get(ctx, dashboardGenKey)
	if err != nil {
		return ""
	}
	return string(gen)
}
