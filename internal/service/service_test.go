package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"scanventory-api/internal/cache"
	"scanventory-api/internal/expiry"
	"scanventory-api/internal/model"
	"scanventory-api/internal/reconcile"
	"scanventory-api/internal/repository"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.AlertEvent
}

func (p *recordingPublisher) PublishAlertEvent(ctx context.Context, event *model.AlertEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, *event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) count(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

type testEnv struct {
	store     *repository.SQLStore
	alerts    *AlertService
	items     *ItemService
	dashboard *DashboardService
	publisher *recordingPublisher
	now       time.Time
}

// today is the fixed reference date of every service test.
var today = time.Date(2024, 1, 10, 9, 30, 0, 0, time.UTC)

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, nil)
}

// newTestEnvWith builds a testEnv, letting configure replace dependencies
// before the services are created.
func newTestEnvWith(t *testing.T, configure func(*Deps)) *testEnv {
	t.Helper()

	store, err := repository.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("opening test store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	memCache := cache.NewMemoryCache(time.Minute)
	t.Cleanup(func() { memCache.Close() })

	env := &testEnv{store: store, publisher: &recordingPublisher{}, now: today}
	deps := Deps{
		Store:      store,
		Reconciler: reconcile.New(expiry.Default()),
		Locker:     cache.NewMemoryLocker(),
		Cache:      memCache,
		CacheTTL:   time.Minute,
		Publisher:  env.publisher,
		Clock:      func() time.Time { return env.now },
	}
	if configure != nil {
		configure(&deps)
	}
	env.alerts = NewAlertService(deps)
	env.items = NewItemService(env.alerts)
	env.dashboard = NewDashboardService(deps)
	return env
}

// in returns the date n days from today as YYYY-MM-DD.
func in(n int) string {
	return expiry.FormatDate(today.AddDate(0, 0, n))
}

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }
func boolPtr(v bool) *bool    { return &v }

func (e *testEnv) createItem(t *testing.T, name string, days, qty int) *model.ItemView {
	t.Helper()
	item, err := e.items.Create(context.Background(), ItemInput{
		Name:           name,
		Quantity:       intPtr(qty),
		Shelf:          string(model.ShelfFridgeTop),
		Category:       string(model.CategoryDairy),
		ExpirationDate: in(days),
	})
	if err != nil {
		t.Fatalf("Create %s: %v", name, err)
	}
	return item
}

func (e *testEnv) activeAlerts(t *testing.T, itemID string) []model.Alert {
	t.Helper()
	alerts, err := e.store.Alerts().Find(context.Background(), model.ActiveAlertsFor(itemID))
	if err != nil {
		t.Fatalf("Find active alerts: %v", err)
	}
	return alerts
}

func (e *testEnv) allActive(t *testing.T) []model.Alert {
	t.Helper()
	alerts, err := e.store.Alerts().Find(context.Background(), model.ActiveAlerts())
	if err != nil {
		t.Fatalf("Find active alerts: %v", err)
	}
	return alerts
}
