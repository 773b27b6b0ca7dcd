package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"scanventory-api/internal/cache"
	"scanventory-api/internal/model"
)

func TestCreateItemDefaultsAndView(t *testing.T) {
	env := newTestEnv(t)

	item, err := env.items.Create(context.Background(), ItemInput{
		Name:           "  Butter  ",
		Shelf:          string(model.ShelfFridgeMiddle),
		Category:       string(model.CategoryDairy),
		ExpirationDate: in(2) + "T18:00:00Z",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if item.Name != "Butter" {
		t.Errorf("expected trimmed name, got %q", item.Name)
	}
	if item.Quantity != 1 {
		t.Errorf("expected default quantity 1, got %d", item.Quantity)
	}
	if item.DaysUntilExpiry != 2 || item.ExpirationStatus != "critical" {
		t.Errorf("unexpected expiry view %d/%s", item.DaysUntilExpiry, item.ExpirationStatus)
	}
	if !item.AddedDate.Equal(today.Truncate(24 * time.Hour)) {
		t.Errorf("expected addedDate today, got %v", item.AddedDate)
	}
}

func TestCreateItemValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	valid := func() ItemInput {
		return ItemInput{
			Name:           "Milk",
			Shelf:          string(model.ShelfFridgeTop),
			Category:       string(model.CategoryDairy),
			ExpirationDate: in(3),
		}
	}

	tests := []struct {
		name  string
		mod   func(*ItemInput)
		field string
	}{
		{"blank name", func(in *ItemInput) { in.Name = "   " }, "name"},
		{"long name", func(in *ItemInput) { in.Name = strings.Repeat("a", model.MaxItemNameLength+1) }, "name"},
		{"negative quantity", func(in *ItemInput) { in.Quantity = intPtr(-1) }, "quantity"},
		{"zero quantity", func(in *ItemInput) { in.Quantity = intPtr(0) }, "quantity"},
		{"unknown shelf", func(in *ItemInput) { in.Shelf = "Garage" }, "shelf"},
		{"unknown category", func(in *ItemInput) { in.Category = "Toys" }, "category"},
		{"bad date", func(in *ItemInput) { in.ExpirationDate = "next tuesday" }, "expirationDate"},
		{"missing date", func(in *ItemInput) { in.ExpirationDate = "" }, "expirationDate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := valid()
			tt.mod(&input)

			_, err := env.items.Create(ctx, input)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Fields[0].Field != tt.field {
				t.Errorf("expected field %s, got %+v", tt.field, verr.Fields)
			}
		})
	}

	items, _ := env.items.List(ctx, ItemQuery{})
	if len(items) != 0 {
		t.Errorf("invalid input reached the store: %d items", len(items))
	}
	if n := len(env.allActive(t)); n != 0 {
		t.Errorf("invalid input raised %d alerts", n)
	}
}

func TestUpdateItem(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	item := env.createItem(t, "Jam", 30, 2)

	change, err := env.items.Update(ctx, item.ID, ItemPatch{Quantity: intPtr(4), Shelf: strPtr(string(model.ShelfPantry2))})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if change.Deleted || change.Item.Quantity != 4 || change.Item.Shelf != model.ShelfPantry2 {
		t.Errorf("unexpected change %+v", change)
	}

	if _, err := env.items.Update(ctx, item.ID, ItemPatch{Name: strPtr("")}); err == nil {
		t.Error("expected empty name to be rejected")
	}
	if _, err := env.items.Update(ctx, "missing", ItemPatch{Quantity: intPtr(1)}); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("expected ErrItemNotFound, got %v", err)
	}

	change, err = env.items.Update(ctx, item.ID, ItemPatch{Quantity: intPtr(0)})
	if err != nil || !change.Deleted {
		t.Fatalf("expected quantity 0 to delete, got %+v, %v", change, err)
	}
	if _, err := env.items.Get(ctx, item.ID); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("expected item gone, got %v", err)
	}
}

func TestAdjustQuantity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	item := env.createItem(t, "Soup", 1, 1)

	change, err := env.items.AdjustQuantity(ctx, item.ID, 2)
	if err != nil || change.Item.Quantity != 3 {
		t.Fatalf("AdjustQuantity +2: %+v, %v", change, err)
	}

	if _, err := env.items.AdjustQuantity(ctx, item.ID, -5); !errors.Is(err, ErrOutOfStock) {
		t.Errorf("expected ErrOutOfStock, got %v", err)
	}

	change, err = env.items.AdjustQuantity(ctx, item.ID, -3)
	if err != nil || !change.Deleted {
		t.Fatalf("expected deletion at zero, got %+v, %v", change, err)
	}

	all, _ := env.store.Alerts().Find(ctx, model.AlertFilter{ItemID: item.ID})
	if len(all) != 1 || !all[0].Dismissed {
		t.Errorf("expected alert dismissed with the item, got %+v", all)
	}
}

func TestScan(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.items.Scan(ctx, "0123456789", ScanIn)
	if err != nil || res.Action != ScanNewItem || res.Item != nil {
		t.Fatalf("scan unknown barcode: %+v, %v", res, err)
	}
	if _, err := env.items.Scan(ctx, "0123456789", ScanOut); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("expected ErrItemNotFound scanning out unknown barcode, got %v", err)
	}

	item, err := env.items.Create(ctx, ItemInput{
		Name:           "Beans",
		Quantity:       intPtr(1),
		Shelf:          string(model.ShelfPantry1),
		Category:       string(model.CategoryCanned),
		ExpirationDate: in(300),
		Barcode:        "0123456789",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	res, err = env.items.Scan(ctx, "0123456789", "")
	if err != nil || res.Action != ScanQuantityIncreased || res.Item.Quantity != 2 {
		t.Fatalf("scan in: %+v, %v", res, err)
	}

	env.items.Scan(ctx, "0123456789", ScanOut)
	res, err = env.items.Scan(ctx, "0123456789", ScanOut)
	if err != nil || res.Action != ScanScannedOut || !res.Deleted {
		t.Fatalf("expected last scan out to remove item, got %+v, %v", res, err)
	}
	if _, err := env.items.Get(ctx, item.ID); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("expected item removed, got %v", err)
	}

	var verr *ValidationError
	if _, err := env.items.Scan(ctx, "", ScanIn); !errors.As(err, &verr) {
		t.Errorf("expected validation error for empty barcode, got %v", err)
	}
	if _, err := env.items.Scan(ctx, "1", "sideways"); !errors.As(err, &verr) {
		t.Errorf("expected validation error for bad action, got %v", err)
	}
}

func TestListItems(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.createItem(t, "Whole Milk", 5, 1)
	env.createItem(t, "Bread", 2, 3)
	env.createItem(t, "Oat Milk", 9, 2)

	items, err := env.items.List(ctx, ItemQuery{Search: "milk", SortBy: "expirationDate", Order: "asc"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 || items[0].Name != "Whole Milk" || items[1].Name != "Oat Milk" {
		t.Errorf("unexpected items %+v", items)
	}
	if items[1].ExpirationStatus != "good" {
		t.Errorf("expected good status 9 days out, got %s", items[1].ExpirationStatus)
	}

	var verr *ValidationError
	if _, err := env.items.List(ctx, ItemQuery{SortBy: "price"}); !errors.As(err, &verr) {
		t.Errorf("expected validation error for unknown sort key, got %v", err)
	}
}

func TestDashboardStats(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.createItem(t, "Expired", -1, 1) // expired alert, low stock
	env.createItem(t, "Soon", 2, 5)     // critical alert, expiring
	env.createItem(t, "Week", 6, 2)     // warning alert, expiring, low stock
	env.createItem(t, "Later", 40, 10)

	stats, err := env.dashboard.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	want := model.DashboardStats{
		TotalItems:     18,
		UniqueItems:    4,
		ExpiringItems:  2,
		LowStockItems:  2,
		ActiveAlerts:   3,
		CriticalAlerts: 2,
	}
	if *stats != want {
		t.Errorf("stats = %+v, want %+v", *stats, want)
	}

	// Mutations invalidate the cached value.
	env.alerts.DismissAll(ctx)
	stats, _ = env.dashboard.Stats(ctx)
	if stats.ActiveAlerts != 0 || stats.CriticalAlerts != 0 {
		t.Errorf("expected cache invalidated after dismiss-all, got %+v", stats)
	}
}

func TestScanPrefersNewestDuplicate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		item, err := env.items.Create(ctx, ItemInput{
			Name:           "Beans",
			Shelf:          string(model.ShelfPantry1),
			Category:       string(model.CategoryCanned),
			ExpirationDate: in(300 + i),
			Barcode:        "4006381333931",
		})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		ids = append(ids, item.ID)
	}

	res, err := env.items.Scan(ctx, "4006381333931", ScanIn)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if res.Item.ID != ids[2] {
		t.Errorf("expected the last added item %s to be scanned, got %s", ids[2], res.Item.ID)
	}
}

// racingCache runs onCompute once, after a value is computed and before it is stored.
type racingCache struct {
	*cache.MemoryCache
	onCompute func()
	once      sync.Once
}

func (c *racingCache) GetOrSet(ctx context.Context, key string, ttl time.Duration, fn func() ([]byte, error)) ([]byte, error) {
	return c.MemoryCache.GetOrSet(ctx, key, ttl, func() ([]byte, error) {
		value, err := fn()
		if c.onCompute != nil {
			c.once.Do(c.onCompute)
		}
		return value, err
	})
}

func TestDashboardWriteDuringComputeIsNotCached(t *testing.T) {
	racing := &racingCache{MemoryCache: cache.NewMemoryCache(time.Minute)}
	t.Cleanup(func() { racing.Close() })

	env := newTestEnvWith(t, func(d *Deps) { d.Cache = racing })
	ctx := context.Background()
	racing.onCompute = func() { env.createItem(t, "Milk", 2, 1) }

	stats, err := env.dashboard.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.UniqueItems != 0 {
		t.Errorf("expected the in-flight read to see the empty pantry, got %d items", stats.UniqueItems)
	}

	stats, err = env.dashboard.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.UniqueItems != 1 || stats.ActiveAlerts != 1 {
		t.Errorf("dashboard stale after write: %+v", stats)
	}
}
