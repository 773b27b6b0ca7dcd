package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"scanventory-api/internal/cache"
	"scanventory-api/internal/expiry"
	"scanventory-api/internal/handler"
	"scanventory-api/internal/reconcile"
	"scanventory-api/internal/repository"
	"scanventory-api/internal/router"
	"scanventory-api/internal/service"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Count   *int            `json:"count"`
	Message string          `json:"message"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details []struct {
			Field string `json:"field"`
		} `json:"details"`
	} `json:"error"`
}

type itemJSON struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Quantity         int    `json:"quantity"`
	ExpirationDate   string `json:"expirationDate"`
	DaysUntilExpiry  int    `json:"daysUntilExpiry"`
	ExpirationStatus string `json:"expirationStatus"`
}

type alertJSON struct {
	ID        string `json:"id"`
	ItemID    string `json:"itemId"`
	Severity  string `json:"severity"`
	Dismissed bool   `json:"dismissed"`
}

var today = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()

	store, err := repository.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("opening test store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	memCache := cache.NewMemoryCache(time.Minute)
	t.Cleanup(func() { memCache.Close() })

	deps := service.Deps{
		Store:      store,
		Reconciler: reconcile.New(expiry.Default()),
		Cache:      memCache,
		Clock:      func() time.Time { return today },
	}
	alerts := service.NewAlertService(deps)
	items := service.NewItemService(alerts)

	return router.New(router.Config{
		Handler:          handler.New(store, "test"),
		ItemHandler:      handler.NewItemHandler(items),
		AlertHandler:     handler.NewAlertHandler(alerts),
		DashboardHandler: handler.NewDashboardHandler(service.NewDashboardService(deps)),
		AdminHandler:     handler.NewAdminHandler(store, memCache, "sqlite"),
	})
}

func do(t *testing.T, srv http.Handler, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: decoding response %q: %v", method, path, rec.Body.String(), err)
	}
	return rec, env
}

func createItem(t *testing.T, srv http.Handler, name, date string) itemJSON {
	t.Helper()
	rec, env := do(t, srv, http.MethodPost, "/api/items", map[string]interface{}{
		"name":           name,
		"quantity":       2,
		"shelf":          "Refrigerator - Top",
		"category":       "Dairy",
		"expirationDate": date,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create %s: expected 201, got %d: %s", name, rec.Code, rec.Body.String())
	}
	var item itemJSON
	json.Unmarshal(env.Data, &item)
	return item
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	rec, env := do(t, srv, http.MethodGet, "/api/health", nil)
	if rec.Code != http.StatusOK || !env.Success {
		t.Fatalf("expected healthy, got %d %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
}

func TestItemLifecycle(t *testing.T) {
	srv := newTestServer(t)

	item := createItem(t, srv, "Milk", "2024-03-03")
	if item.DaysUntilExpiry != 2 || item.ExpirationStatus != "critical" {
		t.Errorf("unexpected expiry view %+v", item)
	}

	rec, env := do(t, srv, http.MethodGet, "/api/items/"+item.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", rec.Code)
	}

	rec, env = do(t, srv, http.MethodGet, "/api/items?search=mil", nil)
	if rec.Code != http.StatusOK || env.Count == nil || *env.Count != 1 {
		t.Fatalf("list: unexpected response %s", rec.Body.String())
	}

	rec, env = do(t, srv, http.MethodPut, "/api/items/"+item.ID, map[string]interface{}{"name": "Skim Milk"})
	var updated itemJSON
	json.Unmarshal(env.Data, &updated)
	if rec.Code != http.StatusOK || updated.Name != "Skim Milk" || updated.Quantity != 2 {
		t.Fatalf("update: unexpected response %s", rec.Body.String())
	}

	rec, env = do(t, srv, http.MethodPatch, "/api/items/"+item.ID+"/quantity", map[string]int{"delta": -2})
	if rec.Code != http.StatusOK || env.Message == "" {
		t.Fatalf("quantity to zero: unexpected response %s", rec.Body.String())
	}

	rec, _ = do(t, srv, http.MethodGet, "/api/items/"+item.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 after removal, got %d", rec.Code)
	}

	rec, env = do(t, srv, http.MethodGet, "/api/alerts?dismissed=true", nil)
	if env.Count == nil || *env.Count != 1 {
		t.Errorf("expected the item's alert kept as dismissed, got %s", rec.Body.String())
	}
}

func TestCreateItemValidation(t *testing.T) {
	srv := newTestServer(t)

	rec, env := do(t, srv, http.MethodPost, "/api/items", map[string]interface{}{
		"name":           "",
		"shelf":          "Garage",
		"category":       "Dairy",
		"expirationDate": "2024-03-03",
	})
	if rec.Code != http.StatusBadRequest || env.Error == nil || env.Error.Code != "VALIDATION_ERROR" {
		t.Fatalf("expected validation error, got %d %s", rec.Code, rec.Body.String())
	}
	if len(env.Error.Details) != 2 {
		t.Errorf("expected name and shelf details, got %+v", env.Error.Details)
	}

	rec, _ = do(t, srv, http.MethodPost, "/api/items", "{not json")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed JSON, got %d", rec.Code)
	}
}

func TestNotFound(t *testing.T) {
	srv := newTestServer(t)

	paths := []struct{ method, path string }{
		{http.MethodGet, "/api/items/not-a-uuid"},
		{http.MethodGet, "/api/items/7d0c8d8e-5f8a-4a57-9d0a-3c1f7f0e4b11"},
		{http.MethodDelete, "/api/items/7d0c8d8e-5f8a-4a57-9d0a-3c1f7f0e4b11"},
		{http.MethodPut, "/api/alerts/7d0c8d8e-5f8a-4a57-9d0a-3c1f7f0e4b11/dismiss"},
		{http.MethodGet, "/api/nothing"},
	}
	for _, p := range paths {
		rec, env := do(t, srv, p.method, p.path, nil)
		if rec.Code != http.StatusNotFound || env.Success {
			t.Errorf("%s %s: expected 404, got %d", p.method, p.path, rec.Code)
		}
	}
}

func TestAlertsEndpoints(t *testing.T) {
	srv := newTestServer(t)

	createItem(t, srv, "Warn", "2024-03-06")
	createItem(t, srv, "Old", "2024-02-20")
	createItem(t, srv, "Fine", "2024-06-01")

	rec, env := do(t, srv, http.MethodGet, "/api/alerts", nil)
	var alerts []alertJSON
	json.Unmarshal(env.Data, &alerts)
	if rec.Code != http.StatusOK || len(alerts) != 2 {
		t.Fatalf("expected 2 active alerts, got %s", rec.Body.String())
	}
	if alerts[0].Severity != "expired" || alerts[1].Severity != "warning" {
		t.Errorf("unexpected order %+v", alerts)
	}

	rec, _ = do(t, srv, http.MethodGet, "/api/alerts?severity=urgent", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown severity, got %d", rec.Code)
	}

	rec, env = do(t, srv, http.MethodPut, "/api/alerts/"+alerts[0].ID+"/dismiss", nil)
	var dismissed alertJSON
	json.Unmarshal(env.Data, &dismissed)
	if rec.Code != http.StatusOK || !dismissed.Dismissed {
		t.Fatalf("dismiss: unexpected response %s", rec.Body.String())
	}

	rec, env = do(t, srv, http.MethodPut, "/api/alerts/dismiss-all", nil)
	if rec.Code != http.StatusOK || env.Count == nil || *env.Count != 1 {
		t.Fatalf("dismiss-all: unexpected response %s", rec.Body.String())
	}

	rec, env = do(t, srv, http.MethodPost, "/api/alerts/generate", nil)
	if rec.Code != http.StatusOK || env.Count == nil || *env.Count != 2 {
		t.Fatalf("generate: expected 2 new alerts, got %s", rec.Body.String())
	}
	rec, env = do(t, srv, http.MethodPost, "/api/alerts/generate", nil)
	if env.Count == nil || *env.Count != 0 {
		t.Errorf("second generate: expected 0 new alerts, got %s", rec.Body.String())
	}

	rec, env = do(t, srv, http.MethodGet, "/api/alerts?dismissed=all", nil)
	if env.Count == nil || *env.Count != 4 {
		t.Errorf("expected 4 alerts in history, got %s", rec.Body.String())
	}
}

func TestScanEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec, env := do(t, srv, http.MethodPost, "/api/items/scan", map[string]string{"barcode": "4006381333931"})
	var result struct {
		Action string `json:"action"`
	}
	json.Unmarshal(env.Data, &result)
	if rec.Code != http.StatusOK || result.Action != "new_item_scanned" {
		t.Fatalf("scan in unknown: unexpected response %s", rec.Body.String())
	}

	rec, _ = do(t, srv, http.MethodPost, "/api/items/scan", map[string]string{"barcode": "4006381333931", "action": "out"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("scan out unknown: expected 404, got %d", rec.Code)
	}
}

func TestDashboardAndAdmin(t *testing.T) {
	srv := newTestServer(t)
	createItem(t, srv, "Cheese", "2024-03-02")

	rec, env := do(t, srv, http.MethodGet, "/api/dashboard", nil)
	var stats struct {
		TotalItems     int `json:"totalItems"`
		CriticalAlerts int `json:"criticalAlerts"`
	}
	json.Unmarshal(env.Data, &stats)
	if rec.Code != http.StatusOK || stats.TotalItems != 2 || stats.CriticalAlerts != 1 {
		t.Fatalf("dashboard: unexpected response %s", rec.Body.String())
	}

	rec, env = do(t, srv, http.MethodGet, "/api/admin/stats", nil)
	var admin map[string]interface{}
	json.Unmarshal(env.Data, &admin)
	if rec.Code != http.StatusOK || admin["store_type"] != "sqlite" {
		t.Fatalf("admin stats: unexpected response %s", rec.Body.String())
	}
	if _, ok := admin["cache"].(map[string]interface{}); !ok {
		t.Errorf("expected cache stats, got %v", admin["cache"])
	}
}
