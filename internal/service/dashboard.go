package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"scanventory-api/internal/model"
)

// DashboardService computes the dashboard counters.
type DashboardService struct {
	Deps
}

// NewDashboardService creates a new dashboard service.
func NewDashboardService(deps Deps) *DashboardService {
	return &DashboardService{Deps: deps.withDefaults()}
}

// Stats returns the dashboard counters, served from cache when fresh.
// A value computed while a write invalidated the dashboard is returned to
// this caller but not kept in the cache.
func (s *DashboardService) Stats(ctx context.Context) (*model.DashboardStats, error) {
	if s.Cache == nil {
		return s.compute(ctx)
	}

	gen := s.dashboardGeneration(ctx)
	computed := false
	data, err := s.Cache.GetOrSet(ctx, dashboardCacheKey, s.CacheTTL, func() ([]byte, error) {
		computed = true
		stats, err := s.compute(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(stats)
	})
	if err != nil {
		return nil, err
	}
	if computed && s.dashboardGeneration(ctx) != gen {
		if err := s.Cache.Delete(ctx, dashboardCacheKey); err != nil {
			log.Printf("[DashboardService] Failed to drop stale dashboard: %v", err)
		}
	}

	var stats model.DashboardStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("decoding cached dashboard: %w", err)
	}
	return &stats, nil
}

func (s *DashboardService) compute(ctx context.Context) (*model.DashboardStats, error) {
	items, err := s.Store.Items().Find(ctx, model.ItemFilter{})
	if err != nil {
		return nil, fmt.Errorf("loading items: %w", err)
	}
	actives, err := s.Store.Alerts().Find(ctx, model.ActiveAlerts())
	if err != nil {
		return nil, fmt.Errorf("loading active alerts: %w", err)
	}

	now := s.Clock()
	classifier := s.Reconciler.Classifier()
	stats := &model.DashboardStats{UniqueItems: len(items), ActiveAlerts: len(actives)}

	for i := range items {
		stats.TotalItems += items[i].Quantity
		if classifier.Expiring(items[i].ExpirationDate, now) {
			stats.ExpiringItems++
		}
		if items[i].Quantity <= model.LowStockQuantity {
			stats.LowStockItems++
		}
	}
	for _, a := range actives {
		if a.Severity == model.SeverityCritical || a.Severity == model.SeverityExpired {
			stats.CriticalAlerts++
		}
	}
	return stats, nil
}
