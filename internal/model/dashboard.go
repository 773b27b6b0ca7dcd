package model

// DashboardStats holds the derived counters shown on the dashboard.
type DashboardStats struct {
	TotalItems     int `json:"totalItems"`
	UniqueItems    int `json:"uniqueItems"`
	ExpiringItems  int `json:"expiringItems"`
	LowStockItems  int `json:"lowStockItems"`
	ActiveAlerts   int `json:"activeAlerts"`
	CriticalAlerts int `json:"criticalAlerts"`
}
