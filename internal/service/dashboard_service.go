package service

import (
	"context"
	"fmt"

	"nursery-api/internal/models"
)

// DashboardService builds the accounting summary for the admin dashboard
type DashboardService struct {
	store             DashboardStore
	lowStockThreshold int
}

// NewDashboardService creates a new dashboard service
func NewDashboardService(store DashboardStore, lowStockThreshold int) *DashboardService {
	return &DashboardService{store: store, lowStockThreshold: lowStockThreshold}
}

// Summary returns order counts, revenue and products running low
func (ds *DashboardService) Summary(ctx context.Context) (*models.DashboardSummary, error) {
	summary, err := ds.store.GetDashboardSummary(ctx, ds.lowStockThreshold)
	if err != nil {
		return nil, fmt.Errorf("failed to build dashboard summary: %w", err)
	}
	return summary, nil
}
