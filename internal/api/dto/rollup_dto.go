package dto

import (
	"time"

	"github.com/spec-kit/order-insights/internal/domain"
	"github.com/spec-kit/order-insights/internal/stats"
)

// RollupResponse represents one editor's aggregate view.
type RollupResponse struct {
	Email           string                        `json:"email"`
	Name            string                        `json:"name"`
	TotalAssigned   int                           `json:"total_assigned"`
	TotalCompleted  int                           `json:"total_completed"`
	CurrentWorkload int                           `json:"current_workload"`
	MonthlyStats    map[string]domain.MonthlyStat `json:"monthly_stats"`
	CompletedOrders []CompletedOrderResponse      `json:"completed_orders"`
	RecentActivity  []ActivityResponse            `json:"recent_activity"`
}

// CompletedOrderResponse is one completed-order trend entry.
type CompletedOrderResponse struct {
	ID          string    `json:"id"`
	AssignedAt  time.Time `json:"assigned_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// ActivityResponse is one rendered recent-activity line.
type ActivityResponse struct {
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
}

// RollupSetResponse carries the engine state alongside the rollups so the
// client can distinguish loading, live, and degraded views.
type RollupSetResponse struct {
	State   stats.State      `json:"state"`
	Rollups []RollupResponse `json:"rollups"`
}

// RollupFromDomain maps a domain rollup to its response shape.
func RollupFromDomain(rollup domain.EditorRollup) RollupResponse {
	completed := make([]CompletedOrderResponse, 0, len(rollup.CompletedOrders))
	for _, entry := range rollup.CompletedOrders {
		completed = append(completed, CompletedOrderResponse{
			ID:          entry.ID,
			AssignedAt:  entry.AssignedAt,
			CompletedAt: entry.CompletedAt,
		})
	}
	activity := make([]ActivityResponse, 0, len(rollup.RecentActivity))
	for _, entry := range rollup.RecentActivity {
		activity = append(activity, ActivityResponse{
			Description: entry.Description,
			Timestamp:   entry.Timestamp,
		})
	}
	return RollupResponse{
		Email:           rollup.Email,
		Name:            rollup.Name,
		TotalAssigned:   rollup.TotalAssigned,
		TotalCompleted:  rollup.TotalCompleted,
		CurrentWorkload: rollup.CurrentWorkload,
		MonthlyStats:    rollup.MonthlyStats,
		CompletedOrders: completed,
		RecentActivity:  activity,
	}
}

// RollupSetFromSnapshot maps an engine snapshot.
func RollupSetFromSnapshot(snapshot stats.Snapshot) RollupSetResponse {
	rollups := make([]RollupResponse, 0, len(snapshot.Rollups))
	for _, rollup := range snapshot.Rollups {
		rollups = append(rollups, RollupFromDomain(rollup))
	}
	return RollupSetResponse{State: snapshot.State, Rollups: rollups}
}
