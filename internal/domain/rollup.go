package domain

import "time"

// MonthlyStat counts assignments and completions within one calendar month.
type MonthlyStat struct {
	Assigned  int `json:"assigned"`
	Completed int `json:"completed"`
}

// CompletedOrder records one finished order for trend display.
type CompletedOrder struct {
	ID          string    `json:"id"`
	AssignedAt  time.Time `json:"assigned_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// ActivityEntry is a rendered recent-activity line.
type ActivityEntry struct {
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
}

// EditorRollup is the derived per-editor aggregate, recomputed in full from
// the latest order snapshot and never partially mutated.
type EditorRollup struct {
	Email           string                 `json:"email"`
	Name            string                 `json:"name"`
	TotalAssigned   int                    `json:"total_assigned"`
	TotalCompleted  int                    `json:"total_completed"`
	CurrentWorkload int                    `json:"current_workload"`
	MonthlyStats    map[string]MonthlyStat `json:"monthly_stats"`
	CompletedOrders []CompletedOrder       `json:"completed_orders"`
	RecentActivity  []ActivityEntry        `json:"recent_activity"`
}
