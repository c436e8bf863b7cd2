package stats

import (
	"fmt"
	"sort"

	"github.com/spec-kit/order-insights/internal/domain"
)

// recentActivityLimit caps the rendered recent-activity feed.
const recentActivityLimit = 5

// MonthKey renders the year-month bucket an order's createdAt falls into.
func MonthKey(order domain.Order) string {
	return order.CreatedAt.Format("Jan 2006")
}

// Matches applies the editor/order matching policy: an exact email match
// wins; records carrying no email at all fall back to the legacy display
// name. Two editors sharing a display name would silently merge under the
// fallback; that ambiguity is a known product gap, not something this layer
// guesses at.
func Matches(editor domain.Editor, order domain.Order) bool {
	if email := order.AssigneeEmail(); email != "" {
		return email == editor.Email
	}
	return order.AssigneeName() != "" && order.AssigneeName() == editor.Name
}

// Build recomputes one editor's rollup from scratch against a full order
// snapshot. Orders matching no roster editor are excluded everywhere and
// counted nowhere.
func Build(editor domain.Editor, orders []domain.Order) domain.EditorRollup {
	rollup := domain.EditorRollup{
		Email:           editor.Email,
		Name:            editor.Name,
		MonthlyStats:    make(map[string]domain.MonthlyStat),
		CompletedOrders: []domain.CompletedOrder{},
		RecentActivity:  []domain.ActivityEntry{},
	}

	for _, order := range orders {
		if !Matches(editor, order) {
			continue
		}

		rollup.TotalAssigned++
		completed := order.Status == domain.OrderStatusCompleted
		if completed {
			rollup.TotalCompleted++
		} else {
			rollup.CurrentWorkload++
		}

		month := MonthKey(order)
		stat := rollup.MonthlyStats[month]
		stat.Assigned++
		if completed {
			stat.Completed++
		}
		rollup.MonthlyStats[month] = stat

		if completed && order.CompletedAt != nil {
			rollup.CompletedOrders = append(rollup.CompletedOrders, domain.CompletedOrder{
				ID:          order.ID,
				AssignedAt:  order.CreatedAt,
				CompletedAt: *order.CompletedAt,
			})
		}
	}

	sort.SliceStable(rollup.CompletedOrders, func(i, j int) bool {
		return rollup.CompletedOrders[i].CompletedAt.After(rollup.CompletedOrders[j].CompletedAt)
	})

	for i, completed := range rollup.CompletedOrders {
		if i == recentActivityLimit {
			break
		}
		rollup.RecentActivity = append(rollup.RecentActivity, domain.ActivityEntry{
			Description: fmt.Sprintf("Completed order for %s", completed.ID),
			Timestamp:   completed.CompletedAt,
		})
	}

	return rollup
}

// BuildAll recomputes the rollup for every editor in roster order.
func BuildAll(editors []domain.Editor, orders []domain.Order) []domain.EditorRollup {
	rollups := make([]domain.EditorRollup, 0, len(editors))
	for _, editor := range editors {
		rollups = append(rollups, Build(editor, orders))
	}
	return rollups
}
