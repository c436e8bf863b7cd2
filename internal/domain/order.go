package domain

import "time"

// OrderStatus enumerates lifecycle states for orders.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusInProgress OrderStatus = "in-progress"
	OrderStatusCompleted  OrderStatus = "completed"
)

// ValidStatus reports whether s is one of the known lifecycle states.
func ValidStatus(s OrderStatus) bool {
	switch s {
	case OrderStatusPending, OrderStatusInProgress, OrderStatusCompleted:
		return true
	}
	return false
}

// CanTransition reports whether the monotonic pending -> in-progress -> completed
// transition from one status to the next is allowed. Writers enforce this; the
// aggregation engine assumes it.
func CanTransition(from, to OrderStatus) bool {
	switch from {
	case OrderStatusPending:
		return to == OrderStatusInProgress || to == OrderStatusCompleted
	case OrderStatusInProgress:
		return to == OrderStatusCompleted
	default:
		return false
	}
}

// Order is the unit of work handed to an editor.
type Order struct {
	ID              string
	ClientName      string
	Description     string
	Status          OrderStatus
	AssignedToEmail *string
	AssignedToName  *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	CompletedAt     *time.Time
}

// AssigneeEmail returns the assigned email or empty when unassigned.
func (o *Order) AssigneeEmail() string {
	if o.AssignedToEmail == nil {
		return ""
	}
	return *o.AssignedToEmail
}

// AssigneeName returns the legacy assignee display name or empty.
func (o *Order) AssigneeName() string {
	if o.AssignedToName == nil {
		return ""
	}
	return *o.AssignedToName
}
