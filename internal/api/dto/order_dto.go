package dto

import (
	"time"

	"github.com/spec-kit/order-insights/internal/domain"
)

// CreateOrderRequest payload.
type CreateOrderRequest struct {
	ClientName      string `json:"client_name"`
	Description     string `json:"description"`
	AssignedToEmail string `json:"assigned_to_email"`
}

// UpdateOrderStatusRequest payload.
type UpdateOrderStatusRequest struct {
	Status domain.OrderStatus `json:"status"`
}

// OrderResponse represents one order.
type OrderResponse struct {
	ID              string             `json:"id"`
	ClientName      string             `json:"client_name"`
	Description     string             `json:"description"`
	Status          domain.OrderStatus `json:"status"`
	AssignedToEmail *string            `json:"assigned_to_email"`
	AssignedToName  *string            `json:"assigned_to_name"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
	CompletedAt     *time.Time         `json:"completed_at,omitempty"`
}

// OrderFromDomain maps a domain order to its response shape.
func OrderFromDomain(order *domain.Order) OrderResponse {
	return OrderResponse{
		ID:              order.ID,
		ClientName:      order.ClientName,
		Description:     order.Description,
		Status:          order.Status,
		AssignedToEmail: order.AssignedToEmail,
		AssignedToName:  order.AssignedToName,
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
		CompletedAt:     order.CompletedAt,
	}
}
