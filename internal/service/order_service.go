package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/order-insights/internal/domain"
	"github.com/spec-kit/order-insights/internal/events"
	"github.com/spec-kit/order-insights/internal/repository"
	apperrors "github.com/spec-kit/order-insights/pkg/util/errorutil"
)

// OrderService handles order lifecycle operations. It is the writer the
// aggregation engine trusts: the monotonic pending -> in-progress ->
// completed transition is enforced here, and completedAt is stamped exactly
// when an order completes.
type OrderService struct {
	orders     repository.OrderRepository
	roster     []domain.Editor
	dispatcher events.Dispatcher
}

// OrderDependencies bundles collaborators.
type OrderDependencies struct {
	OrderRepo  repository.OrderRepository
	Roster     []domain.Editor
	Dispatcher events.Dispatcher
}

// OrderCreateInput describes a new order.
type OrderCreateInput struct {
	ClientName      string
	Description     string
	AssignedToEmail string
}

// NewOrderService creates the service.
func NewOrderService(deps OrderDependencies) *OrderService {
	return &OrderService{
		orders:     deps.OrderRepo,
		roster:     deps.Roster,
		dispatcher: deps.Dispatcher,
	}
}

// CreateOrder creates a pending order assigned to a roster editor. Only the
// team leader may create orders.
func (s *OrderService) CreateOrder(ctx context.Context, actorEmail string, actorRole domain.Role, input OrderCreateInput) (*domain.Order, error) {
	if actorRole != domain.RoleTeamLeader {
		return nil, apperrors.NewForbidden("only the team leader creates orders")
	}
	if strings.TrimSpace(input.ClientName) == "" {
		return nil, apperrors.NewValidationError("client_name required", nil)
	}

	editor, ok := s.editorByEmail(input.AssignedToEmail)
	if !ok {
		return nil, apperrors.NewValidationError("assignee is not on the editor roster",
			map[string]any{"assigned_to_email": input.AssignedToEmail})
	}

	order := &domain.Order{
		ID:              uuid.NewString(),
		ClientName:      input.ClientName,
		Description:     input.Description,
		Status:          domain.OrderStatusPending,
		AssignedToEmail: &editor.Email,
		AssignedToName:  &editor.Name,
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publish(ctx, actorEmail, actorRole, events.EventOrderCreated, order.ID, events.OrderCreatedPayload{
		ClientName:      order.ClientName,
		AssignedToEmail: order.AssignedToEmail,
	})
	return order, nil
}

// UpdateStatus advances an order's lifecycle. Editors may only move their
// own orders; the team leader may move any.
func (s *OrderService) UpdateStatus(ctx context.Context, actorEmail string, actorRole domain.Role, orderID string, next domain.OrderStatus) (*domain.Order, error) {
	if !domain.ValidStatus(next) {
		return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": next})
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("order", map[string]any{"order_id": orderID})
		}
		return nil, apperrors.MapError(err)
	}

	if actorRole != domain.RoleTeamLeader && order.AssigneeEmail() != actorEmail {
		return nil, apperrors.NewForbidden("order belongs to another editor")
	}
	if !domain.CanTransition(order.Status, next) {
		return nil, apperrors.NewConflict("status may only move forward",
			map[string]any{"from": order.Status, "to": next})
	}

	old := order.Status
	order.Status = next
	if next == domain.OrderStatusCompleted {
		now := time.Now()
		order.CompletedAt = &now
	}
	if err := s.orders.Update(ctx, order); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publish(ctx, actorEmail, actorRole, events.EventOrderStatusChanged, order.ID, events.OrderStatusChangedPayload{
		OldStatus: old,
		NewStatus: next,
	})
	if next == domain.OrderStatusCompleted {
		s.publish(ctx, actorEmail, actorRole, events.EventOrderCompleted, order.ID, events.OrderCompletedPayload{
			AssignedToEmail: order.AssignedToEmail,
			CompletedAt:     *order.CompletedAt,
		})
	}
	return order, nil
}

// ListOrders returns orders visible to the actor: everything for the team
// leader, only their own for an editor. This scoping is a query
// optimization; the aggregation engine is correct either way.
func (s *OrderService) ListOrders(ctx context.Context, actorEmail string, actorRole domain.Role, filter repository.OrderFilter) ([]domain.Order, error) {
	if actorRole != domain.RoleTeamLeader {
		filter.AssignedToEmail = &actorEmail
	}
	orders, err := s.orders.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return orders, nil
}

// GetOrder fetches one order the actor is allowed to see.
func (s *OrderService) GetOrder(ctx context.Context, actorEmail string, actorRole domain.Role, orderID string) (*domain.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("order", map[string]any{"order_id": orderID})
		}
		return nil, apperrors.MapError(err)
	}
	if actorRole != domain.RoleTeamLeader && order.AssigneeEmail() != actorEmail {
		return nil, apperrors.NewForbidden("order belongs to another editor")
	}
	return order, nil
}

func (s *OrderService) editorByEmail(email string) (domain.Editor, bool) {
	for _, editor := range s.roster {
		if editor.Email == email {
			return editor, true
		}
	}
	return domain.Editor{}, false
}

func (s *OrderService) publish(ctx context.Context, actorEmail string, actorRole domain.Role, eventType events.EventType, orderID string, payload any) {
	if s.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		OrderID:   orderID,
		Actor:     events.Actor{Email: actorEmail, Role: actorRole},
		Timestamp: time.Now(),
		Payload:   payload,
	}
	_ = s.dispatcher.Publish(ctx, event)
}
