package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/order-insights/internal/domain"
)

// OrderFilter captures order search parameters.
type OrderFilter struct {
	AssignedToEmail *string
	Statuses        []domain.OrderStatus
	CreatedFrom     *time.Time
	CreatedTo       *time.Time
	Limit           int
	Offset          int
}

// OrderRepository encapsulates order persistence.
type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	Update(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	ListAll(ctx context.Context) ([]domain.Order, error)
	ListWithFilter(ctx context.Context, filter OrderFilter) ([]domain.Order, error)
}

type orderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository instantiates repository.
func NewOrderRepository(pool *pgxpool.Pool) OrderRepository {
	return &orderRepository{pool: pool}
}

func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	const query = `
        INSERT INTO orders (id, client_name, description, status, assigned_to_email, assigned_to_name)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		order.ID,
		order.ClientName,
		order.Description,
		order.Status,
		order.AssignedToEmail,
		order.AssignedToName,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
}

func (r *orderRepository) Update(ctx context.Context, order *domain.Order) error {
	const query = `
        UPDATE orders SET client_name=$1, description=$2, status=$3, assigned_to_email=$4,
            assigned_to_name=$5, completed_at=$6, updated_at=NOW()
        WHERE id=$7`
	cmd, err := r.pool.Exec(ctx, query,
		order.ClientName,
		order.Description,
		order.Status,
		order.AssignedToEmail,
		order.AssignedToName,
		order.CompletedAt,
		order.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *orderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	const query = `
        SELECT id, client_name, description, status, assigned_to_email, assigned_to_name,
               created_at, updated_at, completed_at
        FROM orders WHERE id=$1`
	var order domain.Order
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&order.ID,
		&order.ClientName,
		&order.Description,
		&order.Status,
		&order.AssignedToEmail,
		&order.AssignedToName,
		&order.CreatedAt,
		&order.UpdatedAt,
		&order.CompletedAt,
	); err != nil {
		return nil, err
	}
	return &order, nil
}

// ListAll returns the entire order set, newest first. The stream source uses
// it to build full snapshots.
func (r *orderRepository) ListAll(ctx context.Context) ([]domain.Order, error) {
	const query = `
        SELECT id, client_name, description, status, assigned_to_email, assigned_to_name,
               created_at, updated_at, completed_at
        FROM orders ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOrders(rows)
}

func (r *orderRepository) ListWithFilter(ctx context.Context, filter OrderFilter) ([]domain.Order, error) {
	base := `SELECT id, client_name, description, status, assigned_to_email, assigned_to_name,
                    created_at, updated_at, completed_at
             FROM orders`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.AssignedToEmail != nil {
		args = append(args, *filter.AssignedToEmail)
		clauses = append(clauses, fmt.Sprintf("assigned_to_email=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOrders(rows)
}

func scanOrders(rows pgx.Rows) ([]domain.Order, error) {
	var result []domain.Order
	for rows.Next() {
		var order domain.Order
		if err := rows.Scan(
			&order.ID,
			&order.ClientName,
			&order.Description,
			&order.Status,
			&order.AssignedToEmail,
			&order.AssignedToName,
			&order.CreatedAt,
			&order.UpdatedAt,
			&order.CompletedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, order)
	}
	return result, rows.Err()
}
