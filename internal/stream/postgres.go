package stream

import (
	"context"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/spec-kit/order-insights/internal/domain"
	"github.com/spec-kit/order-insights/internal/repository"
)

// NotifyChannel is the Postgres channel the orders trigger notifies on.
const NotifyChannel = "orders_changed"

// PostgresSource emits full order snapshots driven by LISTEN/NOTIFY. Each
// subscription holds one dedicated connection: it re-queries the complete
// order set on every notification and emits it, so consumers never see
// deltas.
type PostgresSource struct {
	pool   *pgxpool.Pool
	orders repository.OrderRepository
	logger *zap.Logger
}

// NewPostgresSource builds a source over the given pool and repository.
func NewPostgresSource(pool *pgxpool.Pool, orders repository.OrderRepository, logger *zap.Logger) *PostgresSource {
	return &PostgresSource{pool: pool, orders: orders, logger: logger}
}

// Subscribe delivers the current order set immediately, then again after
// every notification, from a single goroutine so emissions stay ordered.
func (s *PostgresSource) Subscribe(onEmit func(orders []domain.Order), onErr func(error)) CancelFunc {
	ctx, cancel := context.WithCancel(context.Background())
	var once sync.Once

	go s.run(ctx, onEmit, onErr)

	return func() {
		once.Do(cancel)
	}
}

func (s *PostgresSource) run(ctx context.Context, onEmit func([]domain.Order), onErr func(error)) {
	if s.pool == nil {
		s.fail(ctx, onErr, errors.New("no database pool configured"))
		return
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		s.fail(ctx, onErr, err)
		return
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+NotifyChannel); err != nil {
		s.fail(ctx, onErr, err)
		return
	}

	if !s.emitSnapshot(ctx, onEmit, onErr) {
		return
	}

	for {
		if _, err := conn.Conn().WaitForNotification(ctx); err != nil {
			s.fail(ctx, onErr, err)
			return
		}
		if !s.emitSnapshot(ctx, onEmit, onErr) {
			return
		}
	}
}

func (s *PostgresSource) emitSnapshot(ctx context.Context, onEmit func([]domain.Order), onErr func(error)) bool {
	orders, err := s.orders.ListAll(ctx)
	if err != nil {
		s.fail(ctx, onErr, err)
		return false
	}
	onEmit(orders)
	return true
}

// fail reports a terminal subscription error unless the subscription was
// cancelled, which is not an error from the consumer's point of view.
func (s *PostgresSource) fail(ctx context.Context, onErr func(error), err error) {
	if errors.Is(err, context.Canceled) || ctx.Err() != nil {
		return
	}
	s.logger.Error("order stream subscription failed", zap.Error(err))
	if onErr != nil {
		onErr(err)
	}
}
