package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/order-insights/internal/api/http"
	"github.com/spec-kit/order-insights/internal/api/http/handlers"
	"github.com/spec-kit/order-insights/internal/auth"
	"github.com/spec-kit/order-insights/internal/cache"
	"github.com/spec-kit/order-insights/internal/config"
	"github.com/spec-kit/order-insights/internal/domain"
	"github.com/spec-kit/order-insights/internal/events"
	"github.com/spec-kit/order-insights/internal/identity"
	"github.com/spec-kit/order-insights/internal/observability"
	"github.com/spec-kit/order-insights/internal/persistence"
	"github.com/spec-kit/order-insights/internal/repository"
	"github.com/spec-kit/order-insights/internal/roles"
	"github.com/spec-kit/order-insights/internal/service"
	"github.com/spec-kit/order-insights/internal/stats"
	"github.com/spec-kit/order-insights/internal/stream"
	"github.com/spec-kit/order-insights/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	store := buildStore(ctx, redis, logger)
	metrics := observability.NewMetrics()

	pool := pg.PoolHandle()
	accountRepo := repository.NewAccountRepository(pool)
	orderRepo := repository.NewOrderRepository(pool)

	dispatcher := events.NewInMemoryDispatcher()
	hub := identity.NewHub()

	resolver := roles.NewResolver(roles.Dependencies{
		Store:           store,
		Provider:        hub,
		TeamLeaderEmail: cfg.Roster.TeamLeaderEmail,
		TTL:             cfg.Auth.RoleCacheTTL(),
		Logger:          logger,
	})

	source := stream.NewPostgresSource(pool, orderRepo, logger)
	engine := stats.NewEngine(stats.Dependencies{
		Source:  source,
		Store:   store,
		Roster:  cfg.Roster.Editors,
		Logger:  logger,
		Metrics: metrics,
	})

	// Role changes drive the aggregation lifecycle: a sign-in starts a fresh
	// subscription for that session's scope, a sign-out tears it down. Stop
	// before Start keeps a single active subscription at all times.
	defer resolver.OnRoleChange(func(ident *domain.Identity, role domain.Role) {
		engine.Stop()
		if ident == nil {
			return
		}
		if err := engine.Start(role, *ident); err != nil {
			logger.Error("failed to start aggregation", zap.Error(err))
		}
	})()

	resolver.RefreshFromCacheOnStartup(ctx)
	resolver.Start(ctx)
	defer resolver.Close()
	defer engine.Stop()

	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		AccountRepo: accountRepo,
		Resolver:    resolver,
		Hub:         hub,
	})
	orderService := service.NewOrderService(service.OrderDependencies{
		OrderRepo:  orderRepo,
		Roster:     cfg.Roster.Editors,
		Dispatcher: dispatcher,
	})
	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	worker.StartNotificationWorker(notificationService)

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), accountRepo)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, metrics),
		Sessions:       handlers.NewSessionHandler(authService),
		Orders:         handlers.NewOrdersHandler(orderService),
		Rollups:        handlers.NewRollupsHandler(engine),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

// buildStore prefers the durable Redis cache and falls back to process
// memory when Redis cannot be reached, so sessions and rollups survive a
// restart only when the durable tier is available.
func buildStore(ctx context.Context, redis *persistence.Redis, logger *zap.Logger) cache.Store {
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := redis.Ping(pingCtx); err != nil {
		logger.Warn("redis unreachable, using in-memory cache", zap.Error(err))
		return cache.NewMemory()
	}
	return cache.NewRedisStore(redis.Client)
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
