package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	httptransport "github.com/spec-kit/helpdesk-service/internal/api/http"
	"github.com/spec-kit/helpdesk-service/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/persistence"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/service"
	"github.com/spec-kit/helpdesk-service/internal/worker"
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	observability.CountLifecycleEvents(dispatcher, metrics)
	reminders := persistence.NewReminderStore(redis.Client)

	pool := pg.PoolHandle()
	txManager := repository.NewTxManager(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	escalationRepo := repository.NewEscalationRepository(pool)
	reopeningRepo := repository.NewReopeningRepository(pool)
	evaluationRepo := repository.NewEvaluationRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	approvalRepo := repository.NewApprovalDocumentRepository(pool)
	serviceRepo := repository.NewCachedServiceRepository(
		repository.NewServiceRepository(pool), redis.Client, 5*time.Minute, logger)

	assigner := service.NewAssignmentService(service.AssignmentDependencies{
		TicketRepo:        ticketRepo,
		UserRepo:          userRepo,
		HighLoadThreshold: cfg.Assignment.HighLoadThreshold,
		Logger:            logger,
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		TxManager:      txManager,
		TicketRepo:     ticketRepo,
		EscalationRepo: escalationRepo,
		ReopeningRepo:  reopeningRepo,
		EvaluationRepo: evaluationRepo,
		UserRepo:       userRepo,
		ServiceRepo:    serviceRepo,
		ApprovalRepo:   approvalRepo,
		Assigner:       assigner,
		Reminders:      reminders,
		Dispatcher:     dispatcher,
		Logger:         logger,
		AssignTimeout:  cfg.Assignment.Timeout(),
		ReminderTTL:    cfg.AutoClose.GraceWindow(),
	})
	authService := service.NewAuthService(*cfg, userRepo)
	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	worker.StartNotificationWorker(notificationService, logger)

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), userRepo)

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: cfg.App.Env == "production",
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Users:          handlers.NewUsersHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		StaffTickets:   handlers.NewStaffTicketsHandler(ticketService),
		Services:       handlers.NewServicesHandler(serviceRepo),
		Approvals:      handlers.NewApprovalsHandler(ticketService),
		AuthMiddleware: authMiddleware,
	})

	autoClose := worker.NewAutoCloseWorker(cfg.AutoClose, txManager, ticketRepo, reminders, dispatcher, logger)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("http server starting", zap.String("addr", cfg.App.Addr()))
		return app.Listen(cfg.App.Addr())
	})
	group.Go(func() error {
		return autoClose.Run(groupCtx)
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		return app.Shutdown()
	})

	if err := group.Wait(); err != nil {
		logger.Error("exited with error", zap.Error(err))
	}
}
