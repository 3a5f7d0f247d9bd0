package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/mirmex/helpdesk/internal/api/http"
	"github.com/mirmex/helpdesk/internal/api/http/handlers"
	"github.com/mirmex/helpdesk/internal/auth"
	"github.com/mirmex/helpdesk/internal/config"
	"github.com/mirmex/helpdesk/internal/events"
	"github.com/mirmex/helpdesk/internal/observability"
	"github.com/mirmex/helpdesk/internal/persistence"
	"github.com/mirmex/helpdesk/internal/repository"
	"github.com/mirmex/helpdesk/internal/service"
	"github.com/mirmex/helpdesk/internal/worker"
	"github.com/mirmex/helpdesk/internal/workflow"
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

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	commentRepo := repository.NewCommentRepository(pool)
	auditRepo := repository.NewAuditRepository(pool)
	equipmentRepo := repository.NewEquipmentRepository(pool)

	dispatcher := events.NewInMemoryDispatcher()
	machine := workflow.NewMachine(ticketRepo, auditRepo, dispatcher)

	resolver := auth.NewRoleResolver(userRepo, redis.Client, cfg.Auth.RoleCacheTTL())

	authService := service.NewAuthService(*cfg, userRepo)
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:    ticketRepo,
		CommentRepo:   commentRepo,
		AuditRepo:     auditRepo,
		EquipmentRepo: equipmentRepo,
		UserRepo:      userRepo,
		Machine:       machine,
	})
	equipmentService := service.NewEquipmentService(equipmentRepo)
	userService := service.NewUserService(userRepo, resolver)
	reportService := service.NewReportService(ticketRepo, auditRepo)
	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	worker.StartNotificationWorker(notificationService)

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), userRepo, resolver)

	metrics := observability.NewMetrics()

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Users:          handlers.NewUsersHandler(authService, userService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Equipment:      handlers.NewEquipmentHandler(equipmentService),
		Reports:        handlers.NewReportsHandler(reportService),
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

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
