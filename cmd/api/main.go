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

	httptransport "github.com/spec-kit/lead-manager/internal/api/http"
	"github.com/spec-kit/lead-manager/internal/api/http/handlers"
	"github.com/spec-kit/lead-manager/internal/config"
	"github.com/spec-kit/lead-manager/internal/events"
	"github.com/spec-kit/lead-manager/internal/ingest"
	"github.com/spec-kit/lead-manager/internal/observability"
	"github.com/spec-kit/lead-manager/internal/persistence"
	"github.com/spec-kit/lead-manager/internal/service"
	"github.com/spec-kit/lead-manager/internal/worker"
)

// multipartOverhead leaves room for form boundaries on top of the file size limit.
const multipartOverhead = 1 << 20

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

	store, err := persistence.OpenLeadStore(ctx, cfg.Store, logger)
	if err != nil {
		logger.Fatal("failed to open lead store", zap.Error(err))
	}
	defer store.Close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	worker.StartActivityWorker(service.NewActivityService(dispatcher, logger))

	if cfg.AMQP.URL != "" {
		amqpConn, err := events.DialAMQP(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			logger.Warn("event forwarding disabled", zap.Error(err))
		} else {
			defer amqpConn.Close()
			events.NewAMQPForwarder(amqpConn.Ch, cfg.AMQP.Exchange, logger).Register(dispatcher)
			logger.Info("forwarding lead events", zap.String("exchange", cfg.AMQP.Exchange))
		}
	}

	staging, err := ingest.NewStaging(cfg.Upload.Dir)
	if err != nil {
		logger.Fatal("failed to prepare upload dir", zap.Error(err))
	}

	leadService := service.NewLeadService(service.LeadDependencies{
		LeadRepo:     store.Leads,
		Dispatcher:   dispatcher,
		Logger:       logger,
		StrictUpdate: cfg.Leads.StrictUpdate,
	})
	pipeline := ingest.NewPipeline(ingest.PipelineDependencies{
		LeadRepo:     store.Leads,
		Dispatcher:   dispatcher,
		Recorder:     metrics,
		Logger:       logger,
		ParseTimeout: cfg.Upload.ParseTimeout(),
	})

	sweeper := worker.NewStagingSweeper(staging, cfg.Upload.SweepInterval(), cfg.Upload.SweepMaxAge(), logger)
	go sweeper.Start(ctx)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		BodyLimit:    int(cfg.Upload.MaxBytes) + multipartOverhead,
		ErrorHandler: httptransport.ErrorHandler(logger, metrics),
	})
	httptransport.RegisterMiddlewares(app, httptransport.MiddlewareConfig{
		Logger:       logger,
		Metrics:      metrics,
		Timeout:      cfg.App.RequestTimeout(),
		AllowOrigins: cfg.App.CORSAllowOrigins,
	})

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, string(store.Backend), store.Leads),
		Leads: handlers.NewLeadsHandler(handlers.LeadsHandlerDependencies{
			Service:        leadService,
			Pipeline:       pipeline,
			Staging:        staging,
			MaxUploadBytes: cfg.Upload.MaxBytes,
			Logger:         logger,
		}),
		Metrics: metrics.Handler(),
	})

	go func() {
		logger.Info("lead api listening", zap.String("addr", cfg.App.Addr()), zap.String("store", string(store.Backend)))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)
	cancel()

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("shutdown incomplete", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
