package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/medflow/medflow-warehouse/internal/warehouse/consumers"
	"github.com/medflow/medflow-warehouse/internal/warehouse/domain"
	"github.com/medflow/medflow-warehouse/internal/warehouse/events"
	"github.com/medflow/medflow-warehouse/internal/warehouse/handler"
	"github.com/medflow/medflow-warehouse/internal/warehouse/memstore"
	"github.com/medflow/medflow-warehouse/internal/warehouse/repository"
	"github.com/medflow/medflow-warehouse/internal/warehouse/service"
	"github.com/medflow/medflow-warehouse/migrations"
	"github.com/medflow/medflow-warehouse/pkg/auth"
	"github.com/medflow/medflow-warehouse/pkg/cache"
	"github.com/medflow/medflow-warehouse/pkg/config"
	"github.com/medflow/medflow-warehouse/pkg/database"
	"github.com/medflow/medflow-warehouse/pkg/httputil"
	"github.com/medflow/medflow-warehouse/pkg/logger"
	"github.com/medflow/medflow-warehouse/pkg/messaging"
	"github.com/redis/go-redis/v9"
)

const serviceName = "warehouse-service"

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(serviceName, cfg.Server.Environment)
	log.Info().Str("storage", cfg.Storage.Driver).Str("sequence", cfg.Sequence.Backend).Msg("starting Warehouse Service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage
	var (
		db    *database.DB
		scope domain.TransactionScope
	)
	switch cfg.Storage.Driver {
	case config.StoragePostgres:
		db, err = database.New(&cfg.Database, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer db.Close()

		if cfg.Database.AutoMigrate {
			if err := database.Migrate(cfg.Database.MigrationURL(), migrations.FS, log); err != nil {
				log.Fatal().Err(err).Msg("failed to run migrations")
			}
		}
		scope = repository.NewStore(db)
	default:
		log.Warn().Msg("using in-memory storage; stock is lost on restart")
		scope = memstore.New()
	}

	// Redis backs document counters and catalog event deduplication when configured
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb, err = cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to Redis")
		}
		defer rdb.Close()
	}

	var sequencer domain.Sequencer
	switch cfg.Sequence.Backend {
	case config.SequencePostgres:
		sequencer = repository.NewPostgresSequencer(db)
	case config.SequenceRedis:
		redisSeq := repository.NewRedisSequencer(rdb)
		if db != nil {
			redisSeq.WithFloor(repository.NewDocumentCodeFloor(db))
		}
		sequencer = redisSeq
	default:
		sequencer = memstore.NewSequencer()
	}

	// Messaging
	var (
		rmq       *messaging.RabbitMQ
		publisher service.EventPublisher
	)
	if cfg.RabbitMQ.Enabled {
		rmq, err = messaging.New(ctx, &cfg.RabbitMQ, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
		}
		defer rmq.Close()

		if err := rmq.DeclareDeadLetterQueue(serviceName); err != nil {
			log.Fatal().Err(err).Msg("failed to declare dead letter queue")
		}

		eventPublisher, err := events.NewWarehouseEventPublisher(rmq, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create event publisher")
		}
		publisher = eventPublisher
	}

	warehouseService := service.NewWarehouseService(scope, sequencer, domain.SystemClock{}, publisher, service.Options{
		NearExpiryWindow:      cfg.Stock.NearExpiryWindow(),
		MaxRetries:            cfg.Stock.MaxRetries,
		RetryDelay:            cfg.Stock.RetryDelay,
		AllowReceiptUnapprove: cfg.Stock.AllowReceiptUnapprove,
	}, log.WithComponent("warehouse-service"))

	if rmq != nil {
		var dedupe consumers.Deduplicator
		if rdb != nil {
			dedupe = cache.NewIdempotencyStore(rdb, "", 24*time.Hour)
		}

		catalogConsumer, err := consumers.NewCatalogEventConsumer(rmq, warehouseService, dedupe, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create catalog event consumer")
		}
		if err := catalogConsumer.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to start catalog event consumer")
		}
	}

	scheduler := service.NewLotStatusScheduler(warehouseService, cfg.Stock.StatusRefreshInterval, log.WithComponent("lot-status"))
	scheduler.Start(ctx)
	defer scheduler.Stop()

	verifier := auth.NewVerifier(&cfg.JWT)
	warehouseHandler := handler.NewWarehouseHandler(warehouseService, cfg.Stock.NearExpiryDays, log)

	// Create router
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(cors.Handler(cors.Options{
		AllowOriginFunc:  allowOrigin,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status := map[string]interface{}{
			"status":  "healthy",
			"service": serviceName,
			"storage": cfg.Storage.Driver,
		}
		if db != nil {
			status["database"] = db.Health(r.Context())
		}
		if rmq != nil {
			status["rabbitmq"] = rmq.Healthy()
		}
		httputil.JSON(w, http.StatusOK, status)
	})

	r.Route("/api/v1/warehouse", func(r chi.Router) {
		r.Use(httputil.Authenticate(verifier))
		warehouseHandler.Routes(r)
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// stop the consumer and the scheduler before draining requests
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func allowOrigin(r *http.Request, origin string) bool {
	switch {
	case origin == "http://localhost:3000", origin == "http://localhost:5173":
		return true
	case origin == "https://medflow.de", strings.HasSuffix(origin, ".medflow.de"):
		return true
	}
	return false
}
