package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anonto42/minglr/backend/internal/fanout"
	"github.com/anonto42/minglr/backend/internal/metrics"
	"github.com/anonto42/minglr/backend/internal/ranking"
	"github.com/anonto42/minglr/backend/internal/realtime"
	"github.com/anonto42/minglr/backend/internal/router"
	"github.com/anonto42/minglr/backend/internal/services"
	"github.com/anonto42/minglr/backend/pkg/config"
	"github.com/anonto42/minglr/backend/validators"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load configuration
	cfg := config.Load()
	logger := config.NewLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	var bus realtime.Bus = realtime.NewMemoryBus()
	var cache ranking.Cache = ranking.NewMemoryCache()
	if cfg.RedisURL != "" {
		redisClient, err := realtime.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
		bus = realtime.NewRedisBus(redisClient, realtime.WithLogger(logger))
		cache = ranking.NewRedisCache(redisClient)
		logger.Info("redis bus and ranking cache enabled")
	}

	// Initialize stores
	var st *stores
	var err error
	if cfg.Store == config.StoreMemory {
		st = newMemoryStores(bus, logger)
	} else {
		st, err = newCloudStores(ctx, cfg, bus, logger)
		if err != nil {
			log.Fatalf("Failed to initialize stores: %v", err)
		}
	}
	defer st.close()

	relayOpts := []fanout.Option{
		fanout.WithLogger(logger),
		fanout.WithMetrics(m),
		fanout.WithInterval(cfg.RelayInterval),
	}
	if len(cfg.KafkaBrokers) > 0 {
		exporter, err := fanout.NewKafkaExporter(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			log.Fatalf("Failed to create Kafka exporter: %v", err)
		}
		defer exporter.Close()
		st.checks["kafka"] = exporter.Ping
		relayOpts = append(relayOpts, fanout.WithExporter(exporter))
		logger.Info("outbox export to kafka enabled", "topic", cfg.KafkaTopic)
	}
	relay := fanout.NewRelay(st.notifications, st.outboxes, relayOpts...)

	var generator ranking.Generator
	if cfg.GeminiAPIKey != "" {
		gen, err := ranking.NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			log.Fatalf("Failed to create Gemini client: %v", err)
		}
		generator = gen
	}
	ranker := ranking.New(generator, cache,
		ranking.WithLogger(logger), ranking.WithMetrics(m), ranking.WithTTL(cfg.RankingCacheTTL))

	svcOpts := []services.Option{
		services.WithLogger(logger),
		services.WithMetrics(m),
		services.WithKicker(relay),
	}
	users := services.NewUserService(st.users, st.follows, st.identity, svcOpts...)
	messaging := services.NewMessagingService(st.groups, st.messages, svcOpts...)
	activities := services.NewActivityService(st.activities, st.users, ranker, svcOpts...)
	if err := activities.Seed(ctx); err != nil {
		logger.Warn("seeding activities", "error", err)
	}

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.Validator = validators.NewValidator()
	config.SetupMiddleware(e, logger, cfg.AllowedOrigins)
	router.SetupRoutes(e, router.Dependencies{
		Users:          users,
		Messaging:      messaging,
		Polls:          services.NewPollService(st.messages, st.activities, messaging, svcOpts...),
		Notifications:  services.NewNotificationService(st.notifications, svcOpts...),
		Posts:          services.NewPostService(st.posts, st.users, svcOpts...),
		Activities:     activities,
		Uploader:       st.uploader(logger),
		Profiles:       st.users,
		Verifier:       st.verifier,
		JWTSecret:      cfg.JWTSecret,
		JWTTTL:         cfg.JWTTTL,
		OriginPatterns: cfg.AllowedOrigins,
		HealthChecks:   st.checks,
		Metrics:        m,
		Logger:         logger,
	})

	metricsSrv := &http.Server{
		Addr:              ":" + cfg.MetricsPort,
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting minglr api", "port", cfg.Port, "store", cfg.Store)
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return relay.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return errors.Join(e.Shutdown(shutdownCtx), metricsSrv.Shutdown(shutdownCtx))
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
