package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-discovery/internal/app/domain/interactions"
	"github.com/FACorreiaa/loci-discovery/internal/app/domain/location"
	"github.com/FACorreiaa/loci-discovery/internal/app/domain/recommendation"
	"github.com/FACorreiaa/loci-discovery/internal/app/domain/search"
	"github.com/FACorreiaa/loci-discovery/internal/app/observability/metrics"
	"github.com/FACorreiaa/loci-discovery/internal/app/observability/tracer"
	database "github.com/FACorreiaa/loci-discovery/internal/db"
	"github.com/FACorreiaa/loci-discovery/internal/pkg/cache"
	"github.com/FACorreiaa/loci-discovery/internal/pkg/config"
	"github.com/FACorreiaa/loci-discovery/pkg/logger"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, usage)
			os.Exit(2)
		}
		log.Fatal(err)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return errUsage
	}

	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	l, err := logger.Init(cfg.Observability.LogLevel, zap.String("service", cfg.Observability.ServiceName))
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := tracer.InitOtelProviders(
		cfg.Observability.ServiceName,
		cfg.Observability.TraceEndpoint,
		cfg.Observability.MetricsAddr,
		l,
	)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			l.Error("Failed to shutdown OpenTelemetry", zap.Error(err))
		}
	}()
	metrics.InitAppMetrics()

	dbConfig, err := database.NewDatabaseConfig(cfg, l)
	if err != nil {
		return err
	}
	pool, err := database.Init(ctx, dbConfig, l)
	if err != nil {
		return err
	}
	defer pool.Close()

	if !database.WaitForDB(ctx, pool, l) {
		return fmt.Errorf("database not ready")
	}
	if err = database.RunMigrations(dbConfig.ConnectionURL, l); err != nil {
		return err
	}

	interactionRepo := interactions.NewRepositoryImpl(pool, l)
	locationRepo := location.NewRepository(pool, l)
	cacheManager := cache.NewCacheManager(cfg.Discovery.CacheTTL, l)
	defer logCacheMetrics(l, cacheManager)

	similarity := recommendation.NewSimilarityEngine(interactionRepo, recommendation.SimilarityOptions{
		SampleSize:      cfg.Discovery.CoVisitorSample,
		Concurrency:     cfg.Discovery.CoVisitorConcurrency,
		BreakerFailures: cfg.Discovery.BreakerFailures,
		BreakerTimeout:  cfg.Discovery.BreakerTimeout,
	}, l)
	ranker := recommendation.NewRecommendationRanker(interactionRepo, locationRepo, recommendation.NewPreferenceAnalyzer(), similarity, l)

	cli := &commands{
		recommendations: recommendation.NewService(ranker, locationRepo, interactionRepo, cacheManager, l),
		search:          search.NewService(locationRepo, search.NewSearchRanker(), cacheManager, l),
		out:             os.Stdout,
	}

	l.Debug("Dispatching command", zap.String("command", args[0]))
	return cli.dispatch(ctx, args)
}

func logCacheMetrics(l *zap.Logger, cm *cache.CacheManager) {
	for name, m := range cm.GetAllMetrics() {
		l.Debug("Cache metrics",
			zap.String("cache", name),
			zap.Int64("hits", m.Hits),
			zap.Int64("misses", m.Misses),
			zap.Int64("sets", m.Sets))
	}
}
