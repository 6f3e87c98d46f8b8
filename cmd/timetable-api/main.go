package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/timetable-api/api/swagger"
	"github.com/noah-isme/timetable-api/internal/handler"
	"github.com/noah-isme/timetable-api/internal/repository"
	"github.com/noah-isme/timetable-api/internal/scheduler"
	"github.com/noah-isme/timetable-api/internal/service"
	"github.com/noah-isme/timetable-api/pkg/cache"
	"github.com/noah-isme/timetable-api/pkg/config"
	"github.com/noah-isme/timetable-api/pkg/database"
	"github.com/noah-isme/timetable-api/pkg/logger"
)

// @title Timetable API
// @version 1.0.0
// @description Weekly school timetable generation service
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck

	// Redis is optional; without it proposals live only in memory.
	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
	}

	cacheRepo := repository.NewCacheRepository(redisClient, repository.CacheBreakerSettings{
		MaxFailures: cfg.Redis.Breaker.MaxFailures,
		OpenTimeout: cfg.Redis.Breaker.OpenTimeout,
		Interval:    cfg.Redis.Breaker.Interval,
	}, logr)
	defer cacheRepo.Close() //nolint:errcheck

	validate := validator.New()
	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Scheduler.CacheTTL, logr, redisClient != nil)

	generator := service.NewScheduleGeneratorService(
		repository.NewTeacherRepository(db),
		repository.NewClassRepository(db),
		repository.NewSubjectRepository(db),
		repository.NewTimeConstraintRepository(db),
		repository.NewFixedSlotRepository(db),
		repository.NewTeacherScheduleRepository(db),
		db,
		cacheSvc,
		metricsSvc,
		validate,
		logr.Named("generator"),
		service.ScheduleGeneratorConfig{
			ProposalTTL: cfg.Scheduler.ProposalTTL,
			ListTTL:     cfg.Scheduler.CacheTTL,
			Engine: scheduler.Config{
				MaxAttempts:       cfg.Scheduler.MaxAttempts,
				StrictMaxAttempts: cfg.Scheduler.StrictMaxAttempts,
				YieldEvery:        cfg.Scheduler.YieldEvery,
				Seed:              cfg.Scheduler.Seed,
			},
		},
	)

	jobSvc := service.NewGenerationJobService(generator, metricsSvc, validate, logr.Named("jobs"), service.GenerationJobConfig{
		Workers:   cfg.Scheduler.JobWorkers,
		Retention: cfg.Scheduler.JobRetention,
	})
	jobSvc.Start(ctx)
	defer jobSvc.Stop()

	checks := map[string]handler.ReadinessCheck{
		"postgres": db.PingContext,
	}
	if redisClient != nil {
		checks["redis"] = redisCheck(redisClient)
	}

	router := newRouter(cfg, logr, routerDeps{
		metrics:   metricsSvc,
		tokens:    service.NewTokenService(service.TokenConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer}),
		timetable: handler.NewScheduleGeneratorHandler(generator, jobSvc),
		probes:    handler.NewMetricsHandler(metricsSvc, checks),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func redisCheck(client *redis.Client) handler.ReadinessCheck {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}
