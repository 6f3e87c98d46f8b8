package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/handler"
	internalmiddleware "github.com/noah-isme/timetable-api/internal/middleware"
	"github.com/noah-isme/timetable-api/internal/service"
	"github.com/noah-isme/timetable-api/pkg/config"
	"github.com/noah-isme/timetable-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/timetable-api/pkg/middleware/requestid"
)

type routerDeps struct {
	metrics   *service.MetricsService
	tokens    internalmiddleware.TokenValidator
	timetable *handler.ScheduleGeneratorHandler
	probes    *handler.MetricsHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, deps routerDeps) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(deps.metrics, "/health", "/ready", "/metrics"))
	r.Use(internalmiddleware.WithResponseMeta())

	r.GET("/health", deps.probes.Health)
	r.GET("/ready", deps.probes.Ready)
	r.GET("/metrics", deps.probes.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(internalmiddleware.JWT(deps.tokens))

	writers := internalmiddleware.RequireRoles(internalmiddleware.Writers...)
	readers := internalmiddleware.RequireRoles(internalmiddleware.Readers...)

	api.GET("/teacher-schedules", readers, deps.timetable.TeacherSchedules)

	if !cfg.Scheduler.Enabled {
		logr.Info("timetable generation disabled")
		return r
	}

	timetables := api.Group("/timetables")
	timetables.POST("/generate", writers, deps.timetable.Generate)
	timetables.GET("/proposals/:id", writers, deps.timetable.Proposal)
	timetables.POST("/save", writers, deps.timetable.Save)
	timetables.POST("/jobs", writers, deps.timetable.StartJob)
	timetables.GET("/jobs/:id", writers, deps.timetable.JobStatus)
	timetables.DELETE("/jobs/:id", writers, deps.timetable.CancelJob)

	return r
}
