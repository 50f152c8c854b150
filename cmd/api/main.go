package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/facultydesk/substitute-api/api/swagger"
	"github.com/facultydesk/substitute-api/internal/handler"
	"github.com/facultydesk/substitute-api/internal/middleware"
	"github.com/facultydesk/substitute-api/internal/repository"
	"github.com/facultydesk/substitute-api/internal/service"
	"github.com/facultydesk/substitute-api/pkg/cache"
	"github.com/facultydesk/substitute-api/pkg/config"
	"github.com/facultydesk/substitute-api/pkg/database"
	"github.com/facultydesk/substitute-api/pkg/logger"
	corsmiddleware "github.com/facultydesk/substitute-api/pkg/middleware/cors"
	reqidmiddleware "github.com/facultydesk/substitute-api/pkg/middleware/requestid"
	"github.com/facultydesk/substitute-api/pkg/storage"
)

// @title Substitute Request API
// @version 1.0.0
// @description Faculty substitute-request lifecycle service
// @BasePath /
// @schemes http

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	requestRepo := repository.NewRequestRepository(db)
	userRepo := repository.NewUserRepository(db)
	tokenRepo := repository.NewDeviceTokenRepository(db)

	dispatcher := service.NewPushDispatcher(tokenRepo, redisClient, cfg.Notifications, logr)
	dispatcher.Start(context.Background())
	defer dispatcher.Stop()

	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, logr, cfg.JWT, cfg.Auth)
	userSvc := service.NewUserService(userRepo, tokenRepo, logr)

	requestOpts := []service.RequestServiceOption{service.WithLifecycleMetrics(metricsSvc)}
	if cfg.Export.ArchiveDir != "" {
		archive, err := storage.NewArchive(cfg.Export.ArchiveDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init export archive", "error", err)
		}
		if removed, err := archive.CleanupOlderThan(cfg.Export.ArchiveTTL); err != nil {
			logr.Sugar().Warnw("export archive cleanup failed", "error", err)
		} else if len(removed) > 0 {
			logr.Sugar().Infow("export archive cleaned", "removed", len(removed))
		}
		requestOpts = append(requestOpts, service.WithExportArchive(archive))
	}
	requestSvc := service.NewRequestService(requestRepo, dispatcher, logr, requestOpts...)

	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	requestHandler := handler.NewRequestHandler(requestSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group("/api")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
		}

		authed := api.Group("", middleware.JWT(authSvc))
		{
			users := authed.Group("/users")
			{
				users.GET("", userHandler.List)
				users.GET("/me", userHandler.Me)
				users.PUT("/me/push-token", userHandler.RegisterDeviceToken)
				users.GET("/:id", userHandler.Get)
			}

			requests := authed.Group("/requests")
			{
				requests.POST("", requestHandler.Create)
				requests.GET("", requestHandler.ListPending)
				requests.GET("/mine", requestHandler.ListMine)
				requests.GET("/mine/export", requestHandler.Export)
				requests.GET("/accepted", requestHandler.ListAccepted)
				requests.GET("/:id", requestHandler.Get)
				requests.PUT("/:id/accept", requestHandler.Accept)
				requests.PUT("/:id/cancel", requestHandler.Cancel)
				requests.PUT("/:id/complete", requestHandler.Complete)
				requests.DELETE("/:id", requestHandler.Delete)
			}
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
