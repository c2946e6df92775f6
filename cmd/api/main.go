package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/learnbridge/learnbridge-api/api/swagger"
	"github.com/learnbridge/learnbridge-api/internal/handler"
	"github.com/learnbridge/learnbridge-api/internal/middleware"
	"github.com/learnbridge/learnbridge-api/internal/models"
	"github.com/learnbridge/learnbridge-api/internal/repository"
	"github.com/learnbridge/learnbridge-api/internal/service"
	"github.com/learnbridge/learnbridge-api/pkg/cache"
	"github.com/learnbridge/learnbridge-api/pkg/config"
	"github.com/learnbridge/learnbridge-api/pkg/database"
	"github.com/learnbridge/learnbridge-api/pkg/logger"
	corsmiddleware "github.com/learnbridge/learnbridge-api/pkg/middleware/cors"
	reqidmiddleware "github.com/learnbridge/learnbridge-api/pkg/middleware/requestid"
	"github.com/learnbridge/learnbridge-api/pkg/storage"
)

// @title LearnBridge API
// @version 1.0.0
// @description Learning-resource sharing platform with a submission review workflow
// @BasePath /api
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	store, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Fatal("failed to init upload storage", zap.Error(err))
	}

	metrics := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		} else {
			cacheRepo = repository.NewCacheRepository(redisClient, logr)
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, logr, cfg.Cache.TTL, cfg.Cache.Enabled)

	userRepo := repository.NewUserRepository(db)
	moduleRepo := repository.NewModuleRepository(db)
	resourceRepo := repository.NewResourceRepository(db)

	gate := service.NewUploadGate(cfg.Uploads.MaxFileSizeBytes, cfg.Uploads.AllowedMIMEs)
	authSvc := service.NewAuthService(userRepo, cfg.JWT, cfg.Admin, logr)
	userSvc := service.NewUserService(userRepo, logr)
	resourceSvc := service.NewResourceService(resourceRepo, store, gate, cacheSvc, metrics, logr)
	moduleSvc := service.NewModuleService(moduleRepo, resourceRepo, logr)

	authHandler := handler.NewAuthHandler(authSvc, logr)
	adminHandler := handler.NewAdminHandler(authSvc, userSvc, logr)
	moduleHandler := handler.NewModuleHandler(moduleSvc, logr)
	resourceHandler := handler.NewResourceHandler(resourceSvc, logr)
	managementHandler := handler.NewManagementHandler(resourceSvc, logr)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authn := middleware.JWTAuth(authSvc)
	adminOnly := middleware.RequireRoles(models.RoleAdmin)
	students := middleware.RequireRoles(models.RoleStudent)
	managers := middleware.RequireRoles(models.RoleResourceManager, models.RoleAdmin)
	reviewers := middleware.RequireRoles(models.RoleResourceManager, models.RoleAdmin, models.RoleCoordinator)

	api := r.Group(cfg.APIPrefix)
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/logout", authn, authHandler.Logout)
			auth.GET("/profile", authn, authHandler.Profile)
			auth.PUT("/profile", authn, authHandler.UpdateProfile)
		}

		admin := api.Group("/admin")
		{
			admin.POST("/login", adminHandler.Login)
			admin.POST("/create-user", authn, adminOnly, adminHandler.CreateUser)
			admin.GET("/users", authn, adminOnly, adminHandler.ListUsers)
			admin.DELETE("/users/:id", authn, adminOnly, adminHandler.DeleteUser)
		}

		modules := api.Group("/modules")
		{
			modules.GET("", moduleHandler.List)
			modules.GET("/:id", moduleHandler.Get)
			modules.POST("", authn, managers, moduleHandler.Create)
			modules.PUT("/:id", authn, managers, moduleHandler.Update)
			modules.DELETE("/:id", authn, managers, moduleHandler.Delete)
		}

		resources := api.Group("/resources")
		{
			resources.GET("", resourceHandler.List)
			resources.GET("/my-resources", authn, resourceHandler.MyResources)
			resources.POST("/upload", authn, resourceHandler.Upload)
			resources.GET("/:id", resourceHandler.Get)
			resources.PUT("/:id", authn, resourceHandler.Update)
			resources.DELETE("/:id", authn, resourceHandler.Delete)
			resources.GET("/:id/download", resourceHandler.Download)
		}

		management := api.Group("/management")
		{
			management.POST("/submit", authn, students, managementHandler.Submit)
			management.GET("/approved", managementHandler.Approved)
			management.GET("/pending", authn, reviewers, managementHandler.Pending)
			management.GET("/stats", authn, reviewers, managementHandler.Stats)
			management.GET("/stats/export", authn, managers, managementHandler.ExportStats)
			management.PUT("/:id/approve", authn, managers, managementHandler.Approve)
			management.PUT("/:id/reject", authn, managers, managementHandler.Reject)
			management.PUT("/:id", authn, managers, managementHandler.Update)
			management.DELETE("/:id", authn, managers, managementHandler.Delete)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Info("server starting", zap.String("addr", addr), zap.String("env", cfg.Env))
	if err := r.Run(addr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}
