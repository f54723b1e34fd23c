package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/campushub/enrollment-api/api/swagger"
	"github.com/campushub/enrollment-api/internal/handler"
	"github.com/campushub/enrollment-api/internal/middleware"
	"github.com/campushub/enrollment-api/internal/models"
	"github.com/campushub/enrollment-api/internal/repository"
	"github.com/campushub/enrollment-api/internal/service"
	"github.com/campushub/enrollment-api/pkg/cache"
	"github.com/campushub/enrollment-api/pkg/config"
	"github.com/campushub/enrollment-api/pkg/database"
	"github.com/campushub/enrollment-api/pkg/logger"
	corsmiddleware "github.com/campushub/enrollment-api/pkg/middleware/cors"
	reqidmiddleware "github.com/campushub/enrollment-api/pkg/middleware/requestid"
)

// @title Enrollment API
// @version 1.0.0
// @description Course catalog and enrollment lifecycle backend
// @BasePath /
// @schemes http
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, catalog cache disabled", "error", err)
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsService := service.NewMetricsService()
	auditService := service.NewAuditService(auditRepo, logr, service.AuditConfig{
		Workers:    cfg.Audit.WorkerConcurrency,
		MaxRetries: cfg.Audit.WorkerRetries,
	})
	authService := service.NewAuthService(userRepo, auditService, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "enrollment-api",
	})
	userService := service.NewUserService(userRepo, validate, logr)
	courseService := service.NewCourseService(courseRepo, enrollmentRepo, cacheRepo, metricsService, validate, logr, cfg.Enrollment.CatalogCacheTTL)
	enrollmentService := service.NewEnrollmentService(enrollmentRepo, courseRepo, userRepo, auditService, metricsService, logr, cfg.Enrollment.MinimumAttendance)
	statusJob := service.NewEnrollmentStatusJob(enrollmentService, logr, cfg.Enrollment.JobInterval)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	auditService.Start(ctx)
	defer auditService.Stop()

	if cfg.Enrollment.JobEnabled {
		statusJob.Start(ctx)
		defer statusJob.Stop()
	}

	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(userService)
	courseHandler := handler.NewCourseHandler(courseService)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentService)
	metricsHandler := handler.NewMetricsHandler(metricsService)
	auditHandler := handler.NewAuditHandler(auditService)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authService), authHandler.Logout)
	}

	users := api.Group("/users", middleware.JWT(authService))
	{
		users.GET("", middleware.RequireRoles(models.RoleAdmin), userHandler.List)
		users.GET("/:id", middleware.RBAC(string(models.RoleAdmin), "SELF"), userHandler.Get)
		users.PATCH("/:id", middleware.RBAC(string(models.RoleAdmin), "SELF"), userHandler.Update)
	}

	courses := api.Group("/courses", middleware.JWT(authService))
	{
		courses.GET("", courseHandler.List)
		courses.GET("/:id", courseHandler.Get)
		courses.POST("", middleware.RequireRoles(models.RoleTeacher), courseHandler.Create)
		courses.PATCH("/:id", middleware.RequireRoles(models.RoleTeacher), courseHandler.Update)
		courses.DELETE("/:id", middleware.RequireRoles(models.RoleTeacher, models.RoleAdmin), courseHandler.Delete)
	}

	api.GET("/audit", middleware.JWT(authService), middleware.RequireRoles(models.RoleAdmin), auditHandler.List)

	enrollments := api.Group("/enrollments", middleware.JWT(authService))
	{
		enrollments.POST("", middleware.RequireRoles(models.RoleStudent), enrollmentHandler.Enroll)
		enrollments.GET("", enrollmentHandler.List)
		enrollments.GET("/schedule", middleware.RequireRoles(models.RoleStudent), enrollmentHandler.Schedule)
		enrollments.GET("/transcript", middleware.RequireRoles(models.RoleStudent), enrollmentHandler.Transcript)
		enrollments.GET("/:id", enrollmentHandler.Get)
		enrollments.PATCH("/:id/status", middleware.RequireRoles(models.RoleTeacher, models.RoleStudent), enrollmentHandler.Decide)
		enrollments.PATCH("/:id/grade", middleware.RequireRoles(models.RoleTeacher), enrollmentHandler.Grade)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
