package main

import (
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/MaryemElyazghi/School-Management-System/api/swagger"
	"github.com/MaryemElyazghi/School-Management-System/internal/handler"
	"github.com/MaryemElyazghi/School-Management-System/internal/middleware"
	"github.com/MaryemElyazghi/School-Management-System/internal/models"
	"github.com/MaryemElyazghi/School-Management-System/internal/repository"
	"github.com/MaryemElyazghi/School-Management-System/internal/service"
	"github.com/MaryemElyazghi/School-Management-System/pkg/cache"
	"github.com/MaryemElyazghi/School-Management-System/pkg/config"
	"github.com/MaryemElyazghi/School-Management-System/pkg/database"
	"github.com/MaryemElyazghi/School-Management-System/pkg/logger"
	corsmiddleware "github.com/MaryemElyazghi/School-Management-System/pkg/middleware/cors"
	reqidmiddleware "github.com/MaryemElyazghi/School-Management-System/pkg/middleware/requestid"
)

// @title School Management API
// @version 1.0.0
// @description Departments, students, teachers, courses, enrollments and grading
// @BasePath /api/v1
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect database", "error", err)
	}
	defer db.Close()

	// Redis is optional: a nil store degrades to uncached live counts.
	var statsStore *cache.Store
	if redisClient, err := cache.NewRedis(cfg.Redis); err != nil {
		logr.Sugar().Warnw("redis unavailable, stats caching disabled", "error", err)
	} else {
		statsStore = cache.NewStore(redisClient)
		defer redisClient.Close()
	}

	validate := validator.New()

	departmentRepo := repository.NewDepartmentRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	dossierRepo := repository.NewDossierRepository(db)
	userRepo := repository.NewUserRepository(db)

	metricsSvc := service.NewMetricsService()
	departmentSvc := service.NewDepartmentService(departmentRepo, studentRepo, courseRepo, teacherRepo, statsStore, cfg.Stats.CacheTTL, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, departmentRepo, validate, logr)
	teacherSvc := service.NewTeacherService(teacherRepo, departmentRepo, courseRepo, validate, logr)
	courseSvc := service.NewCourseService(courseRepo, departmentRepo, teacherRepo, studentRepo, enrollmentRepo, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, studentRepo, courseRepo, logr)
	transcriptSvc := service.NewTranscriptService(studentRepo, enrollmentRepo, nil, nil, logr)
	dossierSvc := service.NewDossierService(dossierRepo, logr)
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		Secret:             cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(userRepo, studentRepo, teacherRepo, validate, logr)

	authHandler := handler.NewAuthHandler(authSvc, userSvc)
	userHandler := handler.NewUserHandler(userSvc)
	departmentHandler := handler.NewDepartmentHandler(departmentSvc, studentSvc, courseSvc)
	studentHandler := handler.NewStudentHandler(studentSvc, courseSvc, enrollmentSvc, transcriptSvc)
	teacherHandler := handler.NewTeacherHandler(teacherSvc)
	courseHandler := handler.NewCourseHandler(courseSvc, enrollmentSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc, metricsSvc)
	dossierHandler := handler.NewDossierHandler(dossierSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/refresh", authHandler.Refresh)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))

	authed.POST("/auth/logout", authHandler.Logout)
	authed.PUT("/auth/password", authHandler.ChangePassword)
	authed.GET("/auth/me", authHandler.Me)

	admin := middleware.RequireRoles(models.RoleAdmin)
	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher)
	anyRole := middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher, models.RoleStudent)

	authed.GET("/users", admin, userHandler.List)
	authed.POST("/users", admin, userHandler.Register)
	authed.GET("/users/:id", middleware.RBAC("ADMIN", "SELF"), userHandler.Get)
	authed.PUT("/users/:id", admin, userHandler.Update)
	authed.PUT("/users/:id/enabled", admin, userHandler.SetEnabled)

	authed.GET("/departments", anyRole, departmentHandler.List)
	authed.GET("/departments/:id", anyRole, departmentHandler.Get)
	authed.GET("/departments/:id/stats", staff, departmentHandler.Stats)
	authed.GET("/departments/:id/students", staff, departmentHandler.Students)
	authed.GET("/departments/:id/courses", anyRole, departmentHandler.Courses)
	authed.POST("/departments", admin, departmentHandler.Create)
	authed.PUT("/departments/:id", admin, departmentHandler.Update)
	authed.DELETE("/departments/:id", admin, departmentHandler.Delete)

	authed.GET("/students", staff, studentHandler.List)
	authed.GET("/students/me", anyRole, studentHandler.Me)
	authed.GET("/students/:id", staff, studentHandler.Get)
	authed.GET("/students/:id/dossier", staff, dossierHandler.ByStudent)
	authed.GET("/students/:id/enrollments", staff, studentHandler.Enrollments)
	authed.GET("/students/:id/available-courses", staff, studentHandler.AvailableCourses)
	authed.POST("/students", admin, studentHandler.Create)
	authed.PUT("/students/:id", admin, studentHandler.Update)
	authed.DELETE("/students/:id", admin, studentHandler.Delete)
	if cfg.Transcripts.Enabled {
		authed.GET("/students/:id/transcript", staff, studentHandler.Transcript)
	}

	authed.GET("/dossiers", admin, dossierHandler.List)

	authed.GET("/teachers", staff, teacherHandler.List)
	authed.GET("/teachers/:id", staff, teacherHandler.Get)
	authed.POST("/teachers", admin, teacherHandler.Create)
	authed.PUT("/teachers/:id", admin, teacherHandler.Update)
	authed.DELETE("/teachers/:id", admin, teacherHandler.Delete)

	authed.GET("/courses", anyRole, courseHandler.List)
	authed.GET("/courses/:id", anyRole, courseHandler.Get)
	authed.GET("/courses/:id/enrollments", staff, courseHandler.Enrollments)
	authed.POST("/courses", admin, courseHandler.Create)
	authed.PUT("/courses/:id", admin, courseHandler.Update)
	authed.DELETE("/courses/:id", admin, courseHandler.Delete)

	authed.POST("/enrollments", staff, enrollmentHandler.Create)
	authed.GET("/enrollments/:id", staff, enrollmentHandler.Get)
	authed.POST("/enrollments/:id/drop", staff, enrollmentHandler.Drop)
	authed.POST("/enrollments/:id/grade", staff, enrollmentHandler.AssignGrade)
	authed.PUT("/enrollments/:id/grade", staff, enrollmentHandler.UpdateGrade)
	authed.PUT("/enrollments/:id/status", admin, enrollmentHandler.UpdateStatus)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
