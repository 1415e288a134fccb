// Package server contains the HTTP handlers for the blog API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"inkwell/internal/auth"
	"inkwell/internal/cache"
	"inkwell/internal/config"
	"inkwell/internal/database"
	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/observability"
	"inkwell/internal/repository"
	"inkwell/internal/service"
	"inkwell/internal/storage"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// The HTTP collectors live in the default registry, which accepts them once.
var httpMetrics = sync.OnceValue(func() *fiberprometheus.FiberPrometheus {
	return fiberprometheus.New("inkwell-api")
})

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	hasher         auth.PasswordHasher
	sessions       auth.SessionStore
	images         storage.ImageStore
	userService    *service.UserService
	authService    *service.AuthService
	postService    *service.PostService
	commentService *service.CommentService
}

// Option overrides a default collaborator of the server.
type Option func(*Server)

func WithPasswordHasher(h auth.PasswordHasher) Option {
	return func(s *Server) { s.hasher = h }
}

func WithImageStore(store storage.ImageStore) Option {
	return func(s *Server) { s.images = store }
}

func WithSessionStore(store auth.SessionStore) Option {
	return func(s *Server) { s.sessions = store }
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	redisClient := cache.InitRedis(cfg.RedisURL)
	if cfg.CachePostTTL > 0 {
		cache.PostTTL = cfg.CachePostTTL
	}

	return NewServerWithDeps(cfg, db, redisClient)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// redisClient may be nil, in which case sessions are kept in process memory.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, opts ...Option) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server: nil config")
	}
	if db == nil {
		return nil, errors.New("server: nil database")
	}

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: httpMetrics(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.hasher == nil {
		s.hasher = auth.NewBcryptHasher()
	}
	if s.images == nil {
		s.images = storage.NewLocalImageStore(cfg)
	}
	if s.sessions == nil {
		if redisClient != nil {
			s.sessions = auth.NewRedisSessionStore(redisClient)
		} else {
			observability.Logger.Warn("Redis unavailable, sessions are kept in memory and lost on restart")
			s.sessions = auth.NewMemorySessionStore()
		}
	}

	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	commentRepo := repository.NewCommentRepository(db)

	s.userService = service.NewUserService(userRepo, s.hasher)
	s.authService = service.NewAuthService(s.userService, auth.NewTokenIssuer(cfg.JWTSecret, cfg.SessionTTL), s.sessions)
	s.postService = service.NewPostService(postRepo, commentRepo, repository.NewTxManager(db), s.images)
	s.commentService = service.NewCommentService(commentRepo, postRepo)

	return s, nil
}

// App builds the Fiber application with middleware and routes installed.
func (s *Server) App() *fiber.App {
	maxUploadMB := s.config.ImageMaxUploadSizeMB
	if maxUploadMB <= 0 {
		maxUploadMB = storage.DefaultImageMaxUploadSizeMB
	}

	app := fiber.New(fiber.Config{
		AppName:      "inkwell",
		ErrorHandler: s.errorHandler,
		// Leave room for the multipart envelope around the image.
		BodyLimit:    (maxUploadMB + 1) * 1024 * 1024,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(s.promMiddleware.Middleware)
	}

	app.Use(helmet.New(helmet.Config{
		// Post images are loaded cross-origin by the frontend.
		CrossOriginResourcePolicy: "cross-origin",
	}))

	app.Use(middleware.StructuredLogger())

	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	app.Use(middleware.Authenticate(s.authService))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	if local, ok := s.images.(*storage.LocalImageStore); ok {
		app.Static(storage.MediaPrefix, local.Dir(), fiber.Static{MaxAge: 86400})
	}

	api := app.Group("/api")
	requireAuth := middleware.AuthRequired()

	authRoutes := api.Group("/auth")
	authRoutes.Post("/register", s.Register)
	authRoutes.Post("/signup", s.Register)
	authRoutes.Post("/login", s.Login)
	authRoutes.Post("/logout", s.Logout)
	authRoutes.Get("/me", requireAuth, s.Me)

	posts := api.Group("/posts")
	posts.Get("/", s.GetPosts)
	// Specific /:id/:resource routes before the generic /:slug route
	posts.Get("/:id/comments", s.GetComments)
	posts.Post("/:id/comments", requireAuth, s.CreateComment)
	posts.Get("/:slug", s.GetPost)
	posts.Post("/", requireAuth, s.CreatePost)
	posts.Put("/:id", requireAuth, s.UpdatePost)
	posts.Delete("/:id", requireAuth, s.DeletePost)

	comments := api.Group("/comments", requireAuth)
	comments.Put("/:id", s.UpdateComment)
	comments.Delete("/:id", s.DeleteComment)

	users := api.Group("/users")
	users.Get("/me", requireAuth, s.GetMyProfile)
	users.Put("/me", requireAuth, s.UpdateMyProfile)
	users.Get("/:id/posts", s.GetUserPosts)
	users.Get("/:id", s.GetUserProfile)
}

// Start builds the app and serves it on the configured port until Shutdown.
func (s *Server) Start() error {
	s.app = s.App()
	addr := ":" + s.config.Port
	observability.Logger.Info("Server starting", slog.String("addr", addr))
	return s.app.Listen(addr)
}

// Shutdown stops accepting requests and releases the database and Redis.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}
	if sqlDB, err := s.db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database close: %w", err))
		}
	}
	return errors.Join(errs...)
}

// errorHandler renders errors returned by handlers and middleware.
func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	if models.StatusOf(err) >= fiber.StatusInternalServerError {
		observability.Logger.ErrorContext(c.UserContext(), "request error",
			slog.String("path", c.Path()),
			slog.String("error", err.Error()),
		)
	}
	return models.RespondWithError(c, err)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests. Redis is optional, so
// only the database decides readiness.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}
