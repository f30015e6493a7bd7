// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "murmur/docs" // swagger docs
	"murmur/internal/auth"
	"murmur/internal/cache"
	"murmur/internal/config"
	"murmur/internal/events"
	"murmur/internal/featureflags"
	"murmur/internal/middleware"
	"murmur/internal/models"
	"murmur/internal/notifications"
	"murmur/internal/repository"
	"murmur/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	globalRateLimit = 100
	bodyLimit       = 1 * 1024 * 1024
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc

	userRepo     repository.UserRepository
	hub          *notifications.Hub
	tokens       *auth.TokenManager
	sessions     *auth.SessionStore
	google       *auth.GoogleProvider
	featureFlags *featureflags.Manager
	events       events.Publisher

	authService         *service.AuthService
	userService         *service.UserService
	postService         *service.PostService
	messageService      *service.MessageService
	notificationService *service.NotificationService
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// redisClient may be nil, in which case realtime delivery, tickets and
// revocation stay local to the process. publisher may be nil.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, publisher events.Publisher) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if db == nil {
		return nil, errors.New("database is required")
	}
	if publisher == nil {
		publisher = events.Noop{}
	}

	store := cache.NewStore(redisClient)
	userRepo := repository.NewUserRepository(db, store)
	socialRepo := repository.NewSocialRepository(db)
	postRepo := repository.NewPostRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	convRepo := repository.NewConversationRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	flags := featureflags.NewManager(cfg.FeatureFlags)
	hub := notifications.NewHub(redisClient)

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("murmur-api"),
		userRepo:       userRepo,
		hub:            hub,
		tokens: auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience,
			time.Duration(cfg.JWTTTLHours)*time.Hour),
		sessions:     auth.NewSessionStore(redisClient),
		featureFlags: flags,
		events:       publisher,
	}
	if cfg.GoogleOAuthEnabled() {
		s.google = auth.NewGoogleProvider(auth.GoogleConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			UserInfoURL:  cfg.GoogleUserInfoURL,
		})
	}

	s.notificationService = service.NewNotificationService(notificationRepo, flags)
	s.authService = service.NewAuthService(userRepo)
	s.userService = service.NewUserService(userRepo, socialRepo, postRepo, s.notificationService, publisher)
	s.postService = service.NewPostService(postRepo, commentRepo, userRepo, hub, s.notificationService, publisher)
	s.messageService = service.NewMessageService(convRepo, userRepo, hub, publisher)

	return s, nil
}

// App returns the Fiber application with middleware and routes installed.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}
	app := fiber.New(fiber.Config{
		AppName:      "Murmur API",
		BodyLimit:    bodyLimit,
		ErrorHandler: s.errorHandler,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

// errorHandler answers errors that escaped a handler, such as unknown routes.
func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) && fe.Code < fiber.StatusInternalServerError {
		code := models.CodeValidation
		switch fe.Code {
		case fiber.StatusNotFound:
			code = models.CodeNotFound
		case fiber.StatusUnauthorized:
			code = models.CodeUnauthorized
		case fiber.StatusForbidden:
			code = models.CodeForbidden
		case fiber.StatusTooManyRequests:
			code = models.CodeRateLimited
		}
		return models.RespondWithError(c, fe.Code, &models.AppError{Code: code, Message: fe.Message})
	}
	middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", "error", err)
	return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	// Context Middleware to propagate Request ID and User ID
	app.Use(middleware.ContextMiddleware())

	app.Use(middleware.TracingMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers
	app.Use(helmet.New())

	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so error responses still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: origins != "*",
		MaxAge:           86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        globalRateLimit,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
				Error: "Too many requests, please try again later.",
				Code:  models.CodeRateLimited,
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api")
	api.Get("/swagger/*", swagger.HandlerDefault)

	authGroup := api.Group("/auth")
	authGroup.Post("/signup", middleware.RateLimit(s.redis, 5, 10*time.Minute, "signup", middleware.FailOpen), s.Signup)
	authGroup.Post("/login", middleware.RateLimit(s.redis, 10, 5*time.Minute, "login", middleware.FailOpen), s.Login)
	authGroup.Get("/google", s.GoogleLogin)
	authGroup.Get("/google/callback", s.GoogleCallback)
	authGroup.Get("/me", s.AuthRequired(), s.Me)
	authGroup.Post("/logout", s.AuthRequired(), s.Logout)

	api.Get("/ws", s.WebSocketAuth(), s.RequireUpgrade, s.WebSocketHandler())
	api.Post("/ws/ticket", s.AuthRequired(), s.IssueWebSocketTicket)
	api.Get("/features", s.AuthRequired(), s.GetFeatureFlags)

	// Auth is scoped per group; unknown /api paths reach the 404 handler.
	users := api.Group("/users", s.AuthRequired())
	users.Get("/search", s.SearchUsers)
	users.Get("/me/bookmarks", s.ListBookmarks)
	users.Put("/me", s.UpdateProfile)
	users.Get("/:id", s.GetUser)
	users.Get("/:id/posts", s.GetUserPosts)
	users.Post("/:id/follow", s.ToggleFollow)
	users.Put("/:id/follow", s.Follow)
	users.Delete("/:id/follow", s.Unfollow)

	posts := api.Group("/posts", s.AuthRequired())
	posts.Get("/", s.ListPosts)
	posts.Post("/", middleware.RateLimit(s.redis, 10, time.Minute, "create_post", middleware.FailOpen), s.CreatePost)
	posts.Get("/:id", s.GetPost)
	posts.Delete("/:id", s.DeletePost)
	posts.Post("/:id/like", s.LikePost)
	posts.Post("/:id/dislike", s.DislikePost)
	posts.Post("/:id/comments", middleware.RateLimit(s.redis, 30, time.Minute, "comment", middleware.FailOpen), s.AddComment)
	posts.Post("/:id/bookmark", s.ToggleBookmark)

	messages := api.Group("/messages", s.AuthRequired())
	messages.Get("/conversations", s.ListConversations)
	messages.Get("/:userId", s.GetMessages)
	messages.Post("/:userId", middleware.RateLimit(s.redis, 60, time.Minute, "send_message", middleware.FailOpen), s.SendMessage)
	messages.Post("/:userId/seen", s.MarkMessagesSeen)

	inbox := api.Group("/notifications", s.AuthRequired())
	inbox.Get("/", s.ListNotifications)
	inbox.Post("/read-all", s.MarkAllNotificationsRead)
	inbox.Post("/:id/read", s.MarkNotificationRead)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success": true,
		"status":  "up",
		"time":    time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if sqlDB, err := s.db.DB(); err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	// Redis is optional; without it the instance runs standalone.
	redisStatus := "disabled"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overall := "healthy"
	if dbStatus != "healthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overall = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"success": status == fiber.StatusOK,
		"status":  overall,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// bearerToken extracts the token of an "Authorization: Bearer" header.
func bearerToken(c *fiber.Ctx) string {
	scheme, token, ok := strings.Cut(c.Get(fiber.HeaderAuthorization), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// AuthRequired returns the authentication middleware. Only a bearer token
// in the Authorization header is accepted.
func (s *Server) AuthRequired() fiber.Handler {
	return s.authenticate(false)
}

// WebSocketAuth is AuthRequired for the upgrade route. Browsers cannot set
// headers there, so it also accepts a one-time ticket or a token in the
// query string.
func (s *Server) WebSocketAuth() fiber.Handler {
	return s.authenticate(true)
}

func (s *Server) authenticate(allowQuery bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()

		if ticket := c.Query("ticket"); ticket != "" && allowQuery {
			userID, err := s.sessions.RedeemTicket(ctx, ticket)
			if err != nil {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Invalid or expired WebSocket ticket"))
			}
			s.setUser(c, userID, auth.Claims{UserID: userID})
			return c.Next()
		}

		tokenString := bearerToken(c)
		if tokenString == "" && allowQuery {
			tokenString = c.Query("token")
		}
		if tokenString == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}

		claims, err := s.tokens.Parse(tokenString)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid or expired token"))
		}

		revoked, err := s.sessions.IsRevoked(ctx, claims.JTI)
		if err != nil {
			middleware.Logger.WarnContext(ctx, "revocation check failed", "error", err)
		}
		if revoked {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Token has been revoked"))
		}

		s.setUser(c, claims.UserID, claims)
		return c.Next()
	}
}

func (s *Server) setUser(c *fiber.Ctx, userID uint, claims auth.Claims) {
	c.Locals("userID", userID)
	c.Locals("claims", claims)
	ctx := context.WithValue(c.UserContext(), middleware.UserIDKey, userID)
	c.SetUserContext(ctx)
}

// Start builds the app, wires realtime delivery and listens on the configured port.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	app := s.App()
	if err := s.hub.StartWiring(s.shutdownCtx); err != nil {
		return fmt.Errorf("start %s wiring: %w", s.hub.Name(), err)
	}

	middleware.Logger.Info("Server starting", "port", s.config.Port)
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	var errs []error
	if err := s.hub.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown %s: %w", s.hub.Name(), err))
	}
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown http: %w", err))
		}
	}

	middleware.Logger.Info("Server shutdown complete")
	return errors.Join(errs...)
}
