// Package httpapi exposes the REST API over Fiber.
package httpapi

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"

	"github.com/nabdhq/nabd/internal/chat"
	"github.com/nabdhq/nabd/internal/config"
	"github.com/nabdhq/nabd/internal/fileagent"
	"github.com/nabdhq/nabd/internal/health"
	"github.com/nabdhq/nabd/internal/metrics"
	"github.com/nabdhq/nabd/internal/objectstore"
	"github.com/nabdhq/nabd/internal/ratelimit"
	"github.com/nabdhq/nabd/internal/requestid"
	"github.com/nabdhq/nabd/internal/store"
)

// Limiter messages shown to rate-limited clients.
const (
	msgAuthLimited   = "عدد محاولات كثيرة جداً. حاول مرة أخرى بعد 15 دقيقة."
	msgChatLimited   = "عدد الرسائل كثير جداً. انتظر قليلاً قبل إرسال رسائل إضافية."
	msgUploadLimited = "عدد الملفات المرفوعة كثير جداً. حاول مرة أخرى لاحقاً."
)

// Limiters bundles the per-group rate limit stores. Each group keeps its own
// store so one group's traffic never counts against another.
type Limiters struct {
	API    *ratelimit.Store
	Auth   *ratelimit.Store
	Chat   *ratelimit.Store
	Upload *ratelimit.Store
}

// NewLimiters creates one store per route group.
func NewLimiters() *Limiters {
	return &Limiters{
		API:    ratelimit.NewStore(),
		Auth:   ratelimit.NewStore(),
		Chat:   ratelimit.NewStore(),
		Upload: ratelimit.NewStore(),
	}
}

// Start launches the background sweepers of every store.
func (l *Limiters) Start(ctx context.Context) {
	for _, s := range l.stores() {
		s.Start(ctx)
	}
}

// Stop stops the background sweepers.
func (l *Limiters) Stop() {
	for _, s := range l.stores() {
		s.Stop()
	}
}

func (l *Limiters) stores() []*ratelimit.Store {
	return []*ratelimit.Store{l.API, l.Auth, l.Chat, l.Upload}
}

// Server is the REST API Fiber application.
type Server struct {
	app      *fiber.App
	handlers *Handlers
	cfg      *config.Config
	logger   zerolog.Logger
}

// NewServer creates and configures the API server.
func NewServer(
	cfg *config.Config,
	st *store.Store,
	dispatcher *chat.Dispatcher,
	agent *fileagent.Agent,
	objects objectstore.Storage,
	checker *health.Checker,
	m *metrics.Metrics,
	limiters *Limiters,
	logger zerolog.Logger,
) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(logger),
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
	})

	handlers := NewHandlers(st, dispatcher, agent, objects, checker, m, logger)

	s := &Server{
		app:      app,
		handlers: handlers,
		cfg:      cfg,
		logger:   logger.With().Str("component", "httpapi").Logger(),
	}

	s.setupMiddleware(limiters, m, logger)
	s.setupRoutes(limiters, m)

	return s
}

func (s *Server) setupMiddleware(limiters *Limiters, m *metrics.Metrics, logger zerolog.Logger) {
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	// Request ID middleware
	s.app.Use(func(c *fiber.Ctx) error {
		_, reqID := requestid.New(c.Context())
		c.Set("X-Request-ID", reqID)
		c.Locals("request_id", reqID)
		return c.Next()
	})

	if s.cfg.CORSOrigins != "" {
		s.app.Use(cors.New(cors.Config{
			AllowOrigins: s.cfg.CORSOrigins,
			AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID, X-User-ID",
			AllowMethods: "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		}))
	}

	// Audit + request metrics
	s.app.Use(func(c *fiber.Ctx) error {
		path := c.Path()
		if path == "/healthz" || path == "/readyz" || path == "/metrics" {
			return c.Next()
		}

		start := time.Now()
		err := c.Next()

		route := c.Route().Path
		status := c.Response().StatusCode()
		if m != nil {
			m.RecordRequest(route, strconv.Itoa(status))
			m.ObserveRequest(route, time.Since(start).Seconds())
		}

		logger.Info().
			Str("method", c.Method()).
			Str("path", path).
			Int("status", status).
			Str("ip", c.IP()).
			Str("request_id", c.Locals("request_id").(string)).
			Dur("duration", time.Since(start)).
			Msg("api request")

		return err
	})
}

func (s *Server) setupRoutes(limiters *Limiters, m *metrics.Metrics) {
	h := s.handlers

	// Probes and metrics live outside /api and skip auth.
	s.app.Get("/healthz", h.Liveness)
	s.app.Get("/readyz", h.Readiness)
	if h.metrics != nil {
		s.app.Get("/metrics", adaptor.HTTPHandler(h.metrics.Handler()))
	}

	onReject := func(name string) func() {
		if m == nil {
			return nil
		}
		return func() { m.RecordRejection(name) }
	}

	api := s.app.Group("/api",
		NewAuthMiddleware(AuthConfig{Mode: s.cfg.AuthMode, JWTSecret: s.cfg.JWTSecret}, h.store, s.logger),
		ratelimit.Middleware(limiters.API, ratelimit.Config{
			Window:   s.cfg.APILimitWindow,
			Max:      s.cfg.APILimitMax,
			OnReject: onReject("api"),
		}),
	)

	authLimiter := ratelimit.Middleware(limiters.Auth, ratelimit.Config{
		Window:   s.cfg.AuthLimitWindow,
		Max:      s.cfg.AuthLimitMax,
		Message:  msgAuthLimited,
		OnReject: onReject("auth"),
	})
	chatLimiter := ratelimit.Middleware(limiters.Chat, ratelimit.Config{
		Window:   s.cfg.ChatLimitWindow,
		Max:      s.cfg.ChatLimitMax,
		Message:  msgChatLimited,
		OnReject: onReject("chat"),
	})
	uploadLimiter := ratelimit.Middleware(limiters.Upload, ratelimit.Config{
		Window:   s.cfg.UploadLimitWindow,
		Max:      s.cfg.UploadLimitMax,
		Message:  msgUploadLimited,
		OnReject: onReject("upload"),
	})

	api.Get("/auth/user", authLimiter, h.GetAuthUser)
	api.Get("/dashboard/stats", h.GetDashboardStats)

	api.Get("/projects", h.ListProjects)
	api.Post("/projects", h.CreateProject)
	api.Get("/projects/:id", h.GetProject)
	api.Patch("/projects/:id", h.UpdateProject)
	api.Delete("/projects/:id", h.DeleteProject)

	api.Get("/projects/:projectID/tasks", h.ListProjectTasks)
	api.Post("/projects/:projectID/tasks", h.CreateTask)
	api.Get("/tasks/recent", h.GetRecentTasks)
	api.Patch("/tasks/:id", h.UpdateTask)
	api.Delete("/tasks/:id", h.DeleteTask)

	api.Get("/files", h.ListFiles)
	api.Get("/files/search", h.SearchFiles)
	api.Get("/files/:id/analyze", h.AnalyzeFile)
	api.Delete("/files/:id", h.DeleteFile)
	api.Post("/files", uploadLimiter, h.CreateFile)
	api.Get("/projects/:projectID/files", h.ListProjectFiles)
	api.Post("/objects/upload", uploadLimiter, h.IssueUpload)
	api.Put("/objects/*", uploadLimiter, h.PutObject)

	api.Get("/messages", h.ListMessages)
	api.Get("/projects/:projectID/messages", h.ListProjectMessages)
	api.Post("/chat", chatLimiter, h.Chat)
	api.Post("/projects/:projectID/chat", chatLimiter, h.ProjectChat)

	api.Get("/tips", h.ListTips)
	api.Post("/tips", h.CreateTip)
	api.Get("/tips/:id", h.GetTip)
	api.Patch("/tips/:id", h.UpdateTip)
	api.Delete("/tips/:id", h.DeleteTip)
}

// Start starts the server. Blocks until stopped.
func (s *Server) Start() error {
	addr := ":" + strconv.Itoa(s.cfg.HTTPPort)
	s.logger.Info().Str("addr", addr).Msg("api server starting")
	return s.app.Listen(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	s.logger.Info().Msg("api server shutting down")
	return s.app.Shutdown()
}

// App returns the underlying Fiber app (useful for testing).
func (s *Server) App() *fiber.App {
	return s.app
}

// errorBody is the uniform error response shape.
type errorBody struct {
	Message string   `json:"message"`
	Errors  []string `json:"errors,omitempty"`
}

func errorJSON(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(errorBody{Message: message})
}

func validationError(c *fiber.Ctx, errs ...string) error {
	return c.Status(fiber.StatusBadRequest).JSON(errorBody{
		Message: "Invalid data",
		Errors:  errs,
	})
}

func errorHandler(logger zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
		}

		logger.Error().
			Err(err).
			Int("status", code).
			Str("path", c.Path()).
			Str("method", c.Method()).
			Msg("unhandled error")

		message := err.Error()
		if code == fiber.StatusInternalServerError {
			message = "Internal server error"
		}
		return errorJSON(c, code, message)
	}
}
