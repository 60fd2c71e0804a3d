package httpsrv

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/farmkeep/farmkeep/auth"
	"github.com/farmkeep/farmkeep/farm"
)

// Server owns the fiber app and its route wiring.
type Server struct {
	app    *fiber.App
	addr   string
	logger auth.Logger
}

// Config carries everything the server needs wired in.
type Config struct {
	Addr      string
	Auther    *auth.Auther
	AuthRepo  auth.RepositoryManager
	Farm      *farm.Service
	Validator TokenValidator
	Logger    auth.Logger
}

// New builds the fiber app and mounts all routes.
func New(cfg Config) *Server {
	app := fiber.New(fiber.Config{
		AppName:       "farmkeep",
		UnescapePath:  true,
		StrictRouting: false,
	})

	app.Use(recover.New())
	app.Use(requestid.New())

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	requireAuth := RequireAuth(cfg.Validator, cfg.Logger)

	api := app.Group("/api/v1")

	NewAuthController(cfg.Auther, cfg.AuthRepo, cfg.Logger).Register(api, requireAuth)
	NewFarmController(cfg.Farm, cfg.Logger).Register(api, requireAuth)

	admin := api.Group("/admin", requireAuth, RequireRoles(cfg.Logger, auth.RoleAdmin))
	NewAdminController(cfg.Auther, cfg.AuthRepo, cfg.Logger).Register(admin)

	return &Server{
		app:    app,
		addr:   cfg.Addr,
		logger: cfg.Logger,
	}
}

// App exposes the underlying fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start blocks serving HTTP until Stop is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.addr)
	return s.app.Listen(s.addr)
}

// Stop drains in-flight requests and shuts the listener down.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.app.ShutdownWithContext(ctx)
}
