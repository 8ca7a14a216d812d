package health

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

// Server exposes GET /health for the registry
type Server struct {
	app      *fiber.App
	registry *Registry
}

// NewServer creates a health server for registry
func NewServer(registry *Registry) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		AppName:               "bugbot",
	})
	s := &Server{app: app, registry: registry}
	s.Register(app)
	return s
}

// Register mounts the health routes on r
func (s *Server) Register(r fiber.Router) {
	r.Get("/health", s.health)
}

func (s *Server) health(c *fiber.Ctx) error {
	report := s.registry.Check(c.UserContext())
	if !report.Healthy() {
		c.Status(fiber.StatusServiceUnavailable)
	}
	return c.JSON(report)
}

// App returns the underlying fiber app
func (s *Server) App() *fiber.App {
	return s.app
}

// Start listens on addr until Shutdown is called
func (s *Server) Start(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown stops the server, waiting for in-flight requests until ctx ends
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
