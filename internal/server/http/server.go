package httpserver

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog/log"

	"blockd/internal/config"
)

// Server wraps Fiber app and configuration.
type Server struct {
	app *fiber.App
	cfg *config.FinalConfig
}

// New builds a Fiber server with common middlewares.
func New(cfg *config.FinalConfig, deps Deps) (*Server, error) {
	app := fiber.New(fiber.Config{
		AppName:               "blockd",
		ReadTimeout:           time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout:          time.Duration(cfg.Server.WriteTimeoutSec) * time.Second,
		IdleTimeout:           time.Duration(cfg.Server.IdleTimeoutSec) * time.Second,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(requestContext(deps.Logger))

	if err := RegisterRoutes(app, cfg, deps); err != nil {
		return nil, err
	}

	return &Server{app: app, cfg: cfg}, nil
}

// App exposes the Fiber app, mostly for tests.
func (s *Server) App() *fiber.App { return s.app }

// Start runs Fiber server and handles graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	addr := cfgAddress(s.cfg.Server.Address)
	log.Info().Str("addr", addr).Msg("listening")

	// start server in a goroutine
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.app.Listen(addr)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(s.cfg.Server.ShutdownTimeoutSec)*time.Second)
		defer cancel()
		return s.app.ShutdownWithContext(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func cfgAddress(addr string) string {
	if addr == "" {
		return ":" // default Fiber listens on 0.0.0.0
	}
	return addr
}
