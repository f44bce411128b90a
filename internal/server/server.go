// Package server wires the chat subsystem together: the echo HTTP server,
// the connection hub, the history store, and the event bus.
package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/admitdesk/chatsync/internal/auth"
	"github.com/admitdesk/chatsync/internal/config"
	"github.com/admitdesk/chatsync/internal/history"
	"github.com/admitdesk/chatsync/internal/hub"
	"github.com/admitdesk/chatsync/internal/pubsub"
)

// Server holds the dependencies for the chat service.
type Server struct {
	E        *echo.Echo
	Cfg      *config.Config
	Hub      *hub.Hub
	Bus      *pubsub.Bus
	Verifier auth.Verifier

	store    history.Store
	activity *hub.ActivityLogger

	// cancelBus stops the bus subscribers on shutdown.
	cancelBus context.CancelFunc
	// stopTracing flushes the trace exporter on shutdown.
	stopTracing func()
}

// customValidator adapts go-playground/validator to echo's Validator.
type customValidator struct {
	validate *validator.Validate
}

func (cv *customValidator) Validate(i interface{}) error {
	return cv.validate.Struct(i)
}

// New assembles a server around the given history store. The store is
// injected so tests can run against an in-memory one.
func New(cfg *config.Config, store history.Store) *Server {
	tracer, stopTracing, err := pubsub.SetupOTel(context.Background(), pubsub.LoadTracingConfigFromEnv())
	if err != nil {
		slog.Warn("tracing setup failed, continuing without it", "error", err)
		tracer, stopTracing, _ = pubsub.SetupOTel(context.Background(), pubsub.TracingConfig{})
	}

	bus := pubsub.NewTracedBus(tracer)
	h := hub.New(store, bus)
	verifier := auth.NewAuthenticator(cfg.JWTSecret, "chatsync", 24*time.Hour)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Validator = &customValidator{validate: validator.New()}

	return &Server{
		E:           e,
		Cfg:         cfg,
		Hub:         h,
		Bus:         bus,
		Verifier:    verifier,
		store:       store,
		activity:    hub.NewActivityLogger(bus),
		stopTracing: stopTracing,
	}
}
