package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// Start runs the HTTP server until an interrupt or terminate signal
// arrives, then shuts everything down gracefully.
func (s *Server) Start() {
	busCtx, cancel := context.WithCancel(context.Background())
	s.cancelBus = cancel
	if err := s.activity.Start(busCtx); err != nil {
		s.E.Logger.Fatalf("starting activity subscriber: %v", err)
	}

	go func() {
		if err := s.E.Start(s.Cfg.Addr); err != nil && err != http.ErrServerClosed {
			s.E.Logger.Fatalf("shutting down the server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	s.Shutdown(ctx)
}

// Shutdown closes connections, stops the bus, and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) {
	s.Hub.Stop()
	if s.cancelBus != nil {
		s.cancelBus()
	}
	s.Bus.Close()
	if s.stopTracing != nil {
		s.stopTracing()
	}
	if err := s.E.Shutdown(ctx); err != nil {
		s.E.Logger.Error(err)
	}
}
