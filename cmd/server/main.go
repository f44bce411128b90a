package main

import (
	"context"
	"log"

	"github.com/admitdesk/chatsync/internal/config"
	"github.com/admitdesk/chatsync/internal/database"
	"github.com/admitdesk/chatsync/internal/history"
	"github.com/admitdesk/chatsync/internal/logging"
	"github.com/admitdesk/chatsync/internal/server"
)

func main() {
	logging.New()

	cfg := config.New()

	db, err := database.NewDB(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	s := server.New(cfg, history.NewSurrealStore(db))
	s.RegisterRoutes()
	s.Start()
}
