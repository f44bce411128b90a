// Package config loads the service configuration from the environment.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the chat synchronization service.
type Config struct {
	// Addr is the listen address for the HTTP/websocket server.
	Addr string

	// SurrealDB connection settings for the history store.
	DBUrl  string
	DBUser string
	DBPass string
	DBNs   string
	DBDb   string

	// JWTSecret signs and verifies the bearer tokens issued by the
	// dashboard's authentication service.
	JWTSecret string

	// HistoryLimit bounds the number of messages returned by a history
	// fetch.
	HistoryLimit int
}

// New loads configuration from environment variables, reading a .env file
// first when one exists. Missing required settings are fatal: the service
// cannot run without its store or token secret.
func New() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		Addr:         envOr("CHATSYNC_ADDR", ":8080"),
		DBUrl:        os.Getenv("SURREAL_URL"),
		DBUser:       os.Getenv("SURREAL_USER"),
		DBPass:       os.Getenv("SURREAL_PASS"),
		DBNs:         os.Getenv("SURREAL_NS"),
		DBDb:         os.Getenv("SURREAL_DB"),
		JWTSecret:    os.Getenv("CHATSYNC_JWT_SECRET"),
		HistoryLimit: envIntOr("CHATSYNC_HISTORY_LIMIT", 50),
	}

	if cfg.DBUrl == "" || cfg.DBNs == "" || cfg.DBDb == "" {
		log.Fatal("Required environment variables SURREAL_URL, SURREAL_NS, or SURREAL_DB are not set.")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("Required environment variable CHATSYNC_JWT_SECRET is not set.")
	}

	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatal(fmt.Sprintf("Invalid integer for %s: %q", key, v))
	}
	return n
}
