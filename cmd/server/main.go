// Package main is the entry point for the datachat gateway.
//
// The main package stays minimal — its job is to:
// 1. Read configuration from the environment
// 2. Create the logger
// 3. Hand off to internal/server
//
// All actual logic lives in imported packages; this separation keeps the app
// testable and its components reusable.
package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/sakif/datachat/internal/server"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(),
	}))

	port := 8080
	if portStr := os.Getenv("PORT"); portStr != "" {
		var err error
		port, err = strconv.Atoi(portStr)
		if err != nil {
			logger.Error("invalid PORT value", slog.String("value", portStr))
			os.Exit(1)
		}
	}

	dbPath := envOr("DB_PATH", "data/datachat.db")
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		logger.Error("failed to create database directory",
			slog.String("dir", filepath.Dir(dbPath)),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	// FAIL FAST ON THE SIGNING SECRET:
	// With no secret there is no way to verify session tokens, and every
	// protected endpoint would be either wide open or dead. Refusing to start
	// is the only safe behaviour. Generate one with:
	//   JWT_SECRET=$(openssl rand -hex 32)
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		logger.Error("JWT_SECRET is not set — refusing to start")
		os.Exit(1)
	}

	cfg := server.Config{
		Port:        port,
		DBPath:      dbPath,
		UploadDir:   envOr("UPLOAD_DIR", "data/uploads"),
		JWTSecret:   jwtSecret,
		AnalysisURL: envOr("ANALYSIS_URL", "http://localhost:8001"),
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until shutdown (Ctrl+C or SIGTERM).
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func logLevel() slog.Level {
	switch os.Getenv("LOG_LEVEL") {
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "info":
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}
