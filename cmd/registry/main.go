package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/armory-pm/armory/internal/api"
	"github.com/armory-pm/armory/internal/api/handlers"
	"github.com/armory-pm/armory/internal/auth"
	"github.com/armory-pm/armory/internal/config"
	"github.com/armory-pm/armory/internal/db"
	"github.com/armory-pm/armory/internal/logger"
	"github.com/armory-pm/armory/internal/registry"
)

// Version is set via ldflags at build time
var Version = "dev"

func main() {
	port := flag.Int("port", 0, "Port to run the registry on (overrides config)")
	flag.Parse()

	handlers.Version = Version

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	logger.Init(cfg.Log.Format, cfg.Log.Level)
	slog.Info("Starting armory registry", "version", Version)

	database, err := db.New(cfg.Database)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	slog.Info("Database initialized", "driver", cfg.Database.Driver)

	if err := db.Migrate(database); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database migrations completed")

	store, err := registry.NewStore(database, cfg.Storage.DataDir)
	if err != nil {
		slog.Error("Failed to initialize artifact store", "error", err)
		os.Exit(1)
	}
	slog.Info("Artifact store initialized", "data_dir", cfg.Storage.DataDir)

	router := api.NewRouter(cfg, store, auth.New(cfg.Auth))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		slog.Info("Registry listening", "address", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}
	slog.Info("Registry exited")
}
