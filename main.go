package main

import (
	"context"
	"fmt"
	"os"

	gfshutdown "github.com/gelmium/graceful-shutdown"

	"productapi/internal/app"
	"productapi/internal/config"
	"productapi/internal/logger"
)

func main() {
	// --- Configuration ---
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// --- Wire store, cache, events and HTTP routes ---
	rt, err := app.Build(context.Background(), cfg, log)
	if err != nil {
		log.Fatal("failed to build application", "error", err)
	}

	// --- Start HTTP Server ---
	go func() {
		log.Info("starting server", "addr", cfg.AppPort, "env", cfg.AppEnv, "driver", cfg.Database.Driver)
		if err := rt.App.Listen(cfg.AppPort); err != nil {
			log.Error("server stopped", "error", err)
		}
	}()

	// Wait for SIGINT/SIGTERM, then drain requests and close backends.
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"productapi": func(ctx context.Context) error {
				log.Info("shutting down server")
				return rt.Shutdown(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Info("server stopped", "exit_code", exitCode)
	log.Sync()
	os.Exit(exitCode)
}
