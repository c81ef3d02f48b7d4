package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mart1ny/rag-assistant/internal/app"
	"github.com/mart1ny/rag-assistant/internal/handlers"
	"github.com/mart1ny/rag-assistant/internal/platform/logger"
	"github.com/mart1ny/rag-assistant/internal/server"
)

func main() {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	application, err := app.New(ctx, log)
	cancel()
	if err != nil {
		log.Fatal("startup failed", "error", err)
	}
	defer application.Close(context.Background())

	if err := application.Postgres.AutoMigrateAll(); err != nil {
		log.Fatal("postgres auto migration failed", "error", err)
	}

	chatHandler := handlers.NewChatHandler(application.Pipeline, log)
	router := server.NewRouter(server.RouterConfig{
		ChatHandler:  chatHandler,
		AllowOrigins: application.Config.AllowOrigins,
	})

	srv := &http.Server{
		Addr:    application.Config.HTTPAddr,
		Handler: router,
	}

	go func() {
		log.Info("http server listening", "addr", application.Config.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}
