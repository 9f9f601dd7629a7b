package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"scala40-server/internal/config"
	"scala40-server/internal/server"
)

func gracefulShutdown(log *logrus.Entry, s *server.Server, httpServer *http.Server, done chan bool) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	log.Info("shutdown signal received, press Ctrl+C again to force")
	stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("http server forced to shutdown")
	}
	if err := s.Shutdown(ctx); err != nil {
		log.WithError(err).Error("server shutdown failed")
	}

	done <- true
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	log := logrus.NewEntry(cfg.Logger())

	s, err := server.New(context.Background(), cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to start")
	}
	httpServer := s.HTTPServer()

	done := make(chan bool, 1)
	go gracefulShutdown(log, s, httpServer, done)

	log.WithField("addr", httpServer.Addr).Info("listening")
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Error("http server error")
		os.Exit(1)
	}

	<-done
	log.Info("graceful shutdown complete")
}
