package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/eternalApril/crescent/internal/config"
	"github.com/eternalApril/crescent/internal/logger"
	"github.com/eternalApril/crescent/internal/metrics"
	"github.com/eternalApril/crescent/internal/server"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load(".")
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer log.Sync() //nolint:errcheck

	log.Info("Crescent starting",
		zap.String("version", server.Version),
		zap.String("address", cfg.Server.Address()),
		zap.Int64("max_connections", cfg.Server.MaxConnections),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	engine := server.NewEngine(log, m)
	srv := server.New(cfg, engine, log, m)

	listener, err := server.Listen(ctx, cfg.Server.Address())
	if err != nil {
		log.Error("listener error", zap.Error(err))
		return
	}
	log.Info("listening on", zap.String("address", listener.Addr().String()))

	if cfg.Metrics.Enabled {
		go func() {
			if err := m.Serve(ctx, cfg.Metrics.Address, log); err != nil {
				log.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ctx, listener)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			log.Error("serve failed", zap.Error(err))
		}
	}

	log.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("Shutdown timed out, forcing exit", zap.Duration("timeout", cfg.Server.ShutdownTimeout))
	} else {
		log.Info("All connections closed gracefully")
	}

	log.Info("Crescent stopped")
}
