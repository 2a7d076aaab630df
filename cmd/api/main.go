// Package main is the entry point for the rate proxy API role.
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

	"github.com/petitolabs/forex-proxy/internal/cache"
	"github.com/petitolabs/forex-proxy/internal/config"
	"github.com/petitolabs/forex-proxy/internal/logger"
	"github.com/petitolabs/forex-proxy/internal/rates"
	"github.com/petitolabs/forex-proxy/internal/server"
	"github.com/petitolabs/forex-proxy/internal/store"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("forex-proxy-api %s (commit: %s, built: %s)\n", version, commit, date)
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to load config")
	}

	logger.SetLevel(cfg.LogLevel)
	if cfg.LogFormat == "json" {
		logger.SetJSON()
	}

	st, err := store.Open(cfg.ValkeyURI)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to open store")
	}
	defer func() { _ = st.Close() }()

	if err := st.Ping(ctx); err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to reach store")
	}

	sub := st.SubscribeRatesUpdated(ctx)
	defer func() { _ = sub.Close() }()

	snapshot := cache.New(st)
	syncDone := make(chan struct{})
	go func() {
		defer close(syncDone)
		snapshot.Run(ctx, sub.Events())
	}()

	svc := rates.NewService(rates.NewEngine(snapshot))
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.New(svc, cfg.HTTPTimeout),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		logger.Log.Info().Msg("Shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Log.Error().Err(err).Msg("HTTP shutdown failed")
		}

		// Stop the sync job and release the subscription before the
		// deferred store close tears the client down.
		cancel()
		<-syncDone
	}()

	logger.Log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Log.Fatal().Err(err).Msg("HTTP server failed")
	}
	<-syncDone
}
