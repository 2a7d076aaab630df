// Package main is the entry point for the one-shot refresher role.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/petitolabs/forex-proxy/internal/config"
	"github.com/petitolabs/forex-proxy/internal/logger"
	"github.com/petitolabs/forex-proxy/internal/oneframe"
	"github.com/petitolabs/forex-proxy/internal/refresher"
	"github.com/petitolabs/forex-proxy/internal/store"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("forex-proxy-refresher %s (commit: %s, built: %s)\n", version, commit, date)
		return 0
	}
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to load config")
		return 1
	}

	logger.SetLevel(cfg.LogLevel)
	if cfg.LogFormat == "json" {
		logger.SetJSON()
	}

	st, err := store.Open(cfg.ValkeyURI)
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to open store")
		return 1
	}
	defer func() { _ = st.Close() }()

	client := oneframe.NewClient(cfg.OneFrameBaseURL, cfg.OneFrameToken, cfg.OneFrameTimeout, cfg.OneFrameMaxRetries)

	count, err := refresher.New(client, st).Refresh(ctx)
	if err != nil {
		return 1
	}

	logger.Log.Info().Int("rates", count).Msg("Refresh complete")
	return 0
}
