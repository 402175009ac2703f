package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/FCTostin/ads.txt-app-ads.txt-Checker/internal/badge"
	"github.com/FCTostin/ads.txt-app-ads.txt-Checker/internal/config"
	"github.com/FCTostin/ads.txt-app-ads.txt-Checker/internal/engine"
	"github.com/FCTostin/ads.txt-app-ads.txt-Checker/internal/extractor"
	"github.com/FCTostin/ads.txt-app-ads.txt-Checker/internal/kvstore"
	"github.com/FCTostin/ads.txt-app-ads.txt-Checker/internal/registry"
	"github.com/FCTostin/ads.txt-app-ads.txt-Checker/internal/requester"
	"github.com/FCTostin/ads.txt-app-ads.txt-Checker/internal/scheduler"
	"github.com/FCTostin/ads.txt-app-ads.txt-Checker/internal/session"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the scan engine, reacting to settings changes until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadSettings()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		var kv kvstore.Store
		if cfg.Redis.Enabled {
			redisStore, err := kvstore.NewRedisStore(ctx, cfg.Redis.URL)
			if err != nil {
				return err
			}
			defer redisStore.Close()
			kv = redisStore
		} else {
			log.Warn().Msg("Redis disabled, using in-memory store; cache will not survive restarts")
			kv = kvstore.NewMemoryStore()
		}

		store := config.NewStore(cfg)
		client := requester.NewClient(cfg.FetchTimeout(), cfg.FetchRetries)
		reg := registry.NewCache(kv, client, store)
		sessions := session.NewStore()
		bdg := badge.LogBadge{}
		pages := extractor.NewHTTPExtractor(client, store)
		sched := scheduler.New(store, reg, pages, sessions, bdg)
		eng := engine.New(store, kv, reg, sessions, sched, bdg)

		eng.LoadPersistedSettings(ctx)
		if _, err := reg.Refresh(ctx, false); err != nil {
			log.Warn().Err(err).Msg("Initial registry refresh failed, continuing with cached data")
		}

		err = eng.Run(ctx)
		if errors.Is(err, context.Canceled) {
			log.Info().Msg("Shutting down")
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
