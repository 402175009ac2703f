package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/FCTostin/ads.txt-app-ads.txt-Checker/internal/config"
	"github.com/FCTostin/ads.txt-app-ads.txt-Checker/internal/extractor"
	"github.com/FCTostin/ads.txt-app-ads.txt-Checker/internal/kvstore"
	"github.com/FCTostin/ads.txt-app-ads.txt-Checker/internal/matcher"
	"github.com/FCTostin/ads.txt-app-ads.txt-Checker/internal/registry"
	"github.com/FCTostin/ads.txt-app-ads.txt-Checker/internal/requester"
)

var checkCmd = &cobra.Command{
	Use:   "check <page-url>",
	Short: "Scan a single page once and print the seller match count",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadSettings()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
		defer cancel()

		store := config.NewStore(cfg)
		client := requester.NewClient(cfg.FetchTimeout(), cfg.FetchRetries)
		reg := registry.NewCache(kvstore.NewMemoryStore(), client, store)
		pages := extractor.NewHTTPExtractor(client, store)

		result, err := pages.Extract(ctx, "cli", args[0])
		if err != nil {
			return fmt.Errorf("extract seller declarations: %w", err)
		}

		sellers, err := reg.Refresh(ctx, true)
		if err != nil {
			return fmt.Errorf("fetch seller registry: %w", err)
		}

		count := matcher.Match(result.IDs, sellers)
		fmt.Printf("%s declares %d seller id(s), %d known\n", args[0], len(result.IDs), count)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
