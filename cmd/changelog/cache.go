package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/webtide/changelog-go/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the lookup cache",
	Long: `The lookup cache keeps changed paths, branch containment and GitHub
responses between runs. It lives in cache.directory.`,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the number of cached entries per bucket",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := cache.Open(cfg.Cache.Directory, logger.WithField("component", "cache"))
		if err != nil {
			return err
		}
		defer store.Close()

		counts, err := store.Count()
		if err != nil {
			return fmt.Errorf("failed to read cache: %w", err)
		}

		names := make([]string, 0, len(counts))
		for name := range counts {
			names = append(names, name)
		}
		sort.Strings(names)

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Cache: %s\n", store.Path())
		for _, name := range names {
			fmt.Fprintf(out, "  %-15s %d\n", name, counts[name])
		}
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop every cached entry",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := cache.Open(cfg.Cache.Directory, logger.WithField("component", "cache"))
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Clear(); err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s\n", store.Path())
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}
