package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var syncEntityID string

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push pending drafts, or two-way sync one entity with --entity",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if cfg.PushEndpoint == "" {
			return fmt.Errorf("push_endpoint is not configured")
		}

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		_, _, client := buildEngine(store)
		defer client.Close()

		if cfg.ProbeURL != "" && !client.ConnectivityCheck(ctx, cfg.ProbeURL) {
			return fmt.Errorf("backend is unreachable, sync skipped")
		}

		out := cmd.OutOrStdout()

		if syncEntityID != "" {
			if cfg.PullEndpoint == "" {
				return fmt.Errorf("pull_endpoint is not configured")
			}
			outcome, err := client.TwoWaySync(ctx, syncEntityID, cfg.PullEndpoint, cfg.PushEndpoint)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Two-way sync: %s", outcome.Action)
			if outcome.ConflictResolved {
				fmt.Fprintf(out, " (conflict resolved, version %d)", outcome.Draft.Version)
			}
			fmt.Fprintln(out)
			return nil
		}

		result, err := client.PushAllPending(ctx, cfg.PushEndpoint)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Pushed %d, failed %d, skipped %d\n", result.Pushed, result.Failed, result.Skipped)
		return nil
	},
}

var cleanupOlderThan time.Duration

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove synced stale drafts and inactive sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		drafts, sessions, _ := buildEngine(store)

		olderThan := cleanupOlderThan
		if olderThan <= 0 {
			olderThan = cfg.StaleAfter
		}

		removedDrafts, err := drafts.CleanupStale(ctx, olderThan)
		if err != nil {
			return err
		}
		removedSessions, err := sessions.CleanupStale(ctx, olderThan)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d drafts and %d sessions older than %s\n",
			removedDrafts, removedSessions, olderThan)
		return nil
	},
}

func init() {
	syncCmd.Flags().StringVar(&syncEntityID, "entity", "", "two-way sync a single entity id")
	cleanupCmd.Flags().DurationVar(&cleanupOlderThan, "older-than", 0, "staleness threshold (default: stale_after from config)")
}
