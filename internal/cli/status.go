package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iudanet/draftsync/internal/draft"
	"github.com/iudanet/draftsync/internal/session"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show storage usage, integrity and pending drafts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		if !store.IsAvailable(ctx) {
			return fmt.Errorf("storage is not available")
		}

		report, err := store.CheckIntegrity(ctx)
		if err != nil {
			return err
		}

		stats, err := store.UsageStats(ctx)
		if err != nil {
			return err
		}

		drafts, _, _ := buildEngine(store)
		pending, err := drafts.ListUnsynced(ctx)
		if err != nil {
			return err
		}

		sessionKeys, err := store.KeysByPrefix(ctx, session.KeyPrefix)
		if err != nil {
			return err
		}
		draftKeys, err := store.KeysByPrefix(ctx, draft.KeyPrefix)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Backend:         %s (%s)\n", cfg.Backend, cfg.DBPath)
		fmt.Fprintf(out, "Keys:            %d (%d drafts, %d sessions)\n", stats.Count, len(draftKeys), len(sessionKeys))
		fmt.Fprintf(out, "Used:            %d bytes of %d (%.1f%%)\n", stats.Bytes, stats.QuotaBytes, stats.PercentUsed)
		fmt.Fprintf(out, "Integrity:       %d checked, %d corrupt removed\n", report.Checked, len(report.Removed))
		fmt.Fprintf(out, "Pending drafts:  %d\n", len(pending))
		for _, d := range pending {
			fmt.Fprintf(out, "  - %s v%d (attempts %d, valid %v)\n", d.EntityID, d.Version, d.SyncAttempts, d.IsValid)
		}
		return nil
	},
}
