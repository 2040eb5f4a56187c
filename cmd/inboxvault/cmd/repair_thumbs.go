package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inboxvault/inboxvault/internal/thumb"
)

var repairThumbsCmd = &cobra.Command{
	Use:   "repair-thumbs",
	Short: "Regenerate missing or failed thumbnails for all users",
	Long: `Walk every user catalog and re-run thumbnail generation for
image items whose thumbnail is missing or previously failed. The same
sweep runs on a schedule under 'serve' when [schedule] thumb_repair is
configured.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		stats, err := thumb.RepairAll(cmd.Context(), cfg.InboxRoot(), thumbOptions(), logger)
		if err != nil {
			return err
		}
		fmt.Printf("Checked %d items across %d users: %d generated, %d failed\n",
			stats.Checked, stats.Users, stats.Generated, stats.Failed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(repairThumbsCmd)
}
