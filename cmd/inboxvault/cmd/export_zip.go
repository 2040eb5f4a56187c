package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/inboxvault/inboxvault/internal/export"
)

var exportZipCmd = &cobra.Command{
	Use:   "export-zip <user> <out.zip> <item-id>...",
	Short: "Export items as a ZIP archive",
	Long: `Build a ZIP archive of the selected items. Entries are grouped
by kind and keep the original filenames. Items that cannot be read are
skipped and reported; the archive still contains the rest.`,
	Args: cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		userSub, outPath := args[0], args[1]

		res, err := export.BuildZip(cfg.InboxRoot(), userSub, args[2:])
		if err != nil {
			return err
		}
		if len(res.OKIDs) == 0 {
			return fmt.Errorf("none of the %d requested items could be archived", len(res.FailedIDs))
		}

		if err := os.WriteFile(outPath, res.Data, 0644); err != nil {
			return fmt.Errorf("write %s: %w", outPath, err)
		}

		fmt.Printf("Wrote %s (%d items", outPath, len(res.OKIDs))
		if len(res.FailedIDs) > 0 {
			fmt.Printf(", %d skipped: %v", len(res.FailedIDs), res.FailedIDs)
		}
		fmt.Println(")")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportZipCmd)
}
