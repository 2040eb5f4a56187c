package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <user> <item-id>...",
	Short: "Delete items from a user's Inbox",
	Long: `Remove items together with their stored files and thumbnails.
Missing files are tolerated; a missing catalog row is an error.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		userSub := args[0]
		svc := deletionService()

		for _, itemID := range args[1:] {
			if err := svc.Delete(userSub, itemID); err != nil {
				return fmt.Errorf("delete %s: %w", itemID, err)
			}
			fmt.Printf("Deleted %s\n", itemID)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}
