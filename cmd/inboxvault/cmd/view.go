package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inboxvault/inboxvault/internal/view"
)

var viewCmd = &cobra.Command{
	Use:   "view <user> <item-id>",
	Short: "Record that a user viewed an item",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		userSub, itemID := args[0], args[1]
		if err := view.Record(cfg.InboxRoot(), userSub, itemID); err != nil {
			return err
		}
		fmt.Printf("Recorded view of %s by %s\n", itemID, userSub)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(viewCmd)
}
