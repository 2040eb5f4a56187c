package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inboxvault/inboxvault/internal/inboxfs"
	"github.com/inboxvault/inboxvault/internal/store"
)

var initdbCmd = &cobra.Command{
	Use:   "initdb <user>",
	Short: "Create a user's Inbox directories and databases",
	Long: `Create the per-user directory layout and initialize both the
catalog and last-viewed databases. Safe to run repeatedly; existing
databases get any pending schema migrations applied.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userSub := args[0]
		root := cfg.InboxRoot()

		if _, err := inboxfs.EnsureUserDirs(root, userSub); err != nil {
			return err
		}

		items, err := store.OpenItems(inboxfs.ItemsDBPath(root, userSub))
		if err != nil {
			return fmt.Errorf("init catalog db: %w", err)
		}
		items.Close()

		lv, err := store.OpenLastViewed(inboxfs.LastViewedDBPath(root, userSub))
		if err != nil {
			return fmt.Errorf("init last_viewed db: %w", err)
		}
		lv.Close()

		fmt.Printf("Initialized Inbox for %s under %s\n", userSub, inboxfs.UserRoot(root, userSub))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initdbCmd)
}
