package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inboxvault/inboxvault/internal/inboxfs"
	"github.com/inboxvault/inboxvault/internal/store"
	"github.com/inboxvault/inboxvault/internal/textutil"
)

var statsCmd = &cobra.Command{
	Use:   "stats <user>",
	Short: "Show a user's catalog statistics",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userSub := args[0]
		root := cfg.InboxRoot()

		items, err := store.OpenItems(inboxfs.ItemsDBPath(root, userSub))
		if err != nil {
			return fmt.Errorf("open catalog: %w", err)
		}
		defer items.Close()

		stats, err := items.GetStats()
		if err != nil {
			return fmt.Errorf("get stats: %w", err)
		}

		used, quota := ingestService().UsageForUser(userSub)

		fmt.Printf("Inbox: %s\n", inboxfs.UserRoot(root, userSub))
		fmt.Printf("  Items:  %d\n", stats.ItemCount)
		fmt.Printf("  Bytes:  %s\n", textutil.FormatBytes(stats.TotalBytes))
		fmt.Printf("  Usage:  %s of %s\n", textutil.FormatBytes(used), textutil.FormatBytes(quota))
		for _, kc := range stats.ByKind {
			fmt.Printf("  %-6s %5d  %s\n", kc.Kind, kc.Count, textutil.FormatBytes(kc.Bytes))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
