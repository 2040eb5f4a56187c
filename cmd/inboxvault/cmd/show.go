package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/inboxvault/inboxvault/internal/inboxfs"
	"github.com/inboxvault/inboxvault/internal/item"
	"github.com/inboxvault/inboxvault/internal/store"
	"github.com/inboxvault/inboxvault/internal/textutil"
)

var showCmd = &cobra.Command{
	Use:   "show <user> <item-id>",
	Short: "Show one item's catalog entry",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		userSub, itemID := args[0], args[1]
		root := cfg.InboxRoot()

		items, err := store.OpenItems(inboxfs.ItemsDBPath(root, userSub))
		if err != nil {
			return fmt.Errorf("open catalog: %w", err)
		}
		defer items.Close()

		it, err := items.Get(itemID)
		if err != nil {
			return err
		}
		if it == nil {
			return fmt.Errorf("show %s: %w", itemID, item.ErrNotFound)
		}

		fmt.Printf("Item:     %s\n", it.ItemID)
		fmt.Printf("Kind:     %s (%s)\n", it.Kind, it.Kind.Label())
		fmt.Printf("Name:     %s\n", it.OriginalName)
		fmt.Printf("Stored:   %s\n", it.StoredRel)
		fmt.Printf("Added:    %s\n", textutil.FormatTimeJP(it.AddedAt))
		fmt.Printf("Size:     %s\n", textutil.FormatBytes(it.SizeBytes))
		if tags := it.Tags(); len(tags) > 0 {
			fmt.Printf("Tags:     %s\n", strings.Join(tags, ", "))
		}
		if it.Note != "" {
			fmt.Printf("Note:     %s\n", it.Note)
		}
		fmt.Printf("Thumb:    %s", it.ThumbStatus)
		if it.ThumbError != "" {
			fmt.Printf(" (%s)", it.ThumbError)
		}
		fmt.Println()
		if it.OriginType != "" {
			fmt.Printf("Origin:   %s from %s (%s)\n", it.OriginType, it.OriginUser, it.OriginItemID)
		}

		if lv, err := store.OpenLastViewed(inboxfs.LastViewedDBPath(root, userSub)); err == nil {
			if at, err := lv.Get(userSub, itemID); err == nil && at != "" {
				fmt.Printf("Viewed:   %s\n", textutil.FormatTimeJP(at))
			}
			lv.Close()
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
}
