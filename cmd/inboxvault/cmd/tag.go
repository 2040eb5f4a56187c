package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inboxvault/inboxvault/internal/inboxfs"
	"github.com/inboxvault/inboxvault/internal/item"
	"github.com/inboxvault/inboxvault/internal/store"
)

// openExisting opens the catalog and verifies the item exists.
func openExisting(userSub, itemID string) (*store.ItemStore, error) {
	items, err := store.OpenItems(inboxfs.ItemsDBPath(cfg.InboxRoot(), userSub))
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	it, err := items.Get(itemID)
	if err != nil {
		items.Close()
		return nil, err
	}
	if it == nil {
		items.Close()
		return nil, fmt.Errorf("item %s: %w", itemID, item.ErrNotFound)
	}
	return items, nil
}

var tagCmd = &cobra.Command{
	Use:   "tag <user> <item-id> [tag]",
	Short: "Set or clear an item's tag",
	Long: `Replace the item's tag. Omitting the tag argument clears it.
Items carry a single tag in this editing mode; the catalog column
remains a list for forward compatibility.`,
	Args: cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		userSub, itemID := args[0], args[1]
		tag := ""
		if len(args) == 3 {
			tag = args[2]
		}

		items, err := openExisting(userSub, itemID)
		if err != nil {
			return err
		}
		defer items.Close()

		if err := items.UpdateTagSingle(itemID, tag); err != nil {
			return err
		}
		if tag == "" {
			fmt.Printf("Cleared tag on %s\n", itemID)
		} else {
			fmt.Printf("Tagged %s as %q\n", itemID, tag)
		}
		return nil
	},
}

var noteCmd = &cobra.Command{
	Use:   "note <user> <item-id> [note]",
	Short: "Set or clear an item's note",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		userSub, itemID := args[0], args[1]
		note := ""
		if len(args) == 3 {
			note = args[2]
		}

		items, err := openExisting(userSub, itemID)
		if err != nil {
			return err
		}
		defer items.Close()

		if err := items.UpdateNote(itemID, note); err != nil {
			return err
		}
		fmt.Printf("Updated note on %s\n", itemID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tagCmd)
	rootCmd.AddCommand(noteCmd)
}
