package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inboxvault/inboxvault/internal/inboxfs"
	"github.com/inboxvault/inboxvault/internal/send"
	"github.com/inboxvault/inboxvault/internal/textutil"
)

var sendCmd = &cobra.Command{
	Use:   "send <from-user> <to-user> <item-id>",
	Short: "Copy an item into another user's Inbox",
	Long: `Copy one item byte-for-byte into another user's Inbox. Tags
carry over, the copy records its provenance, and the transfer is
appended to the shared send log.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		fromUser, toUser, itemID := args[0], args[1], args[2]

		newID, err := sendService().Send(fromUser, toUser, itemID)
		if err != nil {
			return err
		}
		fmt.Printf("Sent %s from %s to %s (new item %s)\n", itemID, fromUser, toUser, newID)
		return nil
	},
}

var sendlogCmd = &cobra.Command{
	Use:   "sendlog",
	Short: "Show the shared send history",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := send.ReadLog(inboxfs.SendLogPath(cfg.InboxRoot()))
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No sends recorded.")
			return nil
		}
		for _, e := range entries {
			fmt.Printf("%s  %s -> %s  %s (%s)  %s\n",
				textutil.FormatTimeJP(e.At), e.FromUser, e.ToUser,
				e.NewItemID, e.Kind, e.OriginName)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(sendlogCmd)
}
