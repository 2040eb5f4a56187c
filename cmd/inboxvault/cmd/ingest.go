package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/inboxvault/inboxvault/internal/ingest"
	"github.com/inboxvault/inboxvault/internal/item"
	"github.com/inboxvault/inboxvault/internal/textutil"
)

var ingestTags string

var ingestCmd = &cobra.Command{
	Use:   "ingest <user> <file>...",
	Short: "Add files to a user's Inbox",
	Long: `Classify, store and catalog one or more local files for a user.
The kind is detected from the file extension; images get a thumbnail.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		userSub := args[0]
		svc := ingestService()

		for _, path := range args[1:] {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}

			res, err := svc.Ingest(ingest.Request{
				UserSub:  userSub,
				Filename: filepath.Base(path),
				Data:     data,
				TagsJSON: item.TagsJSONFromInput(ingestTags),
			})
			if err != nil {
				var qe *item.QuotaExceededError
				if errors.As(err, &qe) {
					used, quota := svc.UsageForUser(userSub)
					return fmt.Errorf("%s: quota exceeded (%s of %s used)",
						path, textutil.FormatBytes(used), textutil.FormatBytes(quota))
				}
				return fmt.Errorf("ingest %s: %w", path, err)
			}

			fmt.Printf("%s  %s  %s (%s)\n",
				res.ItemID, res.Kind, filepath.Base(path), textutil.FormatBytes(res.SizeBytes))
		}
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestTags, "tags", "", "tags for the new items (comma or space separated)")
	rootCmd.AddCommand(ingestCmd)
}
