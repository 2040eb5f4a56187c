package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/inboxvault/inboxvault/internal/inboxfs"
	"github.com/inboxvault/inboxvault/internal/item"
	"github.com/inboxvault/inboxvault/internal/query"
	"github.com/inboxvault/inboxvault/internal/textutil"
)

var (
	listKinds        string
	listTag          string
	listName         string
	listAddedFrom    string
	listAddedTo      string
	listSizeMode     string
	listSizeMin      int64
	listSizeMax      int64
	listViewed       string
	listViewedFrom   string
	listViewedTo     string
	listViewedWithin string
	listSort         string
	listPage         int
	listPageSize     int
)

var listCmd = &cobra.Command{
	Use:   "list <user>",
	Short: "List a user's Inbox items",
	Long: `List catalog items with filtering, sorting and pagination.

Filters compose with AND. Dates are calendar dates (YYYY-MM-DD, JST).
--viewed takes unviewed, range or recent; recent uses --viewed-within
with values like 3d, 12h, 30m.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userSub := args[0]

		f, err := buildListFilter()
		if err != nil {
			return err
		}

		sort := query.SortMode(listSort)
		switch sort {
		case query.SortNewest, query.SortViewed, query.SortName:
		default:
			return fmt.Errorf("invalid --sort %q (newest, viewed or name)", listSort)
		}

		if listPage < 1 {
			listPage = 1
		}
		if listPageSize < 1 {
			listPageSize = 50
		}

		root := cfg.InboxRoot()
		page, err := query.FetchPage(cmd.Context(), logger, userSub,
			inboxfs.ItemsDBPath(root, userSub),
			inboxfs.LastViewedDBPath(root, userSub),
			f, sort, listPageSize, (listPage-1)*listPageSize)
		if err != nil {
			return err
		}

		fmt.Printf("%d items (page %d, %d shown)\n\n", page.Total, listPage, len(page.Rows))
		for _, r := range page.Rows {
			viewed := r.LastViewedDisplay
			if viewed == "" {
				viewed = "-"
			}
			tag := r.TagDisplay
			if tag == "" {
				tag = "-"
			}
			fmt.Printf("%s  %-5s  %-10s  %16s  viewed %-16s  [%s]  %s\n",
				r.ItemID, r.Item.Kind, r.SizeDisplay, r.AddedAtDisplay, viewed, tag, r.OriginalName)
		}
		return nil
	},
}

func buildListFilter() (query.Filter, error) {
	var f query.Filter

	if listKinds != "" {
		f.KindsChecked = []item.Kind{}
		for _, part := range strings.Split(listKinds, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			k := item.Kind(part)
			if !k.Valid() {
				return f, fmt.Errorf("invalid kind %q", part)
			}
			f.KindsChecked = append(f.KindsChecked, k)
		}
	}

	f.TagTerms = textutil.SplitTerms(listTag)
	f.NameTerms = textutil.SplitTerms(listName)

	var err error
	if f.AddedFrom, err = parseDateFlag("added-from", listAddedFrom); err != nil {
		return f, err
	}
	if f.AddedTo, err = parseDateFlag("added-to", listAddedTo); err != nil {
		return f, err
	}

	switch query.SizeMode(listSizeMode) {
	case query.SizeModeNone:
	case query.SizeModeAtLeast:
		f.SizeMode = query.SizeModeAtLeast
		f.SizeMinBytes = &listSizeMin
	case query.SizeModeAtMost:
		f.SizeMode = query.SizeModeAtMost
		f.SizeMaxBytes = &listSizeMax
	case query.SizeModeRange:
		f.SizeMode = query.SizeModeRange
		f.SizeMinBytes = &listSizeMin
		f.SizeMaxBytes = &listSizeMax
	default:
		return f, fmt.Errorf("invalid --size-mode %q", listSizeMode)
	}

	switch query.LastViewedMode(listViewed) {
	case query.LastViewedNone:
	case query.LastViewedUnviewed:
		f.LastViewed = query.LastViewedUnviewed
	case query.LastViewedRange:
		f.LastViewed = query.LastViewedRange
		if f.ViewedFrom, err = parseDateFlag("viewed-from", listViewedFrom); err != nil {
			return f, err
		}
		if f.ViewedTo, err = parseDateFlag("viewed-to", listViewedTo); err != nil {
			return f, err
		}
	case query.LastViewedRecent:
		f.LastViewed = query.LastViewedRecent
		if dur, ok := textutil.ParseRecent(listViewedWithin); ok {
			f.ViewedSinceISO = time.Now().In(item.JST).Add(-dur).Format(time.RFC3339)
		}
	default:
		return f, fmt.Errorf("invalid --viewed %q", listViewed)
	}

	return f, nil
}

func parseDateFlag(name, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	d, err := time.ParseInLocation("2006-01-02", value, item.JST)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s %q (want YYYY-MM-DD)", name, value)
	}
	return &d, nil
}

func init() {
	listCmd.Flags().StringVar(&listKinds, "kinds", "", "comma-separated kinds (pdf,word,excel,ppt,text,image,other)")
	listCmd.Flags().StringVar(&listTag, "tag", "", "tag search terms (AND)")
	listCmd.Flags().StringVar(&listName, "name", "", "filename search terms (AND)")
	listCmd.Flags().StringVar(&listAddedFrom, "added-from", "", "added on or after this date")
	listCmd.Flags().StringVar(&listAddedTo, "added-to", "", "added on or before this date")
	listCmd.Flags().StringVar(&listSizeMode, "size-mode", "", "size narrowing: at_least, at_most or range")
	listCmd.Flags().Int64Var(&listSizeMin, "size-min", 0, "minimum size in bytes")
	listCmd.Flags().Int64Var(&listSizeMax, "size-max", 0, "maximum size in bytes")
	listCmd.Flags().StringVar(&listViewed, "viewed", "", "view narrowing: unviewed, range or recent")
	listCmd.Flags().StringVar(&listViewedFrom, "viewed-from", "", "viewed on or after this date")
	listCmd.Flags().StringVar(&listViewedTo, "viewed-to", "", "viewed on or before this date")
	listCmd.Flags().StringVar(&listViewedWithin, "viewed-within", "", "viewed within, e.g. 3d, 12h, 30m")
	listCmd.Flags().StringVar(&listSort, "sort", "newest", "sort order: newest, viewed or name")
	listCmd.Flags().IntVar(&listPage, "page", 1, "page number")
	listCmd.Flags().IntVar(&listPageSize, "page-size", 50, "items per page")
	rootCmd.AddCommand(listCmd)
}
