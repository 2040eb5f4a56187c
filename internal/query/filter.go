// Package query translates structured Inbox filter requests into SQL
// WHERE fragments and executes the joined, paginated reads against the
// catalog and last-viewed databases.
package query

import (
	"fmt"
	"strings"
	"time"

	"github.com/inboxvault/inboxvault/internal/item"
)

// SizeMode selects how the size bounds apply.
type SizeMode string

const (
	SizeModeNone    SizeMode = ""
	SizeModeAtLeast SizeMode = "at_least"
	SizeModeAtMost  SizeMode = "at_most"
	SizeModeRange   SizeMode = "range"
)

// LastViewedMode selects the last-viewed narrowing.
type LastViewedMode string

const (
	LastViewedNone     LastViewedMode = ""
	LastViewedUnviewed LastViewedMode = "unviewed"
	LastViewedRange    LastViewedMode = "range"
	LastViewedRecent   LastViewedMode = "recent"
)

// Filter is a structured filter request over the catalog. The zero
// value matches everything.
//
// KindsChecked distinguishes "no filter" (nil) from "no kinds selected"
// (empty non-nil slice, which matches nothing).
type Filter struct {
	KindsChecked []item.Kind
	TagTerms     []string
	NameTerms    []string

	AddedFrom *time.Time // inclusive calendar date
	AddedTo   *time.Time // exclusive-end calendar date

	SizeMode     SizeMode
	SizeMinBytes *int64
	SizeMaxBytes *int64

	LastViewed     LastViewedMode
	ViewedFrom     *time.Time
	ViewedTo       *time.Time
	ViewedSinceISO string // precomputed cutoff for LastViewedRecent; blank means "do not narrow"
}

// WithoutLastViewed returns a copy of the filter with the last-viewed
// narrowing removed. The executor counts against this so that totals
// stay consistent with items-only filtering.
func (f Filter) WithoutLastViewed() Filter {
	f.LastViewed = LastViewedNone
	f.ViewedFrom = nil
	f.ViewedTo = nil
	f.ViewedSinceISO = ""
	return f
}

// DateToISOStart converts a calendar date to the JST midnight boundary
// that starts it.
func DateToISOStart(d time.Time) string {
	t := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, item.JST)
	return t.Format(time.RFC3339)
}

// DateToISOEndExclusive converts a calendar date to the JST midnight
// boundary that follows it, for [start, end) comparisons.
func DateToISOEndExclusive(d time.Time) string {
	t := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, item.JST).AddDate(0, 0, 1)
	return t.Format(time.RFC3339)
}

// BuildWhere translates a filter into a WHERE fragment and its
// positional parameters. The fragment uses the aliases it. (items) and
// lv. (last-viewed) and never includes the WHERE keyword; composing the
// full statement is the executor's job. Pure function: no I/O, no SQL
// execution.
func BuildWhere(f Filter) (string, []any) {
	var conds []string
	var params []any

	// Kinds. A non-nil empty set means "no kinds selected": match
	// nothing, regardless of the other conditions.
	if f.KindsChecked != nil {
		if len(f.KindsChecked) == 0 {
			conds = append(conds, "1=0")
		} else {
			ph := strings.TrimSuffix(strings.Repeat("?,", len(f.KindsChecked)), ",")
			conds = append(conds, fmt.Sprintf("it.kind IN (%s)", ph))
			for _, k := range f.KindsChecked {
				params = append(params, string(k))
			}
		}
	}

	// Tags: substring match against the JSON array string, each term
	// ANDed. Deliberate simplification over exact tag matching.
	for _, t := range f.TagTerms {
		conds = append(conds, "it.tags_json LIKE ?")
		params = append(params, "%"+t+"%")
	}

	// Filename terms, ANDed.
	for _, t := range f.NameTerms {
		conds = append(conds, "it.original_name LIKE ?")
		params = append(params, "%"+t+"%")
	}

	// Added-at range: [from 00:00 JST, to+1d 00:00 JST).
	if f.AddedFrom != nil {
		conds = append(conds, "it.added_at >= ?")
		params = append(params, DateToISOStart(*f.AddedFrom))
	}
	if f.AddedTo != nil {
		conds = append(conds, "it.added_at < ?")
		params = append(params, DateToISOEndExclusive(*f.AddedTo))
	}

	// Size.
	switch f.SizeMode {
	case SizeModeAtLeast:
		if f.SizeMinBytes != nil {
			conds = append(conds, "it.size_bytes >= ?")
			params = append(params, *f.SizeMinBytes)
		}
	case SizeModeAtMost:
		if f.SizeMaxBytes != nil {
			conds = append(conds, "it.size_bytes <= ?")
			params = append(params, *f.SizeMaxBytes)
		}
	case SizeModeRange:
		if f.SizeMinBytes != nil {
			conds = append(conds, "it.size_bytes >= ?")
			params = append(params, *f.SizeMinBytes)
		}
		if f.SizeMaxBytes != nil {
			conds = append(conds, "it.size_bytes <= ?")
			params = append(params, *f.SizeMaxBytes)
		}
	}

	// Last-viewed. Requires the executor's LEFT JOIN with the lv alias.
	switch f.LastViewed {
	case LastViewedUnviewed:
		conds = append(conds, "lv.item_id IS NULL")
	case LastViewedRange:
		conds = append(conds, "lv.item_id IS NOT NULL")
		if f.ViewedFrom != nil {
			conds = append(conds, "lv.last_viewed_at >= ?")
			params = append(params, DateToISOStart(*f.ViewedFrom))
		}
		if f.ViewedTo != nil {
			conds = append(conds, "lv.last_viewed_at < ?")
			params = append(params, DateToISOEndExclusive(*f.ViewedTo))
		}
	case LastViewedRecent:
		// Narrow only when a cutoff could be computed; an unparseable
		// relative-time string means no narrowing, not an error.
		if f.ViewedSinceISO != "" {
			conds = append(conds, "lv.item_id IS NOT NULL")
			conds = append(conds, "lv.last_viewed_at >= ?")
			params = append(params, f.ViewedSinceISO)
		}
	}

	return strings.Join(conds, " AND "), params
}
