package query

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/inboxvault/inboxvault/internal/item"
	"github.com/inboxvault/inboxvault/internal/store"
	"github.com/inboxvault/inboxvault/internal/textutil"
)

// SortMode selects one of the fixed ORDER BY strategies.
type SortMode string

const (
	SortNewest SortMode = "newest" // added_at desc
	SortViewed SortMode = "viewed" // unviewed last, most recently viewed first
	SortName   SortMode = "name"   // filename asc, then added_at desc
)

// Row is one page entry: the raw catalog columns plus the joined
// last-viewed timestamp and the display-only derivations the UI layer
// consumes directly.
type Row struct {
	item.Item
	LastViewed string // ISO timestamp, "" when never viewed

	TagDisplay        string // first tag, for compact display
	AddedAtDisplay    string // JST "YYYY/MM/DD HH:MM"
	LastViewedDisplay string
	SizeDisplay       string // human-readable bytes
}

// Page is one filtered, sorted page plus the items-only total count.
type Page struct {
	Rows  []Row
	Total int64
}

// orderSQL returns the ORDER BY clause for a sort mode. Every mode ends
// in a deterministic tiebreak.
func orderSQL(mode SortMode) string {
	switch mode {
	case SortViewed:
		return `ORDER BY (lv.last_viewed_at IS NULL) ASC, lv.last_viewed_at DESC, it.added_at DESC`
	case SortName:
		return `ORDER BY it.original_name ASC, it.added_at DESC`
	default:
		return `ORDER BY it.added_at DESC`
	}
}

// FetchPage executes the filtered, joined, paginated read for one user.
//
// The total count is computed against the items table alone, with the
// last-viewed narrowing stripped from the filter: a broken or
// mid-migration last-viewed file must never prevent the count from
// succeeding, so the total reflects items-only filtering by design.
// Only the page rows (and their last_viewed column) depend on the
// last-viewed store.
func FetchPage(ctx context.Context, logger *slog.Logger, userSub, itemsDBPath, lvDBPath string, f Filter, sort SortMode, limit, offset int) (*Page, error) {
	if logger == nil {
		logger = slog.Default()
	}

	items, err := store.OpenItems(itemsDBPath)
	if err != nil {
		return nil, fmt.Errorf("open items db: %w", err)
	}
	defer items.Close()

	// Items-only count first, before any ATTACH.
	countWhere, countParams := BuildWhere(f.WithoutLastViewed())
	total, err := items.Count(countWhere, countParams)
	if err != nil {
		return nil, err
	}

	// Defensive: the last-viewed file may not have been touched yet for
	// this user. Opening it guarantees (and verifies) the schema.
	lvOK := true
	if lv, err := store.OpenLastViewed(lvDBPath); err != nil {
		if f.LastViewed != LastViewedNone {
			return nil, fmt.Errorf("last_viewed db unavailable with last-viewed filter active: %w", err)
		}
		logger.Warn("last_viewed db unavailable; page will omit view timestamps",
			"path", lvDBPath, "error", err)
		lvOK = false
	} else {
		lv.Close()
	}

	whereSQL, params := BuildWhere(f)

	var rows []Row
	if lvOK {
		rows, err = fetchJoinedPage(ctx, items.DB(), lvDBPath, userSub, whereSQL, params, sort, limit, offset)
	} else {
		rows, err = fetchItemsOnlyPage(items, whereSQL, params, sort, limit, offset)
	}
	if err != nil {
		return nil, err
	}

	for i := range rows {
		decorate(&rows[i])
	}

	return &Page{Rows: rows, Total: total}, nil
}

// fetchJoinedPage attaches the last-viewed database to the items
// connection, left-joins it and reads one page. ATTACH is
// per-connection state, so the whole exchange is pinned to a single
// pooled connection and the database is detached before release.
func fetchJoinedPage(ctx context.Context, db *sql.DB, lvDBPath, userSub, whereSQL string, params []any, sort SortMode, limit, offset int) ([]Row, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "ATTACH DATABASE ? AS lvdb", lvDBPath); err != nil {
		return nil, fmt.Errorf("attach last_viewed db: %w", err)
	}
	defer func() {
		_, _ = conn.ExecContext(ctx, "DETACH DATABASE lvdb")
	}()

	q := `
		SELECT
		  it.item_id, it.kind, it.stored_rel, it.original_name, it.added_at, it.size_bytes,
		  it.note, it.tags_json, it.thumb_rel, it.thumb_status, it.thumb_error,
		  it.origin_user, it.origin_item_id, it.origin_type,
		  COALESCE(lv.last_viewed_at, '') AS last_viewed
		FROM inbox_items AS it
		LEFT JOIN lvdb.last_viewed AS lv
		  ON lv.user_sub = ?
		 AND lv.item_id  = it.item_id`
	if whereSQL != "" {
		q += "\n\t\tWHERE " + whereSQL
	}
	q += "\n\t\t" + orderSQL(sort) + "\n\t\tLIMIT ? OFFSET ?"

	args := make([]any, 0, len(params)+3)
	args = append(args, userSub)
	args = append(args, params...)
	args = append(args, limit, offset)

	sqlRows, err := conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("page query: %w", err)
	}
	defer sqlRows.Close()

	var rows []Row
	for sqlRows.Next() {
		var r Row
		var kind string
		if err := sqlRows.Scan(
			&r.ItemID, &kind, &r.StoredRel, &r.OriginalName, &r.AddedAt, &r.SizeBytes,
			&r.Note, &r.TagsJSON, &r.ThumbRel, &r.ThumbStatus, &r.ThumbError,
			&r.OriginUser, &r.OriginItemID, &r.OriginType,
			&r.LastViewed,
		); err != nil {
			return nil, fmt.Errorf("scan page row: %w", err)
		}
		r.Item.Kind = item.Kind(kind)
		rows = append(rows, r)
	}
	return rows, sqlRows.Err()
}

// fetchItemsOnlyPage serves a page when the last-viewed store is
// unavailable and the filter does not reference it. The viewed sort
// degrades to newest.
func fetchItemsOnlyPage(items *store.ItemStore, whereSQL string, params []any, sort SortMode, limit, offset int) ([]Row, error) {
	order := orderSQL(sort)
	if sort == SortViewed {
		order = orderSQL(SortNewest)
	}
	page, err := items.ListPage(whereSQL, params, limit, offset, order)
	if err != nil {
		return nil, err
	}
	rows := make([]Row, 0, len(page))
	for _, it := range page {
		rows = append(rows, Row{Item: *it})
	}
	return rows, nil
}

func decorate(r *Row) {
	r.TagDisplay = r.FirstTag()
	r.AddedAtDisplay = textutil.FormatTimeJP(r.AddedAt)
	r.LastViewedDisplay = textutil.FormatTimeJP(r.LastViewed)
	r.SizeDisplay = textutil.FormatBytes(r.SizeBytes)
}
