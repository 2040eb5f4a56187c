package store

import (
	"database/sql"
	"fmt"

	"github.com/inboxvault/inboxvault/internal/item"
)

// ItemStore provides row-level CRUD for one user's inbox_items catalog.
type ItemStore struct {
	db     *sql.DB
	dbPath string
}

// thumbErrorMax caps the persisted thumb_error message length.
const thumbErrorMax = 500

// createItemsTable is the current full table definition. Databases
// created by older code are brought up to date by itemMigrations; the
// two must stay in sync.
const createItemsTable = `
CREATE TABLE IF NOT EXISTS inbox_items (
  item_id        TEXT PRIMARY KEY,
  kind           TEXT NOT NULL,
  stored_rel     TEXT NOT NULL,
  original_name  TEXT NOT NULL,
  added_at       TEXT NOT NULL,
  size_bytes     INTEGER NOT NULL,
  note           TEXT DEFAULT '',
  tags_json      TEXT DEFAULT '[]',
  thumb_rel      TEXT DEFAULT '',
  thumb_status   TEXT DEFAULT 'none',
  thumb_error    TEXT DEFAULT '',
  origin_user    TEXT DEFAULT '',
  origin_item_id TEXT DEFAULT '',
  origin_type    TEXT DEFAULT ''
)`

// itemMigrations is the ordered list of additive column migrations.
// Each step is idempotent (checked against the introspected column set)
// and only ever adds a column with a default; existing columns are
// never dropped or retyped, so databases written by any generation of
// the code stay readable.
var itemMigrations = []struct {
	column string
	ddl    string
}{
	{"note", "ALTER TABLE inbox_items ADD COLUMN note TEXT DEFAULT ''"},
	{"tags_json", "ALTER TABLE inbox_items ADD COLUMN tags_json TEXT DEFAULT '[]'"},
	{"thumb_rel", "ALTER TABLE inbox_items ADD COLUMN thumb_rel TEXT DEFAULT ''"},
	{"thumb_status", "ALTER TABLE inbox_items ADD COLUMN thumb_status TEXT DEFAULT 'none'"},
	{"thumb_error", "ALTER TABLE inbox_items ADD COLUMN thumb_error TEXT DEFAULT ''"},
	{"origin_user", "ALTER TABLE inbox_items ADD COLUMN origin_user TEXT DEFAULT ''"},
	{"origin_item_id", "ALTER TABLE inbox_items ADD COLUMN origin_item_id TEXT DEFAULT ''"},
	{"origin_type", "ALTER TABLE inbox_items ADD COLUMN origin_type TEXT DEFAULT ''"},
}

var itemIndexes = []string{
	"CREATE INDEX IF NOT EXISTS idx_inbox_kind  ON inbox_items(kind)",
	"CREATE INDEX IF NOT EXISTS idx_inbox_added ON inbox_items(added_at)",
	"CREATE INDEX IF NOT EXISTS idx_inbox_name  ON inbox_items(original_name)",
	"CREATE INDEX IF NOT EXISTS idx_inbox_thumb ON inbox_items(thumb_status)",
}

// itemColumns is the select list shared by every read path, in the
// exact scan order of scanItem.
const itemColumns = `item_id, kind, stored_rel, original_name, added_at, size_bytes,
  note, tags_json, thumb_rel, thumb_status, thumb_error,
  origin_user, origin_item_id, origin_type`

// OpenItems opens (creating if necessary) the catalog database at
// dbPath and guarantees the schema, applying any pending additive
// migrations.
func OpenItems(dbPath string) (*ItemStore, error) {
	db, err := openDB(dbPath)
	if err != nil {
		return nil, err
	}

	s := &ItemStore{db: db, dbPath: dbPath}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *ItemStore) Close() error {
	return s.db.Close()
}

// DB returns the underlying connection for the query executor, which
// needs to ATTACH the last-viewed database.
func (s *ItemStore) DB() *sql.DB {
	return s.db
}

// Path returns the database file path.
func (s *ItemStore) Path() string {
	return s.dbPath
}

func (s *ItemStore) ensureSchema() error {
	if _, err := s.db.Exec(createItemsTable); err != nil {
		return fmt.Errorf("create inbox_items: %w", err)
	}

	cols, err := tableColumns(s.db, "inbox_items")
	if err != nil {
		return err
	}
	for _, m := range itemMigrations {
		if cols[m.column] {
			continue
		}
		if _, err := s.db.Exec(m.ddl); err != nil {
			return fmt.Errorf("add column %s: %w", m.column, err)
		}
	}

	for _, ddl := range itemIndexes {
		if _, err := s.db.Exec(ddl); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

// Insert adds one catalog row. A primary-key collision propagates as an
// error; callers generate collision-free UUIDs.
func (s *ItemStore) Insert(it *item.Item) error {
	tagsJSON := it.TagsJSON
	if tagsJSON == "" {
		tagsJSON = "[]"
	}
	thumbStatus := it.ThumbStatus
	if thumbStatus == "" {
		thumbStatus = item.ThumbNone
	}

	_, err := s.db.Exec(`
		INSERT INTO inbox_items(`+itemColumns+`)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		it.ItemID, string(it.Kind), it.StoredRel, it.OriginalName, it.AddedAt, it.SizeBytes,
		it.Note, tagsJSON, it.ThumbRel, thumbStatus, it.ThumbError,
		it.OriginUser, it.OriginItemID, it.OriginType,
	)
	if err != nil {
		if isSQLiteError(err, "UNIQUE constraint failed") {
			return fmt.Errorf("insert item %s: duplicate item_id: %w", it.ItemID, err)
		}
		return fmt.Errorf("insert item %s: %w", it.ItemID, err)
	}
	return nil
}

func scanItem(row interface{ Scan(...any) error }) (*item.Item, error) {
	var it item.Item
	var kind string
	err := row.Scan(
		&it.ItemID, &kind, &it.StoredRel, &it.OriginalName, &it.AddedAt, &it.SizeBytes,
		&it.Note, &it.TagsJSON, &it.ThumbRel, &it.ThumbStatus, &it.ThumbError,
		&it.OriginUser, &it.OriginItemID, &it.OriginType,
	)
	if err != nil {
		return nil, err
	}
	it.Kind = item.Kind(kind)
	return &it, nil
}

// Get fetches one row by item ID. Absence is not an error: it returns
// (nil, nil), matching the listing functions' empty-result convention.
func (s *ItemStore) Get(itemID string) (*item.Item, error) {
	row := s.db.QueryRow(`SELECT `+itemColumns+` FROM inbox_items WHERE item_id = ?`, itemID)
	it, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item %s: %w", itemID, err)
	}
	return it, nil
}

// ListAll returns every row ordered by added_at descending. Unbounded;
// intended for small or administrative contexts only.
func (s *ItemStore) ListAll() ([]*item.Item, error) {
	rows, err := s.db.Query(`SELECT ` + itemColumns + ` FROM inbox_items ORDER BY added_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []*item.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// Count returns the number of rows matching a WHERE fragment produced
// by the query builder. whereSQL must never contain unsanitized user
// text; user input travels only through params.
func (s *ItemStore) Count(whereSQL string, params []any) (int64, error) {
	q := "SELECT COUNT(*) FROM inbox_items it"
	if whereSQL != "" {
		q += " WHERE " + whereSQL
	}
	var n int64
	if err := s.db.QueryRow(q, params...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count items: %w", err)
	}
	return n, nil
}

// ListPage returns one page of rows matching a WHERE fragment, with a
// caller-supplied ORDER BY clause (including the keyword).
func (s *ItemStore) ListPage(whereSQL string, params []any, limit, offset int, orderSQL string) ([]*item.Item, error) {
	if orderSQL == "" {
		orderSQL = "ORDER BY it.added_at DESC"
	}
	q := `SELECT ` + itemColumns + ` FROM inbox_items it`
	if whereSQL != "" {
		q += " WHERE " + whereSQL
	}
	q += " " + orderSQL + " LIMIT ? OFFSET ?"

	args := append(append([]any{}, params...), limit, offset)
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("list page: %w", err)
	}
	defer rows.Close()

	var items []*item.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// UpdateTagSingle replaces the tag list with a single-element list, or
// an empty list when tag is blank. This is the simplified one-tag
// editing mode; the column still holds a JSON array.
func (s *ItemStore) UpdateTagSingle(itemID, tag string) error {
	var tags []string
	if t := item.NormalizeTags(tag); len(t) > 0 {
		tags = t[:1]
	}
	_, err := s.db.Exec(`UPDATE inbox_items SET tags_json = ? WHERE item_id = ?`,
		item.TagsJSON(tags), itemID)
	if err != nil {
		return fmt.Errorf("update tag %s: %w", itemID, err)
	}
	return nil
}

// UpdateNote replaces the free-text note.
func (s *ItemStore) UpdateNote(itemID, note string) error {
	_, err := s.db.Exec(`UPDATE inbox_items SET note = ? WHERE item_id = ?`, note, itemID)
	if err != nil {
		return fmt.Errorf("update note %s: %w", itemID, err)
	}
	return nil
}

// UpdateThumb records a thumbnail generation outcome. The error message
// is truncated to 500 characters.
func (s *ItemStore) UpdateThumb(itemID, thumbRel, status, thumbErr string) error {
	if status == "" {
		status = item.ThumbNone
	}
	if len(thumbErr) > thumbErrorMax {
		thumbErr = thumbErr[:thumbErrorMax]
	}
	_, err := s.db.Exec(`
		UPDATE inbox_items
		SET thumb_rel = ?, thumb_status = ?, thumb_error = ?
		WHERE item_id = ?`,
		thumbRel, status, thumbErr, itemID)
	if err != nil {
		return fmt.Errorf("update thumb %s: %w", itemID, err)
	}
	return nil
}

// Delete removes one catalog row. Deleting a missing row is not an
// error; the delete service checks existence first.
func (s *ItemStore) Delete(itemID string) error {
	_, err := s.db.Exec(`DELETE FROM inbox_items WHERE item_id = ?`, itemID)
	if err != nil {
		return fmt.Errorf("delete item %s: %w", itemID, err)
	}
	return nil
}

// KindCount is one row of the per-kind stats breakdown.
type KindCount struct {
	Kind  item.Kind
	Count int64
	Bytes int64
}

// Stats summarizes the catalog contents for one user.
type Stats struct {
	ItemCount  int64
	TotalBytes int64
	ByKind     []KindCount
}

// GetStats returns catalog statistics grouped by kind.
func (s *ItemStore) GetStats() (*Stats, error) {
	stats := &Stats{}

	rows, err := s.db.Query(`
		SELECT kind, COUNT(*), COALESCE(SUM(size_bytes), 0)
		FROM inbox_items
		GROUP BY kind
		ORDER BY kind`)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var kc KindCount
		var kind string
		if err := rows.Scan(&kind, &kc.Count, &kc.Bytes); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		kc.Kind = item.Kind(kind)
		stats.ByKind = append(stats.ByKind, kc)
		stats.ItemCount += kc.Count
		stats.TotalBytes += kc.Bytes
	}
	return stats, rows.Err()
}
