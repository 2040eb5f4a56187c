package store

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"
)

// LastViewedStore records, per (user, item), the most recent time a
// preview of the item was actually rendered. It lives in its own
// database file so the catalog and the tracking data stay independent;
// the query executor joins them via ATTACH at read time.
//
// The schema is fixed: the timestamp column is last_viewed_at, NOT
// NULL, and no legacy column names are tolerated. A database whose
// last_viewed table deviates from this is reported as an error rather
// than silently migrated.
type LastViewedStore struct {
	db     *sql.DB
	dbPath string
}

const createLastViewedTable = `
CREATE TABLE IF NOT EXISTS last_viewed (
  user_sub       TEXT NOT NULL,
  item_id        TEXT NOT NULL,
  kind           TEXT NOT NULL,
  last_viewed_at TEXT NOT NULL,
  PRIMARY KEY (user_sub, item_id)
)`

var lastViewedIndexes = []string{
	"CREATE INDEX IF NOT EXISTS idx_last_viewed_user_kind ON last_viewed(user_sub, kind)",
	"CREATE INDEX IF NOT EXISTS idx_last_viewed_at ON last_viewed(last_viewed_at)",
}

// lastViewedRequired is the full required column set, verified before
// any index DDL so schema drift surfaces as a named-column diagnostic
// instead of a "no such column" failure.
var lastViewedRequired = []string{"user_sub", "item_id", "kind", "last_viewed_at"}

// OpenLastViewed opens (creating if necessary) the last-viewed database
// at dbPath and verifies the canonical schema.
func OpenLastViewed(dbPath string) (*LastViewedStore, error) {
	db, err := openDB(dbPath)
	if err != nil {
		return nil, err
	}

	s := &LastViewedStore{db: db, dbPath: dbPath}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *LastViewedStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *LastViewedStore) Path() string {
	return s.dbPath
}

func (s *LastViewedStore) ensureSchema() error {
	if _, err := s.db.Exec(createLastViewedTable); err != nil {
		return fmt.Errorf("create last_viewed: %w", err)
	}

	// The index DDL references the canonical columns, so a legacy table
	// must be diagnosed before any index is created.
	cols, err := tableColumns(s.db, "last_viewed")
	if err != nil {
		return err
	}
	var missing []string
	for _, c := range lastViewedRequired {
		if !cols[c] {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("last_viewed schema mismatch: missing columns %v", missing)
	}

	for _, ddl := range lastViewedIndexes {
		if _, err := s.db.Exec(ddl); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

// Upsert records that userSub viewed itemID at viewedAtISO. On conflict
// on (user_sub, item_id) the kind and timestamp are overwritten.
//
// A blank timestamp is a programming-contract violation and fails
// immediately rather than tripping the NOT NULL constraint.
func (s *LastViewedStore) Upsert(userSub, itemID, kind, viewedAtISO string) error {
	if strings.TrimSpace(viewedAtISO) == "" {
		return fmt.Errorf("upsert last_viewed: empty timestamp for (%s, %s); last_viewed_at must be a non-empty ISO string", userSub, itemID)
	}

	_, err := s.db.Exec(`
		INSERT INTO last_viewed (user_sub, item_id, kind, last_viewed_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_sub, item_id)
		DO UPDATE SET
		  kind = excluded.kind,
		  last_viewed_at = excluded.last_viewed_at`,
		userSub, itemID, kind, viewedAtISO)
	if err != nil {
		return fmt.Errorf("upsert last_viewed (%s, %s): %w", userSub, itemID, err)
	}
	return nil
}

// Get returns the recorded timestamp for (userSub, itemID), or "" when
// no view has been recorded.
func (s *LastViewedStore) Get(userSub, itemID string) (string, error) {
	var at string
	err := s.db.QueryRow(`
		SELECT last_viewed_at FROM last_viewed
		WHERE user_sub = ? AND item_id = ?`,
		userSub, itemID).Scan(&at)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get last_viewed (%s, %s): %w", userSub, itemID, err)
	}
	return at, nil
}
