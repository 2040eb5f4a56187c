// Package inboxfs owns the on-disk layout of an Inbox tree. Every
// component that touches the filesystem goes through these helpers so
// the directory conventions live in exactly one place.
//
// Per-user layout under the resolved Inbox root:
//
//	<root>/<user>/<kind>/files/<YYYY>/<MM>/<DD>/<item_id>__<name>
//	<root>/<user>/image/thumbs/<item_id>.webp
//	<root>/<user>/_meta/inbox_items.db
//	<root>/<user>/_meta/last_viewed.db
//	<root>/_meta/send_log.jsonl          (shared, not per-user)
package inboxfs

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/inboxvault/inboxvault/internal/item"
)

// UserPaths holds the resolved directories for one user's Inbox tree.
type UserPaths struct {
	Root string // <inboxRoot>/<sub>
	Meta string // <inboxRoot>/<sub>/_meta
}

// UserRoot returns the root directory of one user's tree.
func UserRoot(inboxRoot, sub string) string {
	return filepath.Join(inboxRoot, sub)
}

// EnsureUserDirs creates the fixed per-user directory layout and
// returns the resolved paths. Only directories are created here;
// database files are the stores' responsibility.
func EnsureUserDirs(inboxRoot, sub string) (*UserPaths, error) {
	root := UserRoot(inboxRoot, sub)

	dirs := []string{
		filepath.Join(root, "_meta"),
		filepath.Join(root, "image", "thumbs"),
	}
	for _, k := range item.Kinds {
		dirs = append(dirs,
			filepath.Join(root, string(k), "files"),
			filepath.Join(root, string(k), "preview"),
		)
	}

	for _, d := range dirs {
		if err := os.MkdirAll(d, 0755); err != nil {
			return nil, fmt.Errorf("create inbox dir %s: %w", d, err)
		}
	}

	return &UserPaths{
		Root: root,
		Meta: filepath.Join(root, "_meta"),
	}, nil
}

// FilesDir returns the base directory for stored originals of a kind.
func (p *UserPaths) FilesDir(k item.Kind) string {
	if !k.Valid() {
		k = item.KindOther
	}
	return filepath.Join(p.Root, string(k), "files")
}

// DatedFilesDir returns (and creates) the YYYY/MM/DD subdirectory for
// the given ingestion time, JST.
func (p *UserPaths) DatedFilesDir(k item.Kind, at time.Time) (string, error) {
	at = at.In(item.JST)
	dir := filepath.Join(p.FilesDir(k), at.Format("2006"), at.Format("01"), at.Format("02"))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create dated dir %s: %w", dir, err)
	}
	return dir, nil
}

// ItemsDBPath returns the per-user catalog database file.
func ItemsDBPath(inboxRoot, sub string) string {
	return filepath.Join(UserRoot(inboxRoot, sub), "_meta", "inbox_items.db")
}

// LastViewedDBPath returns the per-user last-viewed database file.
func LastViewedDBPath(inboxRoot, sub string) string {
	return filepath.Join(UserRoot(inboxRoot, sub), "_meta", "last_viewed.db")
}

// FilePath resolves a stored_rel value under the user's root.
func FilePath(inboxRoot, sub, storedRel string) string {
	return filepath.Join(UserRoot(inboxRoot, sub), storedRel)
}

// ThumbPath returns the canonical thumbnail location for an item.
// Thumbnails exist only for image-kind items.
func ThumbPath(inboxRoot, sub, itemID string) string {
	return filepath.Join(UserRoot(inboxRoot, sub), "image", "thumbs", itemID+".webp")
}

// SendLogPath returns the shared append-only send log at the Inbox-root
// level.
func SendLogPath(inboxRoot string) string {
	return filepath.Join(inboxRoot, "_meta", "send_log.jsonl")
}

// ListUsers returns the user subs that have a directory under the Inbox
// root. The shared _meta directory is not a user.
func ListUsers(inboxRoot string) ([]string, error) {
	entries, err := os.ReadDir(inboxRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list inbox root: %w", err)
	}

	var subs []string
	for _, e := range entries {
		if !e.IsDir() || e.Name() == "_meta" {
			continue
		}
		subs = append(subs, e.Name())
	}
	return subs, nil
}
