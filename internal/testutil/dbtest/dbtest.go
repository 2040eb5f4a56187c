// Package dbtest provides shared helpers for seeding on-disk Inbox
// trees and catalogs in tests. It is importable from any test package
// without circular dependency issues (it does not import
// internal/query or the services).
package dbtest

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/inboxvault/inboxvault/internal/inboxfs"
	"github.com/inboxvault/inboxvault/internal/item"
	"github.com/inboxvault/inboxvault/internal/store"
)

// I64Ptr returns a pointer to an int64 (useful for optional filter fields).
func I64Ptr(n int64) *int64 { return &n }

// Inbox wraps a temporary Inbox root with seeding helpers.
type Inbox struct {
	Root string
	T    testing.TB

	nextSeq int
}

// NewInbox creates a temporary Inbox root that is removed when the test
// finishes.
func NewInbox(t testing.TB) *Inbox {
	t.Helper()
	return &Inbox{Root: t.TempDir(), T: t}
}

// OpenItems opens (creating on first use) the catalog for one user and
// registers cleanup.
func (ib *Inbox) OpenItems(sub string) *store.ItemStore {
	ib.T.Helper()
	if _, err := inboxfs.EnsureUserDirs(ib.Root, sub); err != nil {
		ib.T.Fatalf("ensure user dirs: %v", err)
	}
	s, err := store.OpenItems(inboxfs.ItemsDBPath(ib.Root, sub))
	if err != nil {
		ib.T.Fatalf("open items db: %v", err)
	}
	ib.T.Cleanup(func() { s.Close() })
	return s
}

// OpenLastViewed opens (creating on first use) the last-viewed store
// for one user and registers cleanup.
func (ib *Inbox) OpenLastViewed(sub string) *store.LastViewedStore {
	ib.T.Helper()
	if _, err := inboxfs.EnsureUserDirs(ib.Root, sub); err != nil {
		ib.T.Fatalf("ensure user dirs: %v", err)
	}
	s, err := store.OpenLastViewed(inboxfs.LastViewedDBPath(ib.Root, sub))
	if err != nil {
		ib.T.Fatalf("open last_viewed db: %v", err)
	}
	ib.T.Cleanup(func() { s.Close() })
	return s
}

// ItemOpt mutates a seeded item before insert.
type ItemOpt func(*item.Item)

// WithName sets the original filename.
func WithName(name string) ItemOpt {
	return func(it *item.Item) { it.OriginalName = name }
}

// WithKind overrides the kind.
func WithKind(k item.Kind) ItemOpt {
	return func(it *item.Item) { it.Kind = k }
}

// WithAddedAt sets the ingestion timestamp (ISO 8601).
func WithAddedAt(iso string) ItemOpt {
	return func(it *item.Item) { it.AddedAt = iso }
}

// WithSize sets size_bytes.
func WithSize(n int64) ItemOpt {
	return func(it *item.Item) { it.SizeBytes = n }
}

// WithTags sets the tag list.
func WithTags(tags ...string) ItemOpt {
	return func(it *item.Item) { it.TagsJSON = item.TagsJSON(tags) }
}

// WithNote sets the free-text note.
func WithNote(note string) ItemOpt {
	return func(it *item.Item) { it.Note = note }
}

// WithThumb sets the thumbnail record.
func WithThumb(rel, status string) ItemOpt {
	return func(it *item.Item) {
		it.ThumbRel = rel
		it.ThumbStatus = status
	}
}

// SeedItem inserts one catalog row with sequential defaults and returns
// it. No backing file is written; use SeedFile for that.
func (ib *Inbox) SeedItem(items *store.ItemStore, opts ...ItemOpt) *item.Item {
	ib.T.Helper()
	ib.nextSeq++

	it := &item.Item{
		ItemID:       fmt.Sprintf("item-%04d", ib.nextSeq),
		Kind:         item.KindPDF,
		StoredRel:    fmt.Sprintf("pdf/files/2026/01/%02d/item-%04d__doc.pdf", ib.nextSeq%28+1, ib.nextSeq),
		OriginalName: fmt.Sprintf("doc-%04d.pdf", ib.nextSeq),
		AddedAt:      fmt.Sprintf("2026-01-%02dT10:00:00+09:00", ib.nextSeq%28+1),
		SizeBytes:    1000,
		TagsJSON:     "[]",
		ThumbStatus:  item.ThumbNone,
	}
	for _, opt := range opts {
		opt(it)
	}
	if err := items.Insert(it); err != nil {
		ib.T.Fatalf("seed item %s: %v", it.ItemID, err)
	}
	return it
}

// SeedFile writes data at the item's stored_rel under the user's root
// so file-touching services find a real file.
func (ib *Inbox) SeedFile(sub string, it *item.Item, data []byte) string {
	ib.T.Helper()
	path := inboxfs.FilePath(ib.Root, sub, it.StoredRel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		ib.T.Fatalf("seed file dir: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		ib.T.Fatalf("seed file: %v", err)
	}
	return path
}

// MarkViewed upserts a last-viewed row for the user/item pair.
func (ib *Inbox) MarkViewed(lv *store.LastViewedStore, sub, itemID, kind, atISO string) {
	ib.T.Helper()
	if err := lv.Upsert(sub, itemID, kind, atISO); err != nil {
		ib.T.Fatalf("mark viewed %s: %v", itemID, err)
	}
}
