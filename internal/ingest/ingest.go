// Package ingest turns raw uploaded bytes into catalog entries: kind
// classification, quota enforcement, dated file placement, catalog
// insert with rollback, and thumbnail generation for images.
package ingest

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/inboxvault/inboxvault/internal/fileutil"
	"github.com/inboxvault/inboxvault/internal/inboxfs"
	"github.com/inboxvault/inboxvault/internal/item"
	"github.com/inboxvault/inboxvault/internal/store"
	"github.com/inboxvault/inboxvault/internal/thumb"
)

// Service performs ingests against one resolved Inbox root.
type Service struct {
	InboxRoot    string
	QuotaForUser func(sub string) int64 // nil means the uniform default
	Thumb        thumb.Options
	Logger       *slog.Logger
}

// Request carries one file to ingest. Origin fields are empty for
// direct uploads; the send service populates them for copies.
type Request struct {
	UserSub  string
	Filename string
	Data     []byte
	TagsJSON string

	OriginUser   string
	OriginItemID string
	OriginType   string
}

// Result reports the created catalog entry.
type Result struct {
	ItemID      string
	Kind        item.Kind
	StoredRel   string
	SizeBytes   int64
	ThumbStatus string
}

func (s *Service) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s *Service) quota(sub string) int64 {
	if s.QuotaForUser != nil {
		return s.QuotaForUser(sub)
	}
	return DefaultQuotaBytes
}

// Ingest classifies, stores and catalogs one file for a user.
//
// Error contract: *item.NotAvailableError when the Inbox root is
// missing, *item.QuotaExceededError when the file would exceed the
// user's quota, *item.IngestFailedError for write/insert failures
// (after best-effort rollback of any partial file write). The file
// never exists on disk without a corresponding catalog row.
func (s *Service) Ingest(req Request) (*Result, error) {
	if _, err := os.Stat(s.InboxRoot); err != nil {
		return nil, &item.NotAvailableError{Path: s.InboxRoot}
	}

	paths, err := inboxfs.EnsureUserDirs(s.InboxRoot, req.UserSub)
	if err != nil {
		return nil, &item.IngestFailedError{Reason: "prepare user dirs", Err: err}
	}

	items, err := store.OpenItems(inboxfs.ItemsDBPath(s.InboxRoot, req.UserSub))
	if err != nil {
		return nil, &item.IngestFailedError{Reason: "open catalog", Err: err}
	}
	defer items.Close()

	// Quota check before any write. Two concurrent ingests can both
	// pass and jointly exceed the quota; accepted limitation.
	current := fileutil.TreeSize(paths.Root)
	incoming := int64(len(req.Data))
	quota := s.quota(req.UserSub)
	if current+incoming > quota {
		return nil, &item.QuotaExceededError{Current: current, Incoming: incoming, Quota: quota}
	}

	kind := item.DetectKind(req.Filename)
	now := item.NowISO()

	dayDir, err := paths.DatedFilesDir(kind, timeNow())
	if err != nil {
		return nil, &item.IngestFailedError{Reason: "prepare dated dir", Err: err}
	}

	itemID := uuid.NewString()
	outPath := filepath.Join(dayDir, itemID+"__"+fileutil.SafeFilename(req.Filename))

	if err := os.WriteFile(outPath, req.Data, 0644); err != nil {
		return nil, &item.IngestFailedError{Reason: "write file", Err: eris.Wrap(err, outPath)}
	}

	storedRel, err := filepath.Rel(paths.Root, outPath)
	if err != nil {
		os.Remove(outPath)
		return nil, &item.IngestFailedError{Reason: "relativize stored path", Err: err}
	}

	tagsJSON := req.TagsJSON
	if tagsJSON == "" {
		tagsJSON = "[]"
	}

	it := &item.Item{
		ItemID:       itemID,
		Kind:         kind,
		StoredRel:    storedRel,
		OriginalName: req.Filename,
		AddedAt:      now,
		SizeBytes:    incoming,
		TagsJSON:     tagsJSON,
		ThumbStatus:  item.ThumbNone,
		OriginUser:   req.OriginUser,
		OriginItemID: req.OriginItemID,
		OriginType:   req.OriginType,
	}

	if err := items.Insert(it); err != nil {
		// The file must never exist without a catalog row.
		if rmErr := os.Remove(outPath); rmErr != nil && !os.IsNotExist(rmErr) {
			s.logger().Warn("rollback of ingested file failed", "path", outPath, "error", rmErr)
		}
		return nil, &item.IngestFailedError{Reason: "catalog insert", Err: err}
	}

	thumbStatus := item.ThumbNone
	if kind == item.KindImage {
		res, err := thumb.Ensure(items, s.InboxRoot, req.UserSub, it, s.Thumb)
		if err != nil {
			// Thumbnail bookkeeping failed, but the item itself is
			// ingested; report and move on.
			s.logger().Warn("thumbnail record update failed", "item_id", itemID, "error", err)
		} else {
			thumbStatus = res.Status
		}
	}

	s.logger().Info("ingested item",
		"user", req.UserSub, "item_id", itemID, "kind", kind,
		"size_bytes", incoming, "thumb_status", thumbStatus)

	return &Result{
		ItemID:      itemID,
		Kind:        kind,
		StoredRel:   storedRel,
		SizeBytes:   incoming,
		ThumbStatus: thumbStatus,
	}, nil
}

// UsageForUser returns (used, quota) for rendering quota messages.
func (s *Service) UsageForUser(sub string) (int64, int64) {
	used := fileutil.TreeSize(inboxfs.UserRoot(s.InboxRoot, sub))
	return used, s.quota(sub)
}
