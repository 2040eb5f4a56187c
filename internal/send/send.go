// Package send copies an item from one user's Inbox into another's,
// preserving tags, recording provenance, and appending to the shared
// send log.
package send

import (
	"fmt"
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

// Service performs send/copy operations against one Inbox root.
type Service struct {
	InboxRoot    string
	QuotaForUser func(sub string) int64
	Thumb        thumb.Options
	Logger       *slog.Logger
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
	return 5 * 1024 * 1024 * 1024
}

// Send copies itemID from fromUser's Inbox into toUser's, returning the
// new item's ID. The source item is untouched. The two writes are
// independent single-user operations: a failure after the destination
// catalog insert but before the send-log append leaves a valid copy
// with no log line, which is tolerated.
func (s *Service) Send(fromUser, toUser, itemID string) (string, error) {
	if _, err := os.Stat(s.InboxRoot); err != nil {
		return "", &item.NotAvailableError{Path: s.InboxRoot}
	}
	if fromUser == "" || toUser == "" || fromUser == toUser {
		return "", &item.IngestFailedError{Reason: fmt.Sprintf("invalid from/to user: %q -> %q", fromUser, toUser)}
	}

	// Source row.
	srcItems, err := store.OpenItems(inboxfs.ItemsDBPath(s.InboxRoot, fromUser))
	if err != nil {
		return "", &item.IngestFailedError{Reason: "open source catalog", Err: err}
	}
	src, err := srcItems.Get(itemID)
	srcItems.Close()
	if err != nil {
		return "", &item.IngestFailedError{Reason: "read source item", Err: err}
	}
	if src == nil {
		return "", fmt.Errorf("send %s: %w", itemID, item.ErrNotFound)
	}
	if src.StoredRel == "" {
		return "", &item.IngestFailedError{Reason: "source item has no stored file"}
	}

	srcPath := inboxfs.FilePath(s.InboxRoot, fromUser, src.StoredRel)
	data, err := os.ReadFile(srcPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", &item.IngestFailedError{Reason: fmt.Sprintf("source file missing: %s", src.StoredRel)}
		}
		return "", &item.IngestFailedError{Reason: "read source file", Err: eris.Wrap(err, srcPath)}
	}
	incoming := int64(len(data))

	// Destination quota.
	toPaths, err := inboxfs.EnsureUserDirs(s.InboxRoot, toUser)
	if err != nil {
		return "", &item.IngestFailedError{Reason: "prepare destination dirs", Err: err}
	}
	current := fileutil.TreeSize(toPaths.Root)
	quota := s.quota(toUser)
	if current+incoming > quota {
		return "", &item.QuotaExceededError{Current: current, Incoming: incoming, Quota: quota}
	}

	// Byte-for-byte copy under the destination's dated layout.
	dayDir, err := toPaths.DatedFilesDir(src.Kind, timeNow())
	if err != nil {
		return "", &item.IngestFailedError{Reason: "prepare dated dir", Err: err}
	}

	newItemID := uuid.NewString()
	outPath := filepath.Join(dayDir, newItemID+"__"+fileutil.SafeFilename(src.OriginalName))
	if err := os.WriteFile(outPath, data, 0644); err != nil {
		return "", &item.IngestFailedError{Reason: "write copy", Err: eris.Wrap(err, outPath)}
	}

	newStoredRel, err := filepath.Rel(toPaths.Root, outPath)
	if err != nil {
		os.Remove(outPath)
		return "", &item.IngestFailedError{Reason: "relativize stored path", Err: err}
	}

	toItems, err := store.OpenItems(inboxfs.ItemsDBPath(s.InboxRoot, toUser))
	if err != nil {
		os.Remove(outPath)
		return "", &item.IngestFailedError{Reason: "open destination catalog", Err: err}
	}
	defer toItems.Close()

	newItem := &item.Item{
		ItemID:       newItemID,
		Kind:         src.Kind,
		StoredRel:    newStoredRel,
		OriginalName: src.OriginalName,
		AddedAt:      item.NowISO(),
		SizeBytes:    incoming,
		TagsJSON:     src.TagsJSON,
		ThumbStatus:  item.ThumbNone,
		OriginUser:   fromUser,
		OriginItemID: itemID,
		OriginType:   item.OriginCopy,
	}
	if err := toItems.Insert(newItem); err != nil {
		if rmErr := os.Remove(outPath); rmErr != nil && !os.IsNotExist(rmErr) {
			s.logger().Warn("rollback of copied file failed", "path", outPath, "error", rmErr)
		}
		return "", &item.IngestFailedError{Reason: "destination catalog insert", Err: err}
	}

	if src.Kind == item.KindImage {
		if _, err := thumb.Ensure(toItems, s.InboxRoot, toUser, newItem, s.Thumb); err != nil {
			s.logger().Warn("thumbnail record update failed", "item_id", newItemID, "error", err)
		}
	}

	// Best-effort: a failed log append must not fail the send.
	entry := LogEntry{
		At:           item.NowISO(),
		FromUser:     fromUser,
		ToUser:       toUser,
		OriginItemID: itemID,
		NewItemID:    newItemID,
		Kind:         string(src.Kind),
		OriginType:   item.OriginCopy,
		OriginName:   src.OriginalName,
		Tags:         src.Tags(),
	}
	if err := AppendLog(inboxfs.SendLogPath(s.InboxRoot), entry); err != nil {
		s.logger().Warn("send log append failed", "error", err)
	}

	s.logger().Info("sent item copy",
		"from", fromUser, "to", toUser,
		"origin_item_id", itemID, "new_item_id", newItemID, "kind", src.Kind)

	return newItemID, nil
}
