// Package deletion removes one item together with its backing file and
// thumbnail. The catalog row is always removed last so an interrupted
// delete leaves an orphaned file, never a dangling catalog reference.
package deletion

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/inboxvault/inboxvault/internal/inboxfs"
	"github.com/inboxvault/inboxvault/internal/item"
	"github.com/inboxvault/inboxvault/internal/store"
)

// Service deletes items under one Inbox root.
type Service struct {
	InboxRoot string
	Logger    *slog.Logger
}

func (s *Service) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// Delete removes one item's catalog row, backing file and thumbnail.
// A missing file or thumbnail is not an error (filesystem-idempotent);
// a missing catalog row is item.ErrNotFound. Last-viewed rows are left
// behind deliberately; orphans are tolerated by the query layer.
func (s *Service) Delete(userSub, itemID string) error {
	items, err := store.OpenItems(inboxfs.ItemsDBPath(s.InboxRoot, userSub))
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer items.Close()

	it, err := items.Get(itemID)
	if err != nil {
		return err
	}
	if it == nil {
		return fmt.Errorf("delete %s: %w", itemID, item.ErrNotFound)
	}

	userRoot := inboxfs.UserRoot(s.InboxRoot, userSub)

	if it.StoredRel != "" {
		p := inboxfs.FilePath(s.InboxRoot, userSub, it.StoredRel)
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove file %s: %w", it.StoredRel, err)
		}
	}

	if it.ThumbRel != "" {
		p := filepath.Join(userRoot, it.ThumbRel)
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove thumbnail %s: %w", it.ThumbRel, err)
		}
	}

	if err := items.Delete(itemID); err != nil {
		return err
	}

	s.logger().Info("deleted item", "user", userSub, "item_id", itemID, "kind", it.Kind)
	return nil
}
