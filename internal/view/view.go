// Package view records "this user actually saw this item" events into
// the last-viewed store. The record is made when a preview render
// succeeds, not when one is merely attempted.
package view

import (
	"fmt"

	"github.com/inboxvault/inboxvault/internal/inboxfs"
	"github.com/inboxvault/inboxvault/internal/item"
	"github.com/inboxvault/inboxvault/internal/store"
)

// Record upserts the last-viewed timestamp (now, JST) for one item the
// user just previewed. Returns item.ErrNotFound when the item does not
// exist in the user's catalog.
func Record(inboxRoot, userSub, itemID string) error {
	items, err := store.OpenItems(inboxfs.ItemsDBPath(inboxRoot, userSub))
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	it, err := items.Get(itemID)
	items.Close()
	if err != nil {
		return err
	}
	if it == nil {
		return fmt.Errorf("record view %s: %w", itemID, item.ErrNotFound)
	}

	lv, err := store.OpenLastViewed(inboxfs.LastViewedDBPath(inboxRoot, userSub))
	if err != nil {
		return fmt.Errorf("open last_viewed db: %w", err)
	}
	defer lv.Close()

	return lv.Upsert(userSub, itemID, string(it.Kind), item.NowISO())
}
