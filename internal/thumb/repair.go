package thumb

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/inboxvault/inboxvault/internal/inboxfs"
	"github.com/inboxvault/inboxvault/internal/item"
	"github.com/inboxvault/inboxvault/internal/store"
)

// repairConcurrency caps how many user catalogs one sweep works at once.
const repairConcurrency = 4

// RepairStats summarizes one repair sweep across the Inbox tree.
type RepairStats struct {
	Users     int
	Checked   int
	Generated int
	Failed    int
}

func (s *RepairStats) add(o RepairStats) {
	s.Users += o.Users
	s.Checked += o.Checked
	s.Generated += o.Generated
	s.Failed += o.Failed
}

// RepairAll walks every user catalog and re-runs Ensure for image items
// whose thumbnail is missing or previously failed. Users are swept
// concurrently; per-user failures are logged and skipped so one corrupt
// catalog cannot stall the sweep.
func RepairAll(ctx context.Context, inboxRoot string, opts Options, logger *slog.Logger) (RepairStats, error) {
	if logger == nil {
		logger = slog.Default()
	}

	subs, err := inboxfs.ListUsers(inboxRoot)
	if err != nil {
		return RepairStats{}, err
	}

	var (
		mu    sync.Mutex
		stats RepairStats
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(repairConcurrency)

	for _, sub := range subs {
		sub := sub
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			us, err := repairUser(ctx, inboxRoot, sub, opts)
			if err != nil {
				logger.Warn("thumbnail repair skipped user", "user", sub, "error", err)
			}
			us.Users = 1
			mu.Lock()
			stats.add(us)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return stats, err
	}

	logger.Info("thumbnail repair sweep done",
		"users", stats.Users, "checked", stats.Checked,
		"generated", stats.Generated, "failed", stats.Failed)
	return stats, nil
}

func repairUser(ctx context.Context, inboxRoot, sub string, opts Options) (RepairStats, error) {
	var us RepairStats

	items, err := store.OpenItems(inboxfs.ItemsDBPath(inboxRoot, sub))
	if err != nil {
		return us, fmt.Errorf("open catalog: %w", err)
	}
	defer items.Close()

	rows, err := items.ListPage(
		"it.kind = ? AND it.thumb_status != ?",
		[]any{string(item.KindImage), item.ThumbOK},
		-1, 0, "")
	if err != nil {
		return us, err
	}

	for _, it := range rows {
		if err := ctx.Err(); err != nil {
			return us, err
		}
		us.Checked++
		res, err := Ensure(items, inboxRoot, sub, it, opts)
		if err != nil {
			return us, err
		}
		switch res.Status {
		case item.ThumbOK:
			us.Generated++
		case item.ThumbFailed:
			us.Failed++
		}
	}
	return us, nil
}
