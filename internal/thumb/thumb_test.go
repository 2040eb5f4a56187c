package thumb_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/inboxvault/inboxvault/internal/fileutil"
	"github.com/inboxvault/inboxvault/internal/inboxfs"
	"github.com/inboxvault/inboxvault/internal/item"
	"github.com/inboxvault/inboxvault/internal/testutil/dbtest"
	"github.com/inboxvault/inboxvault/internal/thumb"
)

func tinyPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 6))
	for y := 0; y < 6; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 30), G: uint8(y * 40), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestEnsureNonImageNormalizesRecord(t *testing.T) {
	ib := dbtest.NewInbox(t)
	items := ib.OpenItems("u")

	// Stale thumb record on a non-image item.
	it := ib.SeedItem(items,
		dbtest.WithKind(item.KindPDF),
		dbtest.WithThumb("image/thumbs/stale.webp", item.ThumbOK))

	res, err := thumb.Ensure(items, ib.Root, "u", it, thumb.Options{})
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if res.Status != item.ThumbNone || res.Rel != "" {
		t.Errorf("res = %+v, want none", res)
	}

	got, _ := items.Get(it.ItemID)
	if got.ThumbStatus != item.ThumbNone || got.ThumbRel != "" || got.ThumbError != "" {
		t.Errorf("row not normalized: %+v", got)
	}
}

func TestEnsureGeneratesWebp(t *testing.T) {
	ib := dbtest.NewInbox(t)
	items := ib.OpenItems("u")

	it := ib.SeedItem(items, dbtest.WithKind(item.KindImage), dbtest.WithName("photo.png"))
	ib.SeedFile("u", it, tinyPNG(t))

	res, err := thumb.Ensure(items, ib.Root, "u", it, thumb.Options{})
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if res.Status != item.ThumbOK || res.Rel == "" {
		t.Fatalf("res = %+v, want ok with rel", res)
	}

	onDisk := filepath.Join(inboxfs.UserRoot(ib.Root, "u"), res.Rel)
	if !fileutil.FileExists(onDisk) {
		t.Errorf("thumbnail missing at %s", onDisk)
	}
	if onDisk != inboxfs.ThumbPath(ib.Root, "u", it.ItemID) {
		t.Errorf("rel %q does not resolve to the canonical thumb path", res.Rel)
	}

	got, _ := items.Get(it.ItemID)
	if got.ThumbStatus != item.ThumbOK || got.ThumbRel != res.Rel {
		t.Errorf("row = %+v", got)
	}
}

func TestEnsureSkipsWhenAlreadyOnDisk(t *testing.T) {
	ib := dbtest.NewInbox(t)
	items := ib.OpenItems("u")

	it := ib.SeedItem(items, dbtest.WithKind(item.KindImage))
	ib.SeedFile("u", it, tinyPNG(t))

	res, err := thumb.Ensure(items, ib.Root, "u", it, thumb.Options{})
	if err != nil || res.Status != item.ThumbOK {
		t.Fatalf("first Ensure: %+v, %v", res, err)
	}

	// Remove the source. A second pass must not need it because the
	// existing thumbnail is honored.
	if err := os.Remove(inboxfs.FilePath(ib.Root, "u", it.StoredRel)); err != nil {
		t.Fatal(err)
	}
	refreshed, _ := items.Get(it.ItemID)

	again, err := thumb.Ensure(items, ib.Root, "u", refreshed, thumb.Options{})
	if err != nil {
		t.Fatalf("second Ensure: %v", err)
	}
	if again.Status != item.ThumbOK || again.Rel != res.Rel {
		t.Errorf("second pass = %+v, want reuse of %q", again, res.Rel)
	}
}

func TestEnsureRecordsDecodeFailure(t *testing.T) {
	ib := dbtest.NewInbox(t)
	items := ib.OpenItems("u")

	it := ib.SeedItem(items, dbtest.WithKind(item.KindImage), dbtest.WithName("broken.png"))
	ib.SeedFile("u", it, []byte("this is not a png"))

	res, err := thumb.Ensure(items, ib.Root, "u", it, thumb.Options{})
	if err != nil {
		t.Fatalf("Ensure must swallow decode errors, got %v", err)
	}
	if res.Status != item.ThumbFailed || res.Error == "" {
		t.Errorf("res = %+v, want failed with diagnostic", res)
	}

	got, _ := items.Get(it.ItemID)
	if got.ThumbStatus != item.ThumbFailed || got.ThumbError == "" {
		t.Errorf("row = %+v", got)
	}
}

func TestEnsureRecordsMissingSource(t *testing.T) {
	ib := dbtest.NewInbox(t)
	items := ib.OpenItems("u")
	it := ib.SeedItem(items, dbtest.WithKind(item.KindImage)) // no file

	res, err := thumb.Ensure(items, ib.Root, "u", it, thumb.Options{})
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if res.Status != item.ThumbFailed {
		t.Errorf("res = %+v, want failed", res)
	}
}

func TestRepairAll(t *testing.T) {
	ib := dbtest.NewInbox(t)

	// alice: one repairable image, one corrupt image, one pdf.
	aliceItems := ib.OpenItems("alice")
	good := ib.SeedItem(aliceItems, dbtest.WithKind(item.KindImage))
	ib.SeedFile("alice", good, tinyPNG(t))
	bad := ib.SeedItem(aliceItems, dbtest.WithKind(item.KindImage))
	ib.SeedFile("alice", bad, []byte("garbage"))
	ib.SeedItem(aliceItems, dbtest.WithKind(item.KindPDF))

	// bob: an image that already has its thumbnail.
	bobItems := ib.OpenItems("bob")
	done := ib.SeedItem(bobItems, dbtest.WithKind(item.KindImage))
	ib.SeedFile("bob", done, tinyPNG(t))
	if _, err := thumb.Ensure(bobItems, ib.Root, "bob", done, thumb.Options{}); err != nil {
		t.Fatal(err)
	}

	stats, err := thumb.RepairAll(context.Background(), ib.Root, thumb.Options{}, nil)
	if err != nil {
		t.Fatalf("RepairAll: %v", err)
	}

	if stats.Users != 2 {
		t.Errorf("Users = %d, want 2", stats.Users)
	}
	// bob's image is already ok and the pdf is not an image, so only
	// alice's two pending images are checked.
	if stats.Checked != 2 {
		t.Errorf("Checked = %d, want 2", stats.Checked)
	}
	if stats.Generated != 1 || stats.Failed != 1 {
		t.Errorf("stats = %+v", stats)
	}

	got, _ := aliceItems.Get(good.ItemID)
	if got.ThumbStatus != item.ThumbOK {
		t.Errorf("repaired row = %+v", got)
	}
}
