package ingest_test

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/inboxvault/inboxvault/internal/fileutil"
	"github.com/inboxvault/inboxvault/internal/inboxfs"
	"github.com/inboxvault/inboxvault/internal/ingest"
	"github.com/inboxvault/inboxvault/internal/item"
	"github.com/inboxvault/inboxvault/internal/store"
	"github.com/inboxvault/inboxvault/internal/testutil/dbtest"
)

func tinyPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newService(t *testing.T, root string, quota int64) *ingest.Service {
	t.Helper()
	return &ingest.Service{
		InboxRoot: root,
		QuotaForUser: func(string) int64 {
			return quota
		},
	}
}

func TestIngestStoresFileAndRow(t *testing.T) {
	ib := dbtest.NewInbox(t)
	svc := newService(t, ib.Root, 1<<30)

	res, err := svc.Ingest(ingest.Request{
		UserSub:  "alice",
		Filename: "明細.pdf",
		Data:     []byte("pdf bytes"),
		TagsJSON: item.TagsJSON([]string{"経費"}),
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if res.Kind != item.KindPDF {
		t.Errorf("Kind = %q", res.Kind)
	}
	if res.SizeBytes != int64(len("pdf bytes")) {
		t.Errorf("SizeBytes = %d", res.SizeBytes)
	}

	// The stored file exists at stored_rel under the user root.
	path := inboxfs.FilePath(ib.Root, "alice", res.StoredRel)
	if !fileutil.FileExists(path) {
		t.Fatalf("stored file missing at %s", path)
	}

	// The stored name is <item_id>__<sanitized original>.
	base := filepath.Base(res.StoredRel)
	if base != res.ItemID+"__明細.pdf" {
		t.Errorf("stored basename = %q", base)
	}

	// The catalog row matches.
	items, err := store.OpenItems(inboxfs.ItemsDBPath(ib.Root, "alice"))
	if err != nil {
		t.Fatal(err)
	}
	defer items.Close()

	it, err := items.Get(res.ItemID)
	if err != nil || it == nil {
		t.Fatalf("catalog row: %+v, %v", it, err)
	}
	if it.OriginalName != "明細.pdf" || it.Kind != item.KindPDF {
		t.Errorf("row = %+v", it)
	}
	if it.TagsJSON != `["経費"]` {
		t.Errorf("tags_json = %q", it.TagsJSON)
	}
	if it.AddedAt == "" {
		t.Error("added_at must be set")
	}
	if it.OriginType != "" || it.OriginUser != "" {
		t.Errorf("direct upload should have no origin, got %+v", it)
	}
}

func TestIngestMissingRoot(t *testing.T) {
	svc := newService(t, filepath.Join(t.TempDir(), "missing"), 1<<30)

	_, err := svc.Ingest(ingest.Request{UserSub: "u", Filename: "a.txt", Data: []byte("x")})

	var na *item.NotAvailableError
	if !errors.As(err, &na) {
		t.Fatalf("err = %v, want NotAvailableError", err)
	}
}

func TestIngestQuotaExceeded(t *testing.T) {
	ib := dbtest.NewInbox(t)

	// Quota counts the whole user tree, catalog databases included, so
	// the cap is clamped relative to measured usage rather than a fixed
	// byte count.
	quota := int64(1 << 30)
	svc := &ingest.Service{
		InboxRoot:    ib.Root,
		QuotaForUser: func(string) int64 { return quota },
	}

	if _, err := svc.Ingest(ingest.Request{
		UserSub:  "u",
		Filename: "a.bin",
		Data:     make([]byte, 60),
	}); err != nil {
		t.Fatalf("first ingest: %v", err)
	}

	used, _ := svc.UsageForUser("u")
	quota = used // any further byte exceeds

	_, err := svc.Ingest(ingest.Request{
		UserSub:  "u",
		Filename: "b.bin",
		Data:     make([]byte, 60),
	})

	var qe *item.QuotaExceededError
	if !errors.As(err, &qe) {
		t.Fatalf("err = %v, want QuotaExceededError", err)
	}
	if qe.Incoming != 60 || qe.Quota != used {
		t.Errorf("quota error = %+v", qe)
	}
	if qe.Current < 60 {
		t.Errorf("Current = %d, should include the first file", qe.Current)
	}

	// No second file was written.
	var count int
	root := inboxfs.UserRoot(ib.Root, "u")
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err == nil && d.Type().IsRegular() && filepath.Ext(path) == ".bin" {
			count++
		}
		return nil
	})
	if count != 1 {
		t.Errorf("found %d .bin files, want 1", count)
	}
}

func TestIngestQuotaBoundaryFits(t *testing.T) {
	ib := dbtest.NewInbox(t)

	quota := int64(1 << 30)
	svc := &ingest.Service{
		InboxRoot:    ib.Root,
		QuotaForUser: func(string) int64 { return quota },
	}

	if _, err := svc.Ingest(ingest.Request{
		UserSub:  "u",
		Filename: "a.bin",
		Data:     make([]byte, 60),
	}); err != nil {
		t.Fatalf("first ingest: %v", err)
	}

	// A deliberately failed attempt reports Current exactly as the
	// quota check measures it, with the tree left untouched.
	quota = 1
	_, err := svc.Ingest(ingest.Request{
		UserSub:  "u",
		Filename: "b.bin",
		Data:     make([]byte, 60),
	})
	var qe *item.QuotaExceededError
	if !errors.As(err, &qe) {
		t.Fatalf("err = %v, want QuotaExceededError", err)
	}

	// Filling the quota to the exact byte succeeds; only strictly
	// exceeding it fails.
	quota = qe.Current + 60
	res, err := svc.Ingest(ingest.Request{
		UserSub:  "u",
		Filename: "b.bin",
		Data:     make([]byte, 60),
	})
	if err != nil {
		t.Fatalf("ingest at exact quota: %v", err)
	}
	if res.SizeBytes != 60 {
		t.Errorf("SizeBytes = %d", res.SizeBytes)
	}
}

func TestIngestRollsBackFileOnInsertFailure(t *testing.T) {
	ib := dbtest.NewInbox(t)
	items := ib.OpenItems("u")
	if _, err := items.DB().Exec(`
		CREATE TRIGGER reject_inserts BEFORE INSERT ON inbox_items
		BEGIN SELECT RAISE(ABORT, 'catalog closed for writes'); END`); err != nil {
		t.Fatal(err)
	}

	svc := newService(t, ib.Root, 1<<30)
	_, err := svc.Ingest(ingest.Request{
		UserSub:  "u",
		Filename: "blocked.txt",
		Data:     []byte("payload"),
	})

	var fe *item.IngestFailedError
	if !errors.As(err, &fe) {
		t.Fatalf("err = %v, want IngestFailedError", err)
	}

	// The just-written file must not survive the failed insert.
	matches, err := filepath.Glob(filepath.Join(
		inboxfs.UserRoot(ib.Root, "u"), "text", "files", "*", "*", "*", "*"))
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 0 {
		t.Errorf("rolled-back files remain: %v", matches)
	}
}

func TestIngestImageGetsThumbnail(t *testing.T) {
	ib := dbtest.NewInbox(t)
	svc := newService(t, ib.Root, 1<<30)

	res, err := svc.Ingest(ingest.Request{
		UserSub:  "u",
		Filename: "dot.png",
		Data:     tinyPNG(t),
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.ThumbStatus != item.ThumbOK {
		t.Fatalf("ThumbStatus = %q, want ok", res.ThumbStatus)
	}
	if !fileutil.FileExists(inboxfs.ThumbPath(ib.Root, "u", res.ItemID)) {
		t.Error("thumbnail file missing")
	}
}

func TestIngestCorruptImageRecordsFailure(t *testing.T) {
	ib := dbtest.NewInbox(t)
	svc := newService(t, ib.Root, 1<<30)

	res, err := svc.Ingest(ingest.Request{
		UserSub:  "u",
		Filename: "broken.png",
		Data:     []byte("not an image"),
	})
	if err != nil {
		t.Fatalf("ingest itself must succeed: %v", err)
	}
	if res.ThumbStatus != item.ThumbFailed {
		t.Errorf("ThumbStatus = %q, want failed", res.ThumbStatus)
	}

	items, err := store.OpenItems(inboxfs.ItemsDBPath(ib.Root, "u"))
	if err != nil {
		t.Fatal(err)
	}
	defer items.Close()
	it, _ := items.Get(res.ItemID)
	if it.ThumbError == "" {
		t.Error("thumb_error should carry the decode diagnostic")
	}
}
