package export_test

import (
	"archive/zip"
	"bytes"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/inboxvault/inboxvault/internal/export"
	"github.com/inboxvault/inboxvault/internal/item"
	"github.com/inboxvault/inboxvault/internal/testutil/dbtest"
)

func TestBuildZip(t *testing.T) {
	ib := dbtest.NewInbox(t)
	items := ib.OpenItems("u")

	a := ib.SeedItem(items, dbtest.WithName("report.pdf"))
	ib.SeedFile("u", a, []byte("pdf data"))
	b := ib.SeedItem(items, dbtest.WithKind(item.KindImage), dbtest.WithName("pic.png"))
	ib.SeedFile("u", b, []byte("png data"))
	missing := ib.SeedItem(items) // row without a file

	res, err := export.BuildZip(ib.Root, "u", []string{b.ItemID, a.ItemID, missing.ItemID, "ghost"})
	if err != nil {
		t.Fatalf("BuildZip: %v", err)
	}

	if len(res.OKIDs) != 2 {
		t.Errorf("OKIDs = %v", res.OKIDs)
	}
	// IDs are processed in sorted order, so "ghost" sorts first.
	if diff := cmp.Diff([]string{"ghost", missing.ItemID}, res.FailedIDs); diff != "" {
		t.Errorf("FailedIDs mismatch (-want +got):\n%s", diff)
	}

	zr, err := zip.NewReader(bytes.NewReader(res.Data), int64(len(res.Data)))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}

	contents := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		data, _ := io.ReadAll(rc)
		rc.Close()
		contents[f.Name] = string(data)
	}

	// Entries are named <kind>/<item_id>__<name>.
	if got := contents["pdf/"+a.ItemID+"__report.pdf"]; got != "pdf data" {
		t.Errorf("pdf entry = %q (archive: %v)", got, keys(contents))
	}
	if got := contents["image/"+b.ItemID+"__pic.png"]; got != "png data" {
		t.Errorf("image entry = %q", got)
	}
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestBuildZipAllMissing(t *testing.T) {
	ib := dbtest.NewInbox(t)
	ib.OpenItems("u")

	res, err := export.BuildZip(ib.Root, "u", []string{"x", "y"})
	if err != nil {
		t.Fatalf("BuildZip: %v", err)
	}
	if len(res.OKIDs) != 0 || len(res.FailedIDs) != 2 {
		t.Errorf("res = %+v", res)
	}
}
