// Package export builds ZIP archives from a selection of catalog items
// for bulk download.
package export

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"sort"

	"github.com/inboxvault/inboxvault/internal/fileutil"
	"github.com/inboxvault/inboxvault/internal/inboxfs"
	"github.com/inboxvault/inboxvault/internal/store"
)

// ZipResult reports which of the requested items made it into the
// archive. IDs fail individually (missing row, missing file) without
// failing the archive as a whole.
type ZipResult struct {
	Data      []byte
	OKIDs     []string
	FailedIDs []string
}

// BuildZip archives the selected items of one user. Archive entries are
// named <kind>/<item_id>__<sanitized_name> so collisions are
// impossible and the kind grouping survives extraction. IDs are
// processed in sorted order for deterministic output.
func BuildZip(inboxRoot, userSub string, itemIDs []string) (*ZipResult, error) {
	items, err := store.OpenItems(inboxfs.ItemsDBPath(inboxRoot, userSub))
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer items.Close()

	ids := append([]string{}, itemIDs...)
	sort.Strings(ids)

	res := &ZipResult{}
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, id := range ids {
		it, err := items.Get(id)
		if err != nil {
			return nil, err
		}
		if it == nil || it.StoredRel == "" {
			res.FailedIDs = append(res.FailedIDs, id)
			continue
		}

		path := inboxfs.FilePath(inboxRoot, userSub, it.StoredRel)
		data, err := os.ReadFile(path)
		if err != nil {
			res.FailedIDs = append(res.FailedIDs, id)
			continue
		}

		name := it.OriginalName
		if name == "" {
			name = it.StoredRel
		}
		arcname := fmt.Sprintf("%s/%s__%s", it.Kind, id, fileutil.SafeFilename(name))

		w, err := zw.Create(arcname)
		if err != nil {
			return nil, fmt.Errorf("create zip entry %s: %w", arcname, err)
		}
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("write zip entry %s: %w", arcname, err)
		}
		res.OKIDs = append(res.OKIDs, id)
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalize zip: %w", err)
	}
	res.Data = buf.Bytes()
	return res, nil
}
