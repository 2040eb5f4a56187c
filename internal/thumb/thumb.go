// Package thumb generates letterboxed WEBP thumbnails for image-kind
// items and keeps the recorded thumb_* columns consistent for every
// other kind.
package thumb

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	// Stdlib decoders.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	// Extended decoders.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/chai2010/webp"
	"golang.org/x/image/draw"

	"github.com/inboxvault/inboxvault/internal/fileutil"
	"github.com/inboxvault/inboxvault/internal/inboxfs"
	"github.com/inboxvault/inboxvault/internal/item"
	"github.com/inboxvault/inboxvault/internal/store"
)

// Default thumbnail geometry and encoding quality.
const (
	DefaultWidth   = 320
	DefaultHeight  = 240
	DefaultQuality = 80
)

// Options control thumbnail generation. The zero value takes the
// defaults.
type Options struct {
	Width   int
	Height  int
	Quality int
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.Quality <= 0 {
		o.Quality = DefaultQuality
	}
	return o
}

// Result is the recorded outcome of one thumbnail pass.
type Result struct {
	Rel    string // relative path under the user root, "" unless Status is ok
	Status string // item.ThumbNone / ThumbOK / ThumbFailed
	Error  string // diagnostic, "" unless Status is failed
}

// Ensure produces (or explicitly withholds) the thumbnail for one item
// and records the outcome on the catalog row.
//
// Decode and encode failures are never returned as errors; they are
// captured in the Result and persisted via UpdateThumb. The returned
// error covers only catalog-update failures.
func Ensure(items *store.ItemStore, inboxRoot, userSub string, it *item.Item, opts Options) (Result, error) {
	opts = opts.withDefaults()

	// Non-image kinds never get a thumbnail. Stale records from earlier
	// data are corrected back to none.
	if it.Kind != item.KindImage {
		if it.ThumbStatus != item.ThumbNone || it.ThumbRel != "" {
			if err := items.UpdateThumb(it.ItemID, "", item.ThumbNone, ""); err != nil {
				return Result{}, err
			}
		}
		return Result{Status: item.ThumbNone}, nil
	}

	userRoot := inboxfs.UserRoot(inboxRoot, userSub)

	// Already generated and still on disk: nothing to do.
	if it.ThumbStatus == item.ThumbOK && it.ThumbRel != "" {
		if fileutil.FileExists(filepath.Join(userRoot, it.ThumbRel)) {
			return Result{Rel: it.ThumbRel, Status: item.ThumbOK}, nil
		}
	}

	srcPath := inboxfs.FilePath(inboxRoot, userSub, it.StoredRel)
	if !fileutil.FileExists(srcPath) {
		return record(items, it.ItemID, Result{
			Status: item.ThumbFailed,
			Error:  fmt.Sprintf("source file missing: %s", it.StoredRel),
		})
	}

	outPath := inboxfs.ThumbPath(inboxRoot, userSub, it.ItemID)
	if err := generate(srcPath, outPath, opts); err != nil {
		return record(items, it.ItemID, Result{
			Status: item.ThumbFailed,
			Error:  err.Error(),
		})
	}

	rel, err := filepath.Rel(userRoot, outPath)
	if err != nil {
		return record(items, it.ItemID, Result{
			Status: item.ThumbFailed,
			Error:  fmt.Sprintf("thumbnail path outside user root: %v", err),
		})
	}

	return record(items, it.ItemID, Result{Rel: rel, Status: item.ThumbOK})
}

func record(items *store.ItemStore, itemID string, r Result) (Result, error) {
	if err := items.UpdateThumb(itemID, r.Rel, r.Status, r.Error); err != nil {
		return Result{}, err
	}
	return r, nil
}

// generate decodes src, letterbox-fits it into the configured canvas on
// a white background and writes a WEBP file at outPath.
func generate(srcPath, outPath string, opts Options) error {
	f, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}

	bounds := src.Bounds()
	sw, sh := bounds.Dx(), bounds.Dy()
	if sw <= 0 || sh <= 0 {
		return fmt.Errorf("empty image: %dx%d", sw, sh)
	}

	canvas := letterbox(src, opts.Width, opts.Height)

	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return fmt.Errorf("create thumb dir: %w", err)
	}

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create thumbnail: %w", err)
	}
	defer out.Close()

	if err := webp.Encode(out, canvas, &webp.Options{Quality: float32(opts.Quality)}); err != nil {
		os.Remove(outPath)
		return fmt.Errorf("encode webp: %w", err)
	}
	return nil
}

// letterbox scales src to fit within (w, h) preserving aspect ratio and
// centers it on a white canvas.
func letterbox(src image.Image, w, h int) *image.RGBA {
	bounds := src.Bounds()
	sw, sh := bounds.Dx(), bounds.Dy()

	scale := min(float64(w)/float64(sw), float64(h)/float64(sh))
	nw := max(1, int(float64(sw)*scale))
	nh := max(1, int(float64(sh)*scale))

	canvas := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)

	x := (w - nw) / 2
	y := (h - nh) / 2
	dst := image.Rect(x, y, x+nw, y+nh)
	draw.CatmullRom.Scale(canvas, dst, src, bounds, draw.Over, nil)

	return canvas
}
