// Package diag writes failure artifacts (screenshots, page dumps) and the
// profile thumbnail shown with the success notification.
package diag

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"regexp"

	"github.com/nfnt/resize"
	"go.uber.org/zap"

	"github.com/v0xg/freshen/internal/browser"
)

// Artifact names.
const (
	BeforeEditSearch  = "before_edit_search"
	EditButtonMissing = "edit_button_missing"
	ErrorScreenshot   = "error_screenshot"
	DebugPageSource   = "debug_page_source"
	ProfileThumbnail  = "profile_thumbnail"
)

// DefaultThumbnailWidth is the notification icon width in pixels.
const DefaultThumbnailWidth = 256

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Recorder writes artifacts of one run under Dir, prefixed by the run ID
// so repeated runs never overwrite each other.
type Recorder struct {
	Dir   string
	RunID string
	log   *zap.Logger
}

// New returns a Recorder. An empty dir disables recording.
func New(dir, runID string, log *zap.Logger) *Recorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{Dir: dir, RunID: runID, log: log}
}

// Enabled reports whether artifacts are written at all.
func (r *Recorder) Enabled() bool { return r != nil && r.Dir != "" }

// Path returns the file an artifact name and extension are written to.
func (r *Recorder) Path(name, ext string) string {
	base := unsafeName.ReplaceAllString(name, "_")
	if r.RunID != "" {
		base = r.RunID + "-" + base
	}
	return filepath.Join(r.Dir, base+ext)
}

// Screenshot captures the viewport as <name>.png.
func (r *Recorder) Screenshot(ctx context.Context, page browser.Page, name string) (string, error) {
	if !r.Enabled() {
		return "", nil
	}
	data, err := page.Screenshot(ctx)
	if err != nil {
		return "", fmt.Errorf("diag: screenshot %s: %w", name, err)
	}
	path, err := r.write(r.Path(name, ".png"), data)
	if err != nil {
		return "", err
	}
	r.log.Info("screenshot saved", zap.String("path", path))
	return path, nil
}

// PageDump writes the raw document as <name>.html.
func (r *Recorder) PageDump(ctx context.Context, page browser.Page, name string) (string, error) {
	if !r.Enabled() {
		return "", nil
	}
	doc, err := page.HTML(ctx)
	if err != nil {
		return "", fmt.Errorf("diag: page dump %s: %w", name, err)
	}
	path, err := r.write(r.Path(name, ".html"), []byte(doc))
	if err != nil {
		return "", err
	}
	r.log.Info("page source saved", zap.String("path", path))
	return path, nil
}

// Thumbnail captures the viewport and writes it scaled down to width as
// <name>.png.
func (r *Recorder) Thumbnail(ctx context.Context, page browser.Page, name string, width uint) (string, error) {
	if !r.Enabled() {
		return "", nil
	}
	data, err := page.Screenshot(ctx)
	if err != nil {
		return "", fmt.Errorf("diag: thumbnail %s: %w", name, err)
	}
	small, err := Shrink(data, width)
	if err != nil {
		return "", err
	}
	return r.write(r.Path(name, ".png"), small)
}

func (r *Recorder) write(path string, data []byte) (string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("diag: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("diag: %w", err)
	}
	return path, nil
}

// Shrink decodes a PNG and re-encodes it at most width pixels wide,
// keeping the aspect ratio. Images already narrower are returned as is.
func Shrink(data []byte, width uint) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("diag: decode: %w", err)
	}

	if width == 0 {
		width = DefaultThumbnailWidth
	}
	bounds := img.Bounds()
	if uint(bounds.Dx()) <= width {
		return data, nil
	}

	// Height 0 lets resize keep the aspect ratio
	scaled := resize.Resize(width, 0, img, resize.Lanczos3)

	var buf bytes.Buffer
	if err := png.Encode(&buf, scaled); err != nil {
		return nil, fmt.Errorf("diag: encode: %w", err)
	}
	return buf.Bytes(), nil
}
