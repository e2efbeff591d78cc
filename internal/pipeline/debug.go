package pipeline

import (
	"context"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/sells-group/portfolio-cli/internal/browser"
)

// Dumper writes a screenshot and the markup of scrape steps for offline
// debugging. A nil Dumper does nothing.
type Dumper struct {
	dir string
}

// NewDumper returns a Dumper writing to dir, or nil when disabled.
func NewDumper(enabled bool, dir string) *Dumper {
	if !enabled {
		return nil
	}
	return &Dumper{dir: dir}
}

// Capture saves <step>.png, and <step>.html when html is non-empty.
// Failures are logged and never fail the scrape.
func (d *Dumper) Capture(ctx context.Context, page browser.Page, step, html string) {
	if d == nil {
		return
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		zap.L().Warn("pipeline: create debug dir", zap.Error(err))
		return
	}

	if png, err := page.Screenshot(ctx); err != nil {
		zap.L().Warn("pipeline: screenshot", zap.String("step", step), zap.Error(err))
	} else {
		d.write(step+".png", png)
	}

	if html != "" {
		d.write(step+".html", []byte(html))
	}
}

func (d *Dumper) write(name string, data []byte) {
	path := filepath.Join(d.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		zap.L().Warn("pipeline: write debug file", zap.String("path", path), zap.Error(err))
		return
	}
	zap.L().Debug("pipeline: debug file saved", zap.String("path", path))
}
