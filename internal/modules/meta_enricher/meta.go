// Package metaenricher records archive sizes and durations.
package metaenricher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/nao1215/autoarchiver/internal/model"
	"github.com/nao1215/autoarchiver/internal/module"
)

// Property and attribute keys.
const (
	PropBytes       = "bytes"
	PropSize        = "size"
	KeyTotalBytes   = "total_bytes"
	KeyTotalSize    = "total_size"
	KeyDurationSecs = "archive_duration_seconds"
)

// Enricher adds size and duration information.
type Enricher struct {
	logger *slog.Logger
	now    func() time.Time
}

// New is the module factory.
func New(env *module.Env) (any, error) {
	return &Enricher{logger: env.Logger, now: time.Now}, nil
}

// Enrich implements module.Enricher. Media files that cannot be read are
// left without size properties and reported after the others were counted.
func (e *Enricher) Enrich(ctx context.Context, item *model.Item) error {
	if item.IsEmpty() {
		e.logger.Debug("nothing to measure", "url", item.MustURL())
		return nil
	}

	var total int64
	var errs []error
	for _, m := range item.AllMedia() {
		if err := ctx.Err(); err != nil {
			return err
		}
		fi, err := os.Stat(m.Filename)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to stat media file: %w", err))
			continue
		}
		m.Set(PropBytes, fi.Size())
		m.Set(PropSize, humanize.IBytes(uint64(fi.Size()))) //nolint:gosec // sizes are never negative
		total += fi.Size()
	}
	item.Set(KeyTotalBytes, total)
	item.Set(KeyTotalSize, humanize.IBytes(uint64(total))) //nolint:gosec // sizes are never negative

	d := e.now().Sub(item.ProcessedAt)
	item.Set(KeyDurationSecs, int64(d/time.Second))
	e.logger.Debug("archive measured", "url", item.MustURL(), "bytes", total, "duration", d)
	return errors.Join(errs...)
}
