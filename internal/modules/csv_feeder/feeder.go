// Package csvfeeder feeds URLs read from CSV files.
package csvfeeder

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/nao1215/autoarchiver/internal/model"
	"github.com/nao1215/autoarchiver/internal/module"
)

var (
	// ErrNoFiles is returned when no input file is configured.
	ErrNoFiles = errors.New("no CSV files configured")

	// ErrColumnNotFound is returned when a named column is not in the header.
	ErrColumnNotFound = errors.New("column not found in header row")
)

// Feeder yields one item per URL cell.
type Feeder struct {
	files  []string
	column string
	logger *slog.Logger
}

// New is the module factory.
func New(env *module.Env) (any, error) {
	files := env.Options.Strings("files")
	if len(files) == 0 {
		return nil, ErrNoFiles
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return nil, fmt.Errorf("invalid input file: %w", err)
		}
	}
	return &Feeder{
		files:  files,
		column: strings.TrimSpace(env.Options.String("column")),
		logger: env.Logger,
	}, nil
}

// Feed implements module.Feeder. Files are read lazily, one after the other.
func (f *Feeder) Feed(ctx context.Context) iter.Seq2[*model.Item, error] {
	return func(yield func(*model.Item, error) bool) {
		for _, file := range f.files {
			if !f.feedFile(ctx, file, yield) {
				return
			}
		}
	}
}

// feedFile reports whether feeding should continue with the next file.
func (f *Feeder) feedFile(ctx context.Context, file string, yield func(*model.Item, error) bool) bool {
	fh, err := os.Open(file)
	if err != nil {
		return yield(nil, fmt.Errorf("failed to open %s: %w", file, err))
	}
	defer fh.Close()

	r := csv.NewReader(fh)
	r.FieldsPerRecord = -1

	first, err := r.Read()
	if errors.Is(err, io.EOF) {
		return true
	}
	if err != nil {
		return yield(nil, fmt.Errorf("failed to read %s: %w", file, err))
	}

	col, header, err := f.resolveColumn(first)
	if err != nil {
		return yield(nil, fmt.Errorf("%s: %w", file, err))
	}
	if header {
		f.logger.Debug("skipping header row", "file", file, "row", first)
	} else if !f.emit(first, col, yield) {
		return false
	}

	for {
		if ctx.Err() != nil {
			return false
		}
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			return true
		}
		if err != nil {
			if !yield(nil, fmt.Errorf("failed to read %s: %w", file, err)) {
				return false
			}
			continue
		}
		if !f.emit(row, col, yield) {
			return false
		}
	}
}

// resolveColumn finds the URL column and reports whether the first row is a
// header.
func (f *Feeder) resolveColumn(first []string) (int, bool, error) {
	if f.column == "" {
		return 0, !isURL(cell(first, 0)), nil
	}
	if n, err := strconv.Atoi(f.column); err == nil {
		return n, !isURL(cell(first, n)), nil
	}
	idx := slices.Index(first, f.column)
	if idx < 0 {
		return 0, false, fmt.Errorf("%w: %q in %v", ErrColumnNotFound, f.column, first)
	}
	return idx, true, nil
}

func (f *Feeder) emit(row []string, col int, yield func(*model.Item, error) bool) bool {
	raw := strings.TrimSpace(cell(row, col))
	if !isURL(raw) {
		f.logger.Warn("not a valid URL in row, skipping", "row", row)
		return true
	}
	item, err := model.NewItemFromURL(raw)
	if err != nil {
		return yield(nil, err)
	}
	return yield(item, nil)
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

func isURL(s string) bool {
	u, err := url.Parse(strings.TrimSpace(s))
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
