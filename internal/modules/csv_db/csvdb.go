// Package csvdb appends archived results to a CSV file.
package csvdb

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/nao1215/autoarchiver/internal/model"
	"github.com/nao1215/autoarchiver/internal/module"
	consoledb "github.com/nao1215/autoarchiver/internal/modules/console_db"
)

// Header is the first row of a new CSV file.
var Header = []string{"url", "status", "title", "processed_at", "media", "metadata"}

// ErrNoFile is returned when csv_file is empty.
var ErrNoFile = errors.New("csv_file must not be empty")

// DB logs the lifecycle like console_db and appends a row on Done.
type DB struct {
	*consoledb.DB

	path string
	mu   sync.Mutex
	lock *flock.Flock
}

// New is the module factory.
func New(env *module.Env) (any, error) {
	path := env.Options.String("csv_file")
	if path == "" {
		return nil, ErrNoFile
	}
	return &DB{
		DB:   consoledb.NewDB(env.Logger),
		path: path,
		lock: flock.New(path + ".lock"),
	}, nil
}

// Done implements module.Database.
func (d *DB) Done(ctx context.Context, item *model.Item, cached bool) error {
	if err := d.DB.Done(ctx, item, cached); err != nil {
		return err
	}
	row, err := Row(item)
	if err != nil {
		return err
	}
	return d.append(ctx, row)
}

func (d *DB) append(ctx context.Context, row []string) (err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if dir := filepath.Dir(d.path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	ok, err := d.lock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("acquire lock: %s is busy", d.path)
	}
	defer func() { _ = d.lock.Unlock() }() //nolint:errcheck // lock file is reused

	f, err := os.OpenFile(d.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", d.path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", d.path, cerr)
		}
	}()

	fi, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", d.path, err)
	}
	w := csv.NewWriter(f)
	if fi.Size() == 0 {
		if err := w.Write(Header); err != nil {
			return err
		}
	}
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to write %s: %w", d.path, err)
	}
	return nil
}

// Row renders item as a CSV row matching Header. Media are listed once each
// by their stored URLs, the final media included; attributes as a JSON object.
func Row(item *model.Item) ([]string, error) {
	urls := []string{}
	for _, m := range item.Media {
		for _, u := range m.URLs {
			if !slices.Contains(urls, u) {
				urls = append(urls, u)
			}
		}
	}
	mediaJSON, err := json.Marshal(urls)
	if err != nil {
		return nil, err
	}
	attrs := make(map[string]any)
	for _, k := range item.Keys() {
		attrs[k] = item.Get(k)
	}
	metaJSON, err := json.Marshal(attrs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode attributes: %w", err)
	}
	return []string{
		item.MustURL(),
		item.Status,
		item.Title(),
		item.ProcessedAt.UTC().Format(time.RFC3339),
		string(mediaJSON),
		string(metaJSON),
	}, nil
}
