// Package sqlitedb records archive history in SQLite and serves cached
// results.
package sqlitedb

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/nao1215/autoarchiver/internal/config"
	"github.com/nao1215/autoarchiver/internal/database"
	"github.com/nao1215/autoarchiver/internal/model"
	"github.com/nao1215/autoarchiver/internal/module"
)

// DB implements module.Database on top of database.ArchiveDB.
type DB struct {
	adb      *database.ArchiveDB
	useCache bool
	logger   *slog.Logger
}

// New is the module factory. The database file is opened, and created when
// missing, right away.
func New(env *module.Env) (any, error) {
	path := env.Options.String("db_file")
	if path == "" {
		path = filepath.Join(config.XDGDataDir(), database.DefaultFileName)
	}
	adb, err := database.Open(path, database.DefaultOptions())
	if err != nil {
		return nil, err
	}
	useCache := true
	if env.Options.Has("use_cache") {
		useCache = env.Options.Bool("use_cache")
	}
	env.Logger.Debug("opened archive database", "path", adb.Path(), "use_cache", useCache)
	return &DB{adb: adb, useCache: useCache, logger: env.Logger}, nil
}

// Fetch implements module.Database. It returns the most complete successful
// result recorded for the item URL.
func (d *DB) Fetch(ctx context.Context, item *model.Item) (*model.Item, error) {
	if !d.useCache {
		return nil, nil
	}
	u, err := item.URL()
	if err != nil {
		return nil, err
	}
	results, err := d.adb.Results(ctx, u)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	d.logger.Debug("found cached results", "url", u, "count", len(results))
	return model.ChooseMostComplete(results), nil
}

// Started implements module.Database.
func (d *DB) Started(ctx context.Context, item *model.Item) error {
	return d.insert(ctx, database.EventStarted, item, "", false)
}

// Failed implements module.Database.
func (d *DB) Failed(ctx context.Context, item *model.Item, reason string) error {
	return d.insert(ctx, database.EventFailed, item, reason, false)
}

// Aborted implements module.Database. It is usually called after the run
// context was cancelled, so the write ignores cancellation.
func (d *DB) Aborted(ctx context.Context, item *model.Item) error {
	return d.insert(context.WithoutCancel(ctx), database.EventAborted, item, "", false)
}

// Done implements module.Database.
func (d *DB) Done(ctx context.Context, item *model.Item, cached bool) error {
	return d.insert(ctx, database.EventDone, item, "", cached)
}

func (d *DB) insert(ctx context.Context, event database.Event, item *model.Item, reason string, cached bool) error {
	_, err := d.adb.Insert(ctx, event, item, reason, cached)
	return err
}

// History returns the recorded events for url, newest first.
func (d *DB) History(ctx context.Context, url string) ([]database.Record, error) {
	return d.adb.History(ctx, url)
}

// Cleanup implements module.Cleaner.
func (d *DB) Cleanup() error {
	return d.adb.Close()
}
