// Package consoledb reports item lifecycle events through the logger.
package consoledb

import (
	"context"
	"log/slog"

	"github.com/nao1215/autoarchiver/internal/model"
	"github.com/nao1215/autoarchiver/internal/module"
)

// DB logs lifecycle events and never answers from a cache. Other databases
// embed it to get the same logging.
type DB struct {
	logger *slog.Logger
}

// New is the module factory.
func New(env *module.Env) (any, error) {
	return NewDB(env.Logger), nil
}

// NewDB creates a DB writing to logger.
func NewDB(logger *slog.Logger) *DB {
	if logger == nil {
		logger = slog.Default()
	}
	return &DB{logger: logger}
}

// Fetch implements module.Database. It never has a result.
func (d *DB) Fetch(context.Context, *model.Item) (*model.Item, error) {
	return nil, nil
}

// Started implements module.Database.
func (d *DB) Started(_ context.Context, item *model.Item) error {
	d.logger.Info("STARTED", "url", item.MustURL())
	return nil
}

// Failed implements module.Database.
func (d *DB) Failed(_ context.Context, item *model.Item, reason string) error {
	d.logger.Error("FAILED", "url", item.MustURL(), "reason", reason)
	return nil
}

// Aborted implements module.Database.
func (d *DB) Aborted(_ context.Context, item *model.Item) error {
	d.logger.Warn("ABORTED", "url", item.MustURL())
	return nil
}

// Done implements module.Database.
func (d *DB) Done(_ context.Context, item *model.Item, cached bool) error {
	d.logger.Info("DONE",
		"url", item.MustURL(),
		"status", item.Status,
		"cached", cached,
		"media", len(item.Media),
	)
	return nil
}
