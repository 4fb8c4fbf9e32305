// Package clifeeder feeds the URLs passed on the command line.
package clifeeder

import (
	"context"
	"errors"
	"iter"
	"log/slog"

	"github.com/nao1215/autoarchiver/internal/model"
	"github.com/nao1215/autoarchiver/internal/module"
)

// ErrNoURLs is returned when the feeder is built without any URL.
var ErrNoURLs = errors.New("no URLs provided; pass at least one URL or configure another feeder")

// Folder is the storage folder of every fed item.
const Folder = "cli"

// Feeder yields one item per configured URL.
type Feeder struct {
	urls   []string
	logger *slog.Logger
}

// New is the module factory.
func New(env *module.Env) (any, error) {
	urls := env.Options.Strings("urls")
	if len(urls) == 0 {
		return nil, ErrNoURLs
	}
	return &Feeder{urls: urls, logger: env.Logger}, nil
}

// Feed implements module.Feeder.
func (f *Feeder) Feed(ctx context.Context) iter.Seq2[*model.Item, error] {
	return func(yield func(*model.Item, error) bool) {
		for _, u := range f.urls {
			if ctx.Err() != nil {
				return
			}
			item, err := model.NewItemFromURL(u)
			if err != nil {
				if !yield(nil, err) {
					return
				}
				continue
			}
			item.SetContext(model.CtxFolder, Folder)
			f.logger.Debug("feeding url", "url", u)
			if !yield(item, nil) {
				return
			}
		}
		f.logger.Info("fed command line urls", "count", len(f.urls))
	}
}
