package module

import (
	"context"
	"io"
	"iter"

	"github.com/nao1215/autoarchiver/internal/model"
)

// Feeder produces the work items of a run. The sequence may be infinite; it
// is consumed lazily and in order. An error yielded with a nil item is logged
// and skipped.
type Feeder interface {
	Feed(ctx context.Context) iter.Seq2[*model.Item, error]
}

// Extractor downloads the content behind a URL.
type Extractor interface {
	// Suitable reports whether the extractor handles the URL.
	Suitable(url string) bool
	// Download returns a result item, or nil when the extractor declines.
	Download(ctx context.Context, item *model.Item) (*model.Item, error)
}

// Sanitizer is implemented by extractors that canonicalize URLs before any
// other processing, for example by stripping tracking parameters.
type Sanitizer interface {
	SanitizeURL(url string) string
}

// Enricher adds attributes or media to an item in place.
type Enricher interface {
	Enrich(ctx context.Context, item *model.Item) error
}

// Database records the lifecycle of items and may answer from a cache.
type Database interface {
	// Fetch returns a previously archived result or nil.
	Fetch(ctx context.Context, item *model.Item) (*model.Item, error)
	Started(ctx context.Context, item *model.Item) error
	Failed(ctx context.Context, item *model.Item, reason string) error
	Aborted(ctx context.Context, item *model.Item) error
	Done(ctx context.Context, item *model.Item, cached bool) error
}

// Storage persists media assets.
type Storage interface {
	// CDNURL returns the public location of a stored asset.
	CDNURL(m *model.Media) string
	// Upload writes the content under key.
	Upload(ctx context.Context, r io.Reader, key string) error
	// Store assigns the asset key if needed, uploads the asset and records
	// its URL. Storing an asset twice in the same storage is a no-op.
	Store(ctx context.Context, m *model.Media, item *model.Item) error
}

// Formatter renders an item into a single asset, or nil.
type Formatter interface {
	Format(ctx context.Context, item *model.Item) (*model.Media, error)
}

// Setuper is implemented by modules that need initialization after their
// options are known, e.g. starting a daemon.
type Setuper interface {
	Setup(ctx context.Context) error
}

// Cleaner is implemented by modules that hold resources for the whole run.
type Cleaner interface {
	Cleanup() error
}

// implements reports whether inst satisfies the contract of c.
func implements(inst any, c Capability) bool {
	switch c {
	case CapFeeder:
		_, ok := inst.(Feeder)
		return ok
	case CapExtractor:
		_, ok := inst.(Extractor)
		return ok
	case CapEnricher:
		_, ok := inst.(Enricher)
		return ok
	case CapDatabase:
		_, ok := inst.(Database)
		return ok
	case CapStorage:
		_, ok := inst.(Storage)
		return ok
	case CapFormatter:
		_, ok := inst.(Formatter)
		return ok
	}
	return false
}
