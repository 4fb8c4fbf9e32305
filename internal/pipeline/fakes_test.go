package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/nao1215/autoarchiver/internal/model"
	"github.com/nao1215/autoarchiver/internal/module"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recorder collects calls made into fake modules.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, fmt.Sprintf(format, args...))
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

type fakeFeeder struct {
	urls []string
	errs []error
}

func (f *fakeFeeder) Feed(ctx context.Context) iter.Seq2[*model.Item, error] {
	return func(yield func(*model.Item, error) bool) {
		for _, err := range f.errs {
			if !yield(nil, err) {
				return
			}
		}
		for _, u := range f.urls {
			item, err := model.NewItemFromURL(u)
			if !yield(item, err) {
				return
			}
		}
	}
}

type fakeExtractor struct {
	name     string
	suitable bool
	panics   bool
	sanitize func(string) string
	download func(ctx context.Context, item *model.Item) (*model.Item, error)
	rec      *recorder
}

func (f *fakeExtractor) Suitable(string) bool { return f.suitable }

func (f *fakeExtractor) SanitizeURL(u string) string {
	if f.sanitize == nil {
		return u
	}
	return f.sanitize(u)
}

func (f *fakeExtractor) Download(ctx context.Context, item *model.Item) (*model.Item, error) {
	if f.rec != nil {
		f.rec.add("download:%s", f.name)
	}
	if f.panics {
		panic("extractor exploded")
	}
	if f.download == nil {
		return nil, nil
	}
	return f.download(ctx, item)
}

type fakeEnricher struct {
	name   string
	enrich func(ctx context.Context, item *model.Item) error
	rec    *recorder
}

func (f *fakeEnricher) Enrich(ctx context.Context, item *model.Item) error {
	if f.rec != nil {
		f.rec.add("enrich:%s", f.name)
	}
	return f.enrich(ctx, item)
}

type fakeDatabase struct {
	rec   *recorder
	cache *model.Item
}

func (f *fakeDatabase) Fetch(context.Context, *model.Item) (*model.Item, error) {
	return f.cache, nil
}

func (f *fakeDatabase) Started(context.Context, *model.Item) error {
	f.rec.add("started")
	return nil
}

func (f *fakeDatabase) Failed(_ context.Context, _ *model.Item, reason string) error {
	f.rec.add("failed:%s", reason)
	return nil
}

func (f *fakeDatabase) Aborted(context.Context, *model.Item) error {
	f.rec.add("aborted")
	return nil
}

func (f *fakeDatabase) Done(_ context.Context, _ *model.Item, cached bool) error {
	f.rec.add("done:%v", cached)
	return errors.New("done notifications are soft")
}

type fakeStorage struct {
	mu      sync.Mutex
	uploads []string
	err     error
}

func (f *fakeStorage) CDNURL(m *model.Media) string { return "fake://" + filepath.Base(m.Filename) }

func (f *fakeStorage) Upload(context.Context, io.Reader, string) error { return nil }

func (f *fakeStorage) Store(_ context.Context, m *model.Media, _ *model.Item) error {
	if f.err != nil {
		return f.err
	}
	if m.IsStoredIn("fake") {
		return nil
	}
	f.mu.Lock()
	f.uploads = append(f.uploads, filepath.Base(m.Filename))
	f.mu.Unlock()
	m.AddURL(f.CDNURL(m))
	m.MarkStored("fake")
	return nil
}

func (f *fakeStorage) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.uploads)
}

type fakeFormatter struct {
	dir string
}

func (f *fakeFormatter) Format(_ context.Context, item *model.Item) (*model.Media, error) {
	p := filepath.Join(f.dir, "summary.html")
	if err := os.WriteFile(p, []byte("<h1>"+item.Title()+"</h1>"), 0o600); err != nil {
		return nil, err
	}
	return model.NewMedia(p), nil
}

var _ module.Sanitizer = (*fakeExtractor)(nil)

// pageExtractor returns an extractor that succeeds with a title and one file.
func pageExtractor(dir string) *fakeExtractor {
	return &fakeExtractor{
		name:     "page",
		suitable: true,
		download: func(_ context.Context, item *model.Item) (*model.Item, error) {
			p := filepath.Join(dir, "page-"+filepath.Base(item.MustURL())+".html")
			if err := os.WriteFile(p, []byte(item.MustURL()), 0o600); err != nil {
				return nil, err
			}
			res := model.NewItem().SetTitle("Example")
			if err := res.AddMedia(model.NewMedia(p), ""); err != nil {
				return nil, err
			}
			return res.Success("page"), nil
		},
	}
}
