package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/nao1215/autoarchiver/internal/model"
	"github.com/nao1215/autoarchiver/internal/module"
)

// Orchestrator runs the archiving stages over every fed item.
type Orchestrator struct {
	steps *Steps

	logger       *slog.Logger
	workers      int
	allowPrivate bool
	tmpRoot      string
	cleanup      func() error

	// locks serialize calls into each module when workers > 1. A module
	// listed under several capabilities shares one lock.
	locks map[string]*sync.Mutex
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithWorkers sets how many items are processed concurrently. Values below
// one are ignored.
func WithWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithAllowPrivateURLs disables the private address check.
func WithAllowPrivateURLs(allow bool) Option {
	return func(o *Orchestrator) {
		o.allowPrivate = allow
	}
}

// WithTmpRoot sets the directory that holds per-item working directories.
// Empty means the system temporary directory.
func WithTmpRoot(dir string) Option {
	return func(o *Orchestrator) {
		o.tmpRoot = dir
	}
}

// WithCleanup replaces the end-of-run cleanup. By default the Cleanup hook
// of every extractor is called.
func WithCleanup(f func() error) Option {
	return func(o *Orchestrator) {
		o.cleanup = f
	}
}

// New creates an Orchestrator for the given steps.
func New(steps *Steps, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		steps:   steps,
		workers: 1,
		locks:   make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	for _, name := range steps.names() {
		if _, ok := o.locks[name]; !ok {
			o.locks[name] = &sync.Mutex{}
		}
	}
	return o
}

// Run consumes the feeder and processes every item. It returns ErrAborted,
// along with the outcomes gathered so far, when ctx is canceled.
func (o *Orchestrator) Run(ctx context.Context) (*Summary, error) {
	defer o.runCleanup()

	var (
		summary *Summary
		err     error
	)
	if o.workers > 1 {
		summary, err = o.runConcurrent(ctx)
	} else {
		summary, err = o.runSequential(ctx)
	}

	if summary.Processed == 0 && err == nil {
		o.logger.Warn("no work: the feeder produced no items")
	} else {
		o.logger.Info("run finished",
			"processed", summary.Processed,
			"done", summary.Count(StateDone),
			"failed", summary.Count(StateFailed),
			"aborted", summary.Count(StateAborted),
		)
	}
	return summary, err
}

func (o *Orchestrator) runSequential(ctx context.Context) (*Summary, error) {
	summary := &Summary{}
	for item, err := range o.steps.Feeder.Module.Feed(ctx) {
		if ctx.Err() != nil {
			break
		}
		if err != nil {
			o.logger.Error("feeder error", "feeder", o.steps.Feeder.Name, "error", err)
			continue
		}
		if item == nil {
			continue
		}
		summary.Processed++
		out := o.Process(ctx, item)
		summary.Outcomes = append(summary.Outcomes, out)
		if out.State == StateAborted {
			break
		}
	}
	if ctx.Err() != nil {
		return summary, fmt.Errorf("%w: %w", ErrAborted, ctx.Err())
	}
	return summary, nil
}

func (o *Orchestrator) runCleanup() {
	if o.cleanup != nil {
		if err := o.cleanup(); err != nil {
			o.logger.Warn("cleanup failed", "error", err)
		}
		return
	}
	for _, e := range o.steps.Extractors {
		c, ok := e.Module.(module.Cleaner)
		if !ok {
			continue
		}
		if err := c.Cleanup(); err != nil {
			o.logger.Warn("extractor cleanup failed", "extractor", e.Name, "error", err)
		}
	}
}

// Process runs a single item through every stage.
func (o *Orchestrator) Process(ctx context.Context, item *model.Item) (out Outcome) {
	out = Outcome{Item: item, State: StateFed}
	logger := o.logger.With("url", item.GetString(model.KeyURL))

	defer func() {
		if r := recover(); r != nil {
			logger.Error("unexpected error while archiving", "panic", r)
			out.State = StateFailed
			out.Err = fmt.Errorf("%w: %v", ErrUnexpected, r)
			o.notifyFailed(ctx, out.Item, ErrUnexpected.Error())
		}
	}()

	tmp, err := os.MkdirTemp(o.tmpRoot, "autoarchiver-")
	if err != nil {
		return o.fail(ctx, out, fmt.Errorf("%w: failed to create working directory: %w", ErrUnexpected, err), ErrUnexpected.Error())
	}
	defer func() {
		if err := os.RemoveAll(tmp); err != nil {
			logger.Warn("failed to remove working directory", "dir", tmp, "error", err)
		}
	}()
	item.SetContext(model.CtxTmpDir, tmp)

	return o.archive(ctx, logger, out)
}

func (o *Orchestrator) archive(ctx context.Context, logger *slog.Logger, out Outcome) Outcome {
	item := out.Item

	raw, err := item.URL()
	if err != nil {
		return o.fail(ctx, out, err, err.Error())
	}
	original := strings.TrimSpace(raw)
	if err := ValidateURL(original, o.allowPrivate); err != nil {
		logger.Error("refusing to archive URL", "error", err)
		return o.fail(ctx, out, err, err.Error())
	}

	u := o.sanitize(original)
	if u != raw {
		if err := item.SetURL(u); err != nil {
			return o.fail(ctx, out, err, err.Error())
		}
	}
	if u != original {
		item.Set(model.KeyOriginalURL, original)
	}
	logger = o.logger.With("url", u)

	if ctx.Err() != nil {
		return o.abort(ctx, out)
	}

	for _, d := range o.steps.Databases {
		o.soft(logger, d.Name, "started", func() error { return d.Module.Started(ctx, item) })
	}

	if cached := o.fetchCached(ctx, logger, item); cached != nil {
		logger.Debug("found previously archived entry")
		out.Item = cached
		out.Cached = true
		out.State = StateRecording
		for _, d := range o.steps.Databases {
			o.soft(logger, d.Name, "done", func() error { return d.Module.Done(ctx, cached, true) })
		}
		out.State = StateDone
		return out
	}

	if ctx.Err() != nil {
		return o.abort(ctx, out)
	}

	out.State = StateExtracting
	o.extract(ctx, logger, item, u)
	if ctx.Err() != nil {
		return o.abort(ctx, out)
	}
	if !item.IsSuccess() {
		item.Status = model.StatusNoArchiver
		out.State = StateExtractFailed
		logger.Warn("no extractor could archive the URL")
		return o.fail(ctx, out, ErrNoArchiver, model.StatusNoArchiver)
	}
	out.State = StateExtracted

	out.State = StateEnriching
	for _, e := range o.steps.Enrichers {
		if ctx.Err() != nil {
			return o.abort(ctx, out)
		}
		o.soft(logger, e.Name, "enrich", func() error { return e.Module.Enrich(ctx, item) })
	}

	if ctx.Err() != nil {
		return o.abort(ctx, out)
	}
	out.State = StateStoring
	item.RemoveDuplicateMediaByHash()
	if err := o.storeAll(ctx, logger, item, item.AllMedia()); err != nil {
		if ctx.Err() != nil {
			return o.abort(ctx, out)
		}
		return o.fail(ctx, out, err, err.Error())
	}

	if f := o.steps.Formatter; f != nil {
		var final *model.Media
		o.soft(logger, f.Name, "format", func() error {
			m, err := f.Module.Format(ctx, item)
			final = m
			return err
		})
		if final != nil {
			if err := o.storeAll(ctx, logger, item, final.Flatten()); err != nil {
				if ctx.Err() != nil {
					return o.abort(ctx, out)
				}
				return o.fail(ctx, out, err, err.Error())
			}
			item.SetFinalMedia(final)
		}
	}

	if item.IsEmpty() {
		item.Status = model.StatusNothingArchived
	}

	if ctx.Err() != nil {
		return o.abort(ctx, out)
	}
	out.State = StateRecording
	for _, d := range o.steps.Databases {
		o.soft(logger, d.Name, "done", func() error { return d.Module.Done(ctx, item, false) })
	}
	out.State = StateDone
	logger.Info("item archived", "status", item.Status, "media", len(item.Media))
	return out
}

func (o *Orchestrator) sanitize(u string) string {
	for _, e := range o.steps.Extractors {
		s, ok := e.Module.(module.Sanitizer)
		if !ok {
			continue
		}
		o.call(e.Name, func() error {
			if clean := s.SanitizeURL(u); clean != "" {
				u = clean
			}
			return nil
		})
	}
	return u
}

// fetchCached returns the first cached result merged with item, or nil.
func (o *Orchestrator) fetchCached(ctx context.Context, logger *slog.Logger, item *model.Item) *model.Item {
	for _, d := range o.steps.Databases {
		var hit *model.Item
		o.soft(logger, d.Name, "fetch", func() error {
			res, err := d.Module.Fetch(ctx, item)
			hit = res
			return err
		})
		if hit != nil {
			return hit.Merge(item)
		}
	}
	return nil
}

func (o *Orchestrator) extract(ctx context.Context, logger *slog.Logger, item *model.Item, u string) {
	for _, e := range o.steps.Extractors {
		if ctx.Err() != nil {
			return
		}
		var suitable bool
		if err := o.call(e.Name, func() error {
			suitable = e.Module.Suitable(u)
			return nil
		}); err != nil || !suitable {
			continue
		}

		logger.Info("trying extractor", "extractor", e.Name)
		var res *model.Item
		o.soft(logger, e.Name, "download", func() error {
			r, err := e.Module.Download(ctx, item)
			res = r
			return err
		})
		if res == nil {
			continue
		}
		item.Merge(res)
		if item.IsSuccess() {
			return
		}
	}
}

// storeAll stores every asset not yet stored in every storage. Per-asset
// failures are logged; an error wrapping module.ErrUnrecoverable or a
// canceled context stops the stage.
func (o *Orchestrator) storeAll(ctx context.Context, logger *slog.Logger, item *model.Item, media []*model.Media) error {
	for _, m := range media {
		for _, s := range o.steps.Storages {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := o.call(s.Name, func() error { return s.Module.Store(ctx, m, item) })
			if err == nil {
				continue
			}
			if errors.Is(err, module.ErrUnrecoverable) {
				logger.Error("unrecoverable storage error", "storage", s.Name, "file", m.Filename, "error", err)
				return err
			}
			logger.Error("failed to store media", "storage", s.Name, "file", m.Filename, "error", err)
		}
	}
	return nil
}

// call invokes fn while holding the module lock and converts panics into
// errors wrapping ErrModulePanic.
func (o *Orchestrator) call(name string, fn func() error) (err error) {
	if mu, ok := o.locks[name]; ok && o.workers > 1 {
		mu.Lock()
		defer mu.Unlock()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: %v", ErrModulePanic, name, r)
		}
	}()
	return fn()
}

// soft calls a module and only logs its failure.
func (o *Orchestrator) soft(logger *slog.Logger, name, op string, fn func() error) {
	if err := o.call(name, fn); err != nil {
		logger.Error("module call failed", "module", name, "op", op, "error", err)
	}
}

func (o *Orchestrator) fail(ctx context.Context, out Outcome, err error, reason string) Outcome {
	out.State = StateFailed
	out.Err = err
	o.notifyFailed(ctx, out.Item, reason)
	return out
}

func (o *Orchestrator) notifyFailed(ctx context.Context, item *model.Item, reason string) {
	ctx = context.WithoutCancel(ctx)
	for _, d := range o.steps.Databases {
		o.soft(o.logger, d.Name, "failed", func() error { return d.Module.Failed(ctx, item, reason) })
	}
}

// abort marks the item ABORTED and notifies every database. Uploads already
// made are kept.
func (o *Orchestrator) abort(ctx context.Context, out Outcome) Outcome {
	o.logger.Warn("item aborted", "url", out.Item.GetString(model.KeyURL))
	out.State = StateAborted
	out.Err = fmt.Errorf("%w: %w", ErrAborted, context.Cause(ctx))
	notify := context.WithoutCancel(ctx)
	for _, d := range o.steps.Databases {
		o.soft(o.logger, d.Name, "aborted", func() error { return d.Module.Aborted(notify, out.Item) })
	}
	return out
}
