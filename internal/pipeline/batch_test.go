package pipeline

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/nao1215/autoarchiver/internal/model"
	"github.com/nao1215/autoarchiver/internal/module"
)

// serialEnricher fails the test if two calls overlap.
type serialEnricher struct {
	active  atomic.Int32
	overlap atomic.Bool
	calls   atomic.Int32
}

func (s *serialEnricher) Enrich(_ context.Context, item *model.Item) error {
	if s.active.Add(1) > 1 {
		s.overlap.Store(true)
	}
	defer s.active.Add(-1)
	s.calls.Add(1)
	item.Set("enriched", true)
	return nil
}

// TestRunConcurrent tests ordering and per-module serialization with
// several workers.
func TestRunConcurrent(t *testing.T) {
	t.Parallel()

	const n = 12
	urls := make([]string, n)
	for i := range urls {
		urls[i] = fmt.Sprintf("https://example.com/item%d", i)
	}

	enricher := &serialEnricher{}
	storage := &fakeStorage{}
	steps := &Steps{
		Feeder:     Named[module.Feeder]{Name: "feeder", Module: &fakeFeeder{urls: urls}},
		Extractors: []Named[module.Extractor]{{Name: "page", Module: pageExtractor(t.TempDir())}},
		Enrichers:  []Named[module.Enricher]{{Name: "serial", Module: enricher}},
		Storages:   []Named[module.Storage]{{Name: "fake", Module: storage}},
	}

	summary, err := newOrchestrator(t, steps, WithWorkers(4)).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if summary.Processed != n || summary.Count(StateDone) != n {
		t.Fatalf("summary = %+v", summary)
	}
	for i, out := range summary.Outcomes {
		if got := out.Item.MustURL(); got != urls[i] {
			t.Errorf("outcome %d is %s, want %s", i, got, urls[i])
		}
	}
	if enricher.overlap.Load() {
		t.Error("enricher calls overlapped")
	}
	if enricher.calls.Load() != n || storage.count() != n {
		t.Errorf("calls = %d, uploads = %d", enricher.calls.Load(), storage.count())
	}
}

// TestRunConcurrent_Canceled tests that a canceled context stops feeding.
func TestRunConcurrent_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	steps := &Steps{
		Feeder:     Named[module.Feeder]{Name: "feeder", Module: &fakeFeeder{urls: []string{"https://example.com/a", "https://example.com/b"}}},
		Extractors: []Named[module.Extractor]{{Name: "page", Module: pageExtractor(t.TempDir())}},
	}
	summary, err := newOrchestrator(t, steps, WithWorkers(2)).Run(ctx)
	if err == nil {
		t.Fatal("expected ErrAborted")
	}
	if summary.Processed != 0 {
		t.Errorf("processed %d items after cancellation", summary.Processed)
	}
}
