package metaenricher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/autoarchiver/internal/model"
	"github.com/nao1215/autoarchiver/internal/module"
)

func newEnricher(t *testing.T, now time.Time) *Enricher {
	t.Helper()
	inst, err := New(&module.Env{Name: "meta_enricher", Logger: slog.New(slog.DiscardHandler)})
	if err != nil {
		t.Fatal(err)
	}
	e := inst.(*Enricher)
	e.now = func() time.Time { return now }
	return e
}

func writeFile(t *testing.T, dir, name string, size int) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(strings.Repeat("x", size)), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestEnrich(t *testing.T) {
	t.Parallel()

	t.Run("sizes and duration", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		item, err := model.NewItemFromURL("https://example.com")
		if err != nil {
			t.Fatal(err)
		}
		item.ProcessedAt = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
		page := model.NewMedia(writeFile(t, dir, "page.html", 2048))
		thumb := model.NewMedia(writeFile(t, dir, "thumb.jpg", 3))
		page.Set("thumbnails", []*model.Media{thumb})
		if err := item.AddMedia(page, ""); err != nil {
			t.Fatal(err)
		}

		e := newEnricher(t, item.ProcessedAt.Add(90*time.Second+500*time.Millisecond))
		if err := e.Enrich(context.Background(), item); err != nil {
			t.Fatal(err)
		}

		if got := page.Get(PropBytes); got != int64(2048) {
			t.Errorf("page bytes = %v", got)
		}
		if got := page.Get(PropSize); got != "2.0 KiB" {
			t.Errorf("page size = %v", got)
		}
		if got := thumb.Get(PropSize); got != "3 B" {
			t.Errorf("nested media size = %v", got)
		}
		if got := item.Get(KeyTotalBytes); got != int64(2051) {
			t.Errorf("total_bytes = %v", got)
		}
		if got := item.Get(KeyDurationSecs); got != int64(90) {
			t.Errorf("archive_duration_seconds = %v", got)
		}
	})

	t.Run("missing file is reported after the others", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		item, _ := model.NewItemFromURL("https://example.com")
		_ = item.AddMedia(model.NewMedia(filepath.Join(dir, "gone.png")), "")
		_ = item.AddMedia(model.NewMedia(writeFile(t, dir, "a.txt", 10)), "")

		err := newEnricher(t, time.Now()).Enrich(context.Background(), item)
		if err == nil {
			t.Fatal("expected an error for the missing file")
		}
		if got := item.Get(KeyTotalBytes); got != int64(10) {
			t.Errorf("total_bytes = %v, want 10", got)
		}
	})

	t.Run("empty item is skipped", func(t *testing.T) {
		t.Parallel()

		item, _ := model.NewItemFromURL("https://example.com")
		if err := newEnricher(t, time.Now()).Enrich(context.Background(), item); err != nil {
			t.Fatal(err)
		}
		if item.Get(KeyTotalBytes) != nil {
			t.Error("empty item should not be measured")
		}
	})
}
