package exifenricher

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/nao1215/autoarchiver/internal/model"
	"github.com/nao1215/autoarchiver/internal/module"
)

func TestSensitive(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		tags map[string]any
		want []string
	}{
		{name: "none", tags: map[string]any{"Make": "Canon", "Orientation": "1"}, want: nil},
		{name: "gps", tags: map[string]any{"GPSLatitude": "1", "GPSLongitude": "2"}, want: []string{"gps"}},
		{name: "mixed", tags: map[string]any{"Artist": "x", "BodySerialNumber": "1", "GPSLatitudeRef": "N"}, want: []string{"author", "gps", "serial"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Sensitive(tt.tags); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Sensitive() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExtract_NoExif(t *testing.T) {
	t.Parallel()

	if _, err := Extract([]byte("plain text, not an image")); !errors.Is(err, ErrNoExif) {
		t.Errorf("err = %v, want ErrNoExif", err)
	}
}

func TestEnrich_SkipsNonImages(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	item, err := model.NewItemFromURL("https://example.com")
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"page.html", "photo.jpg"} {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte("no exif here"), 0o600); err != nil {
			t.Fatal(err)
		}
		if err := item.AddMedia(model.NewMedia(p), name); err != nil {
			t.Fatal(err)
		}
	}

	inst, err := New(&module.Env{Options: module.Options{}, Logger: slog.New(slog.DiscardHandler)})
	if err != nil {
		t.Fatal(err)
	}
	if err := inst.(*Enricher).Enrich(context.Background(), item); err != nil {
		t.Fatalf("Enrich = %v", err)
	}
	for _, m := range item.Media {
		if m.Get(PropExif) != nil {
			t.Errorf("%s: unexpected exif property", m.Filename)
		}
	}
}

func TestMayHaveExif(t *testing.T) {
	t.Parallel()

	tests := map[string]bool{
		"a.jpg":  true,
		"a.JPEG": true,
		"a.tiff": true,
		"a.png":  false,
		"a.html": false,
	}
	for name, want := range tests {
		if got := mayHaveExif(model.NewMedia(name)); got != want {
			t.Errorf("mayHaveExif(%q) = %v, want %v", name, got, want)
		}
	}
}
