package localstorage

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/autoarchiver/internal/model"
	"github.com/nao1215/autoarchiver/internal/module"
)

func newStorage(t *testing.T, opts module.Options) *Storage {
	t.Helper()
	inst, err := New(&module.Env{Name: "local_storage", Options: opts, Logger: slog.New(slog.DiscardHandler)})
	if err != nil {
		t.Fatal(err)
	}
	s := inst.(*Storage)
	if err := s.Setup(context.Background()); err != nil {
		t.Fatal(err)
	}
	return s
}

func newMedia(t *testing.T, content string) *model.Media {
	t.Helper()
	p := filepath.Join(t.TempDir(), "page.html")
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return model.NewMedia(p)
}

func TestStore(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	s := newStorage(t, module.Options{
		"save_to":            root,
		"path_generator":     "url",
		"filename_generator": "static",
	})

	item, err := model.NewItemFromURL("https://example.com/post")
	if err != nil {
		t.Fatal(err)
	}
	item.SetContext(model.CtxFolder, "cli")
	m := newMedia(t, "hello")

	if err := s.Store(context.Background(), m, item); err != nil {
		t.Fatal(err)
	}
	// SHA-256("hello") starts with 2cf24dba5fb0a30e26e83b2a.
	wantKey := "cli/https-example-com-post/2cf24dba5fb0a30e26e83b2a.html"
	if m.Key() != wantKey {
		t.Errorf("key = %q, want %q", m.Key(), wantKey)
	}
	dest := filepath.Join(root, filepath.FromSlash(wantKey))
	data, err := os.ReadFile(dest)
	if err != nil || string(data) != "hello" {
		t.Errorf("stored file = %q, %v", data, err)
	}
	if len(m.URLs) != 1 || m.URLs[0] != dest {
		t.Errorf("urls = %v", m.URLs)
	}

	// A second store is a no-op.
	if err := s.Store(context.Background(), m, item); err != nil {
		t.Fatal(err)
	}
	if len(m.URLs) != 1 {
		t.Errorf("urls after second store = %v", m.URLs)
	}
}

func TestStore_Absolute(t *testing.T) {
	t.Parallel()

	s := newStorage(t, module.Options{
		"save_to":        t.TempDir(),
		"save_absolute":  true,
		"path_generator": "flat",
	})
	item, err := model.NewItemFromURL("https://example.com")
	if err != nil {
		t.Fatal(err)
	}
	m := newMedia(t, "x")
	if err := s.Store(context.Background(), m, item); err != nil {
		t.Fatal(err)
	}
	if !filepath.IsAbs(m.URLs[0]) {
		t.Errorf("url %q is not absolute", m.URLs[0])
	}
}

func TestFitKey(t *testing.T) {
	t.Parallel()

	longDir := strings.Repeat("d", 300)
	longStem := strings.Repeat("f", 300)
	tests := []struct {
		name string
		key  string
	}{
		{name: "long dir", key: "cli/" + longDir + "/abc.html"},
		{name: "long file", key: "cli/abc/" + longStem + ".html"},
		{name: "flat", key: longStem + ".jpg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := fitKey("./archived", tt.key)
			if n := len(filepath.Join("./archived", got)); n > MaxFileLength {
				t.Errorf("length %d exceeds %d: %q", n, MaxFileLength, got)
			}
			if filepath.Ext(got) != filepath.Ext(tt.key) {
				t.Errorf("extension changed: %q", got)
			}
		})
	}

	if got := fitKey("./archived", "cli/a/b.html"); got != "cli/a/b.html" {
		t.Errorf("short key changed: %q", got)
	}
}
