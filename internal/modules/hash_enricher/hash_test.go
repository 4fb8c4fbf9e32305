package hashenricher

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/autoarchiver/internal/model"
	"github.com/nao1215/autoarchiver/internal/module"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestHashFile(t *testing.T) {
	t.Parallel()

	p := writeFile(t, t.TempDir(), "a.txt", "abc")
	tests := []struct {
		algo  string
		chunk int
		want  string
	}{
		{algo: SHA256, chunk: 0, want: "SHA-256:ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
		{algo: SHA256, chunk: 1, want: "SHA-256:ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
		{algo: SHA3512, chunk: 2, want: "SHA3-512:b751850b1a57168a5693cd924b6b096e08f621827444f70d884f5d0240d2712e10e116e9192af3c91a7ec57647e3934057340b4cf408d5a56592f8274eec53f0"},
	}
	for _, tt := range tests {
		e, err := NewEnricher(tt.algo, tt.chunk, nil)
		if err != nil {
			t.Fatal(err)
		}
		got, err := e.HashFile(p)
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("HashFile(%s, chunk %d) = %s, want %s", tt.algo, tt.chunk, got, tt.want)
		}
	}
}

func TestNewEnricher_UnknownAlgorithm(t *testing.T) {
	t.Parallel()

	if _, err := NewEnricher("MD5", 0, nil); !errors.Is(err, ErrUnknownAlgorithm) {
		t.Errorf("err = %v", err)
	}
}

func TestEnrich(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	item, err := model.NewItemFromURL("https://example.com")
	if err != nil {
		t.Fatal(err)
	}
	parent := model.NewMedia(writeFile(t, dir, "video.mp4", "video"))
	thumb := model.NewMedia(writeFile(t, dir, "thumb.jpg", "thumb"))
	parent.Set("thumbnail", thumb)
	if err := item.AddMedia(parent, ""); err != nil {
		t.Fatal(err)
	}
	missing := model.NewMedia(filepath.Join(dir, "gone.bin"))
	if err := item.AddMedia(missing, ""); err != nil {
		t.Fatal(err)
	}

	inst, err := New(&module.Env{Options: module.Options{"algorithm": SHA256}, Logger: slog.New(slog.DiscardHandler)})
	if err != nil {
		t.Fatal(err)
	}
	err = inst.(*Enricher).Enrich(context.Background(), item)
	if err == nil {
		t.Error("expected error for missing file")
	}
	for _, m := range []*model.Media{parent, thumb} {
		if !strings.HasPrefix(m.Hash(), "SHA-256:") {
			t.Errorf("%s hash = %q", m.Filename, m.Hash())
		}
	}
	if missing.Hash() != "" {
		t.Error("missing file must not be hashed")
	}
}
