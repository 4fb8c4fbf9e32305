package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

const sampleDocument = `# Archive settings.
steps:
  feeders: [cli_feeder]   # one feeder only
  storages:
    - local_storage

# Where files land.
local_storage:
  save_to: ./archived
  filename_generator: static

authentication: {}
`

// TestLoadDocument tests reading documents from disk.
func TestLoadDocument(t *testing.T) {
	t.Parallel()

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		_, err := LoadDocument(filepath.Join(t.TempDir(), "nope.yaml"))
		if !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("invalid yaml", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "bad.yaml")
		if err := os.WriteFile(path, []byte("steps: [unclosed"), 0o600); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadDocument(path); err == nil {
			t.Error("expected parse error")
		}
	})

	t.Run("top level must be a mapping", func(t *testing.T) {
		t.Parallel()

		if _, err := ParseDocument([]byte("- a\n- b\n")); err == nil {
			t.Error("expected error for a list document")
		}
	})

	t.Run("empty and comment-only documents are empty maps", func(t *testing.T) {
		t.Parallel()

		for _, src := range []string{"", "# only a comment\n"} {
			doc, err := ParseDocument([]byte(src))
			if err != nil {
				t.Fatalf("ParseDocument(%q): %v", src, err)
			}
			m, err := doc.Map()
			if err != nil || len(m) != 0 {
				t.Errorf("Map() = %v, %v", m, err)
			}
		}
	})
}

// TestDocumentRoundTrip tests that storing preserves the document.
func TestDocumentRoundTrip(t *testing.T) {
	t.Parallel()

	t.Run("unedited document is byte identical", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		src := filepath.Join(dir, "in.yaml")
		dst := filepath.Join(dir, "out.yaml")
		if err := os.WriteFile(src, []byte(sampleDocument), 0o600); err != nil {
			t.Fatal(err)
		}
		doc, err := LoadDocument(src)
		if err != nil {
			t.Fatal(err)
		}
		if err := doc.Save(dst); err != nil {
			t.Fatal(err)
		}
		got, err := os.ReadFile(dst)
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != sampleDocument {
			t.Errorf("round trip changed the document:\n%s", got)
		}
		if _, err := os.Stat(dst + ".lock"); !os.IsNotExist(err) {
			t.Error("lock file left behind")
		}
	})

	t.Run("edits keep comments, order and untouched values", func(t *testing.T) {
		t.Parallel()

		doc, err := ParseDocument([]byte(sampleDocument))
		if err != nil {
			t.Fatal(err)
		}
		if err := doc.Set("local_storage.save_to", "/srv/archive"); err != nil {
			t.Fatal(err)
		}
		if err := doc.Set("hash_enricher.algorithm", "SHA3-512"); err != nil {
			t.Fatal(err)
		}
		if err := doc.Set("steps.feeders", []string{"csv_feeder"}); err != nil {
			t.Fatal(err)
		}

		data, err := doc.Bytes()
		if err != nil {
			t.Fatal(err)
		}
		text := string(data)
		for _, want := range []string{
			"# Archive settings.",
			"# one feeder only",
			"# Where files land.",
			"feeders: [csv_feeder]",
			"save_to: /srv/archive",
			"filename_generator: static",
			"algorithm: SHA3-512",
		} {
			if !strings.Contains(text, want) {
				t.Errorf("edited document lacks %q:\n%s", want, text)
			}
		}
		if strings.Index(text, "steps:") > strings.Index(text, "local_storage:") {
			t.Error("key order changed")
		}

		reparsed, err := ParseDocument(data)
		if err != nil {
			t.Fatal(err)
		}
		v, ok := reparsed.Get("local_storage.save_to")
		if !ok || v != "/srv/archive" {
			t.Errorf("Get(save_to) = %v, %v", v, ok)
		}
		v, _ = reparsed.Get("steps.storages")
		if !reflect.DeepEqual(v, []any{"local_storage"}) {
			t.Errorf("untouched list changed: %v", v)
		}
	})

	t.Run("edits keep the layout of the source text", func(t *testing.T) {
		t.Parallel()

		src := `# Archive settings.
steps:
    feeders: [cli_feeder]   # one feeder only

    # extractors run in order
    extractors:
        - page_extractor

local_storage:
    save_to: "./archived"   # where files land
    filename_generator: static
`
		doc, err := ParseDocument([]byte(src))
		if err != nil {
			t.Fatal(err)
		}
		edits := []struct {
			path  string
			value any
		}{
			{path: "local_storage.path_generator", value: "flat"},
			{path: "local_storage.save_to", value: "/srv/archive"},
			{path: "steps.feeders", value: []string{"csv_feeder", "cli_feeder"}},
			{path: "hash_enricher.algorithm", value: "SHA3-512"},
			{path: "steps.extractors", value: []string{"page_extractor", "tor_extractor"}},
		}
		for _, e := range edits {
			if err := doc.Set(e.path, e.value); err != nil {
				t.Fatalf("Set(%s): %v", e.path, err)
			}
		}

		want := `# Archive settings.
steps:
    feeders: [csv_feeder, cli_feeder]   # one feeder only

    # extractors run in order
    extractors:
        - page_extractor
        - tor_extractor

local_storage:
    save_to: /srv/archive   # where files land
    filename_generator: static
    path_generator: flat
hash_enricher:
    algorithm: SHA3-512
`
		got, err := doc.Bytes()
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != want {
			t.Errorf("edited document:\n%s\nwant:\n%s", got, want)
		}
	})

	t.Run("edits on an empty document", func(t *testing.T) {
		t.Parallel()

		doc, err := ParseDocument([]byte("# nothing yet\n"))
		if err != nil {
			t.Fatal(err)
		}
		if err := doc.Set("csv_db.csv_file", "out.csv"); err != nil {
			t.Fatal(err)
		}
		got, err := doc.Bytes()
		if err != nil {
			t.Fatal(err)
		}
		if want := "# nothing yet\ncsv_db:\n  csv_file: out.csv\n"; string(got) != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("edits inside a flow mapping", func(t *testing.T) {
		t.Parallel()

		doc, err := ParseDocument([]byte("authentication: {}   # none\nworkers: 2\n"))
		if err != nil {
			t.Fatal(err)
		}
		if err := doc.Set("authentication.user", "me"); err != nil {
			t.Fatal(err)
		}
		got, err := doc.Bytes()
		if err != nil {
			t.Fatal(err)
		}
		if want := "authentication: {user: me}   # none\nworkers: 2\n"; string(got) != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("invalid path", func(t *testing.T) {
		t.Parallel()

		doc, _ := ParseDocument(nil)
		if err := doc.Set("a..b", 1); !errors.Is(err, ErrInvalidPath) {
			t.Errorf("expected ErrInvalidPath, got %v", err)
		}
	})
}

// TestDefaultDocument tests the embedded template.
func TestDefaultDocument(t *testing.T) {
	t.Parallel()

	doc := DefaultDocument()
	m, err := doc.Map()
	if err != nil {
		t.Fatal(err)
	}
	steps := stepsFromTree(m)
	if err := steps.Validate(); err != nil {
		t.Errorf("template steps invalid: %v", err)
	}
	data, _ := doc.Bytes()
	if string(data) != string(Template()) {
		t.Error("unedited template should serialize verbatim")
	}
}
