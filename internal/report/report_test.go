package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/autoarchiver/internal/model"
)

// createTestItem creates an archived item with sample data for testing.
func createTestItem(t *testing.T) *model.Item {
	t.Helper()

	item, err := model.NewItemFromURL("https://example.com/post")
	if err != nil {
		t.Fatal(err)
	}
	item.SetTitle("Example <Post>")
	item.Set("description", "A | piped description")
	item.Set("tags", []any{"a", "b"})
	item.Set("_processed_at", time.Now())
	item.Success("page_extractor")

	dir := t.TempDir()
	for _, name := range []string{"page.html", "shot.png"} {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(name), 0o600); err != nil {
			t.Fatal(err)
		}
		m := model.NewMedia(p)
		m.SetKey("example-com-post/" + name)
		m.AddURL("https://cdn.example.com/example-com-post/" + name)
		if err := item.AddMedia(m, name); err != nil {
			t.Fatal(err)
		}
	}
	return item
}

func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("round trips through the item decoder", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		item := createTestItem(t)
		if _, err := NewJSONWriter(&buf).Write(item); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.HasSuffix(buf.String(), "\n") {
			t.Error("expected trailing newline")
		}

		decoded := model.NewItem()
		if err := json.Unmarshal(buf.Bytes(), decoded); err != nil {
			t.Fatalf("output is not an item: %v", err)
		}
		if decoded.Title() != item.Title() || decoded.Status != item.Status {
			t.Errorf("decoded = %q / %q", decoded.Title(), decoded.Status)
		}
		if len(decoded.Media) != 2 {
			t.Errorf("decoded %d media, want 2", len(decoded.Media))
		}
	})

	t.Run("compact by default", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(createTestItem(t)); err != nil {
			t.Fatal(err)
		}
		if strings.Count(buf.String(), "\n") != 1 {
			t.Error("expected a single line")
		}
	})

	t.Run("indented", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithIndent(">", "\t")).Write(createTestItem(t)); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(buf.String(), "\n>\t\"status\"") {
			t.Errorf("expected prefixed indentation, got %s", buf.String())
		}
	})
}

func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes item sections", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(createTestItem(t)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		out := buf.String()
		for _, want := range []string{
			"# Example <Post>",
			"https://example.com/post",
			"page_extractor: success",
			"## Attributes",
			`A \| piped description`,
			"a, b",
			"## Media",
			"example-com-post/shot.png",
			"image/png",
			"mermaid",
			"Generated by autoarchiver",
		} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q", want)
			}
		}
		if strings.Contains(out, "_processed_at") {
			t.Error("internal keys must not be rendered")
		}
	})

	t.Run("empty item", func(t *testing.T) {
		t.Parallel()

		item, err := model.NewItemFromURL("https://example.com")
		if err != nil {
			t.Fatal(err)
		}
		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(item); err != nil {
			t.Fatal(err)
		}
		out := buf.String()
		if !strings.Contains(out, "No media archived.") {
			t.Error("expected empty media notice")
		}
		if !strings.Contains(out, model.StatusNoArchiver) {
			t.Error("expected status")
		}
	})
}

func TestHTMLWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if _, err := NewHTMLWriter(&buf, nil).Write(createTestItem(t)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"<title>Example &lt;Post&gt;</title>",
		`href="https://example.com/post"`,
		"status-ok",
		"example-com-post/page.html",
		`<img class="preview" src="https://cdn.example.com/example-com-post/shot.png"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
	if strings.Contains(out, "<Post>") {
		t.Error("title must be escaped")
	}
}

func TestFormatValue(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tests := []struct {
		name string
		in   any
		want string
	}{
		{name: "nil", in: nil, want: ""},
		{name: "string", in: "x", want: "x"},
		{name: "time", in: ts, want: "2026-01-02T03:04:05Z"},
		{name: "strings", in: []string{"a", "b"}, want: "a, b"},
		{name: "list", in: []any{"a", 1}, want: "a, 1"},
		{name: "map", in: map[string]any{"k": 1}, want: `{"k":1}`},
		{name: "int", in: 42, want: "42"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := FormatValue(tt.in); got != tt.want {
				t.Errorf("FormatValue() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTruncateString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		max  int
		want string
	}{
		{in: "short", max: 10, want: "short"},
		{in: "exactly10!", max: 10, want: "exactly10!"},
		{in: "this is too long", max: 10, want: "this is..."},
		{in: "abcdef", max: 3, want: "abc"},
		{in: "ünïcödé text", max: 6, want: "ünï..."},
	}
	for _, tt := range tests {
		if got := truncateString(tt.in, tt.max); got != tt.want {
			t.Errorf("truncateString(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestMediaTypes(t *testing.T) {
	t.Parallel()

	video := model.NewMedia("clip.bin")
	video.SetMimetype("video/mp4")
	media := []*model.Media{
		model.NewMedia("a.png"),
		model.NewMedia("b.jpg"),
		model.NewMedia("page.html"),
		model.NewMedia("blob.unknownext"),
		video,
	}

	kinds, counts := mediaTypes(media)
	want := map[string]int{"image": 2, "document": 1, "unknown": 1, "video": 1}
	if len(kinds) != len(want) {
		t.Fatalf("kinds = %v", kinds)
	}
	for k, n := range want {
		if counts[k] != n {
			t.Errorf("counts[%s] = %d, want %d", k, counts[k], n)
		}
	}
}
