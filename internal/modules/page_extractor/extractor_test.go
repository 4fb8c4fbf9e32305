package pageextractor

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nao1215/autoarchiver/internal/model"
	"github.com/nao1215/autoarchiver/internal/module"
)

func newExtractor(t *testing.T, opts module.Options) *Extractor {
	t.Helper()
	inst, err := New(&module.Env{Name: Name, Options: opts, Logger: slog.New(slog.DiscardHandler)})
	if err != nil {
		t.Fatal(err)
	}
	return inst.(*Extractor)
}

func TestSuitable(t *testing.T) {
	t.Parallel()

	e := newExtractor(t, module.Options{})
	tests := map[string]bool{
		"https://example.com":   true,
		"http://example.com/a":  true,
		"ftp://example.com":     false,
		"not a url":             false,
		"http://" + "abc.onion": false,
	}
	for in, want := range tests {
		if got := e.Suitable(in); got != want {
			t.Errorf("Suitable(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestStripTracking(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{in: "https://example.com/a?utm_source=x&utm_medium=y&id=3", want: "https://example.com/a?id=3"},
		{in: "https://example.com/?fbclid=abc", want: "https://example.com/"},
		{in: "https://example.com/?GCLID=abc&q=go", want: "https://example.com/?q=go"},
		{in: "https://example.com/?q=utm_source", want: "https://example.com/?q=utm_source"},
		{in: "https://example.com/?b=2&a=1", want: "https://example.com/?b=2&a=1"},
		{in: "https://example.com/path", want: "https://example.com/path"},
	}
	for _, tt := range tests {
		if got := StripTracking(tt.in); got != tt.want {
			t.Errorf("StripTracking(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	e := newExtractor(t, module.Options{"strip_tracking": false})
	raw := "https://example.com/?utm_source=x"
	if got := e.SanitizeURL(raw); got != raw {
		t.Errorf("SanitizeURL with strip_tracking off = %q", got)
	}
}

func TestDownload(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Cookie") != "session=1" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, "<html><head><title>Hi</title></head><body>hello</body></html>")
	}))
	defer srv.Close()

	e := newExtractor(t, module.Options{"cookie": "session=1", "retries": 1, "max_pages": 10})
	item, err := model.NewItemFromURL(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	item.SetContext(model.CtxTmpDir, t.TempDir())

	res, err := e.Download(context.Background(), item)
	if err != nil {
		t.Fatal(err)
	}
	if res == nil || !res.IsSuccess() || res.Title() != "Hi" {
		t.Fatalf("result = %+v", res)
	}
	if res.Origin() != Name {
		t.Errorf("origin = %q", res.Origin())
	}
}
