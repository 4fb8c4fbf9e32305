package webpage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/nao1215/autoarchiver/internal/model"
)

func TestCapture(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, `<html lang="en"><head><title>Home</title>
<meta name="description" content="front page"></head>
<body><p>Contact admin@example.com</p><a href="/about">about</a></body></html>`)
	})
	mux.HandleFunc("/about", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		io.WriteString(w, "about us")
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	newItem := func(t *testing.T) *model.Item {
		t.Helper()
		item, err := model.NewItemFromURL(srv.URL + "/")
		if err != nil {
			t.Fatal(err)
		}
		item.SetContext(model.CtxTmpDir, t.TempDir())
		return item
	}

	t.Run("start page only", func(t *testing.T) {
		t.Parallel()

		res, err := Capture(context.Background(), NewSpider(fastClient(), WithMaxDepth(0)), newItem(t), "page_extractor")
		if err != nil {
			t.Fatal(err)
		}
		if !res.IsSuccess() || res.Origin() != "page_extractor" {
			t.Errorf("status = %q", res.Status)
		}
		if res.Title() != "Home" || res.GetString(KeyDescription) != "front page" || res.GetString(KeyLanguage) != "en" {
			t.Errorf("attributes = %v", res.Metadata)
		}
		emails, _ := res.Get(KeyEmails).([]string)
		if len(emails) != 1 || emails[0] != "admin@example.com" {
			t.Errorf("emails = %v", res.Get(KeyEmails))
		}
		if _, ok := res.Timestamp(); !ok {
			t.Error("timestamp not set")
		}
		page := res.MediaByID(MediaIDPage)
		if page == nil {
			t.Fatal("page media missing")
		}
		if page.Mimetype() != "text/html" {
			t.Errorf("mimetype = %q", page.Mimetype())
		}
		data, err := os.ReadFile(page.Filename)
		if err != nil {
			t.Fatal(err)
		}
		if len(data) == 0 {
			t.Error("page body not written")
		}
	})

	t.Run("follows links", func(t *testing.T) {
		t.Parallel()

		res, err := Capture(context.Background(), NewSpider(fastClient(), WithMaxDepth(1)), newItem(t), "x")
		if err != nil {
			t.Fatal(err)
		}
		if len(res.Media) != 2 {
			t.Fatalf("got %d media, want 2", len(res.Media))
		}
		about := res.MediaByID(MediaIDPage + "_1")
		if about == nil || about.Mimetype() != "text/plain" || about.Get(PropCrawlDepth) != 1 {
			t.Errorf("linked page media = %+v", about)
		}
		if res.Get(KeyPagesCaptured) != 2 {
			t.Errorf("pages_captured = %v", res.Get(KeyPagesCaptured))
		}
	})

	t.Run("missing working directory", func(t *testing.T) {
		t.Parallel()

		item, err := model.NewItemFromURL(srv.URL)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := Capture(context.Background(), NewSpider(fastClient()), item, "x"); !errors.Is(err, ErrNoTmpDir) {
			t.Errorf("err = %v", err)
		}
	})
}

func TestExtensionFor(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"text/html; charset=utf-8": ".html",
		"text/plain":               ".txt",
		"image/jpeg":               ".jpg",
		"image/png":                ".png",
		"":                         ".bin",
		"application/x-unknown-zz": ".bin",
	}
	for in, want := range tests {
		if got := extensionFor(in); got != want {
			t.Errorf("extensionFor(%q) = %q, want %q", in, got, want)
		}
	}
}
