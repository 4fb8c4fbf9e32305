package webpage

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/nao1215/autoarchiver/internal/model"
)

// MaxContentLength caps the visible text stored in the content attribute.
const MaxContentLength = 10000

// ErrNoTmpDir is returned when an item has no working directory.
var ErrNoTmpDir = errors.New("item has no working directory")

// Attribute keys set by Capture.
const (
	KeyDescription    = "description"
	KeyLanguage       = "language"
	KeyCanonical      = "canonical_url"
	KeyFinalURL       = "final_url"
	KeyMeta           = "meta"
	KeyLinks          = "links"
	KeyImages         = "images"
	KeyEmails         = "emails"
	KeyOnionAddresses = "onion_addresses"
	KeyPagesCaptured  = "pages_captured"
)

// Media ids and properties set by Capture.
const (
	MediaIDPage      = "page"
	PropSourceURL    = "source_url"
	PropStatusCode   = "status_code"
	PropTruncated    = "truncated"
	PropCrawlDepth   = "depth"
	defaultExtension = ".bin"
)

// Capture crawls the item URL with spider, writes every fetched body into
// the item working directory and returns a successful result stamped with
// origin. Attributes come from the start page.
func Capture(ctx context.Context, spider *Spider, item *model.Item, origin string) (*model.Item, error) {
	u, err := item.URL()
	if err != nil {
		return nil, err
	}
	dir := item.ContextString(model.CtxTmpDir)
	if dir == "" {
		return nil, ErrNoTmpDir
	}

	pages, err := spider.Crawl(ctx, u)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, nil
	}

	result := model.NewItem()
	if err := result.SetURL(u); err != nil {
		return nil, err
	}
	for i, c := range pages {
		m, err := writePage(dir, i, c)
		if err != nil {
			return nil, err
		}
		id := MediaIDPage
		if i > 0 {
			id = fmt.Sprintf("%s_%d", MediaIDPage, i)
		}
		if err := result.AddMedia(m, id); err != nil {
			return nil, err
		}
	}

	start := pages[0]
	result.SetTimestamp(start.Page.FetchedAt)
	if start.Page.FinalURL != "" && start.Page.FinalURL != u {
		result.Set(KeyFinalURL, start.Page.FinalURL)
	}
	if len(pages) > 1 {
		result.Set(KeyPagesCaptured, len(pages))
	}
	if doc := start.Document; doc != nil {
		applyDocument(result, doc)
	}
	return result.Success(origin), nil
}

func applyDocument(item *model.Item, doc *Document) {
	setString := func(key, v string) {
		if v != "" {
			item.Set(key, v)
		}
	}
	setList := func(key string, v []string) {
		if len(v) > 0 {
			item.Set(key, v)
		}
	}
	if doc.Title != "" {
		item.SetTitle(doc.Title)
	}
	setString(KeyDescription, doc.Description)
	setString(KeyLanguage, doc.Language)
	setString(KeyCanonical, doc.Canonical)
	if len(doc.MetaTags) > 0 {
		meta := make(map[string]any, len(doc.MetaTags))
		for k, v := range doc.MetaTags {
			meta[k] = v
		}
		item.Set(KeyMeta, meta)
	}
	setList(KeyLinks, doc.Links)
	setList(KeyImages, doc.Images)
	setList(KeyEmails, doc.Emails)
	setList(KeyOnionAddresses, doc.OnionAddresses)
	if doc.Text != "" {
		text := []rune(doc.Text)
		if len(text) > MaxContentLength {
			text = text[:MaxContentLength]
		}
		item.AppendContent(string(text))
	}
}

func writePage(dir string, idx int, c *Crawled) (*model.Media, error) {
	ext := extensionFor(c.Page.ContentType)
	name := fmt.Sprintf("%s-%02d%s", MediaIDPage, idx, ext)
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, c.Page.Body, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write captured page: %w", err)
	}
	m := model.NewMedia(p)
	if mt, _, err := mime.ParseMediaType(c.Page.ContentType); err == nil {
		m.SetMimetype(mt)
	}
	m.Set(PropSourceURL, c.Page.URL)
	m.Set(PropStatusCode, c.Page.StatusCode)
	if c.Depth > 0 {
		m.Set(PropCrawlDepth, c.Depth)
	}
	if c.Page.Truncated {
		m.Set(PropTruncated, true)
	}
	return m, nil
}

func extensionFor(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return defaultExtension
	}
	switch mt {
	case "text/html", "application/xhtml+xml":
		return ".html"
	case "text/plain":
		return ".txt"
	case "application/json":
		return ".json"
	case "image/jpeg":
		return ".jpg"
	}
	exts, err := mime.ExtensionsByType(mt)
	if err != nil || len(exts) == 0 {
		return defaultExtension
	}
	return strings.ToLower(exts[0])
}
