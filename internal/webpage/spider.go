package webpage

import (
	"context"
	"net/url"
	"path"
	"strings"
)

// Spider follows same-site links breadth first.
type Spider struct {
	client *Client

	// maxDepth limits how far from the start page links are followed.
	// 0 means only the start page.
	maxDepth int

	// maxPages caps the number of fetched pages, start page included.
	maxPages int

	// ignorePatterns are path globs never followed ("/logout*", "*.pdf").
	ignorePatterns []string
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithMaxDepth sets the maximum link depth.
func WithMaxDepth(depth int) SpiderOption {
	return func(s *Spider) {
		if depth >= 0 {
			s.maxDepth = depth
		}
	}
}

// WithMaxPages sets the maximum number of pages.
func WithMaxPages(n int) SpiderOption {
	return func(s *Spider) {
		if n > 0 {
			s.maxPages = n
		}
	}
}

// WithIgnorePatterns sets path globs that are never followed.
func WithIgnorePatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.ignorePatterns = patterns
	}
}

// NewSpider creates a Spider fetching through client.
func NewSpider(client *Client, opts ...SpiderOption) *Spider {
	s := &Spider{client: client, maxDepth: 1, maxPages: 10}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Crawled is a fetched page together with its parsed document.
type Crawled struct {
	Page     *Page
	Document *Document
	Depth    int
}

type queueItem struct {
	url   string
	depth int
}

// Crawl fetches start and follows internal links. Pages that fail to fetch
// are skipped; the start page failing is an error. Pages gathered before a
// cancellation are returned with the context error.
func (s *Spider) Crawl(ctx context.Context, start string) ([]*Crawled, error) {
	visited := make(map[string]bool)
	queue := []queueItem{{url: start}}
	var out []*Crawled

	for len(queue) > 0 && len(out) < s.maxPages {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		item := queue[0]
		queue = queue[1:]

		key := normalizeURL(item.url)
		if visited[key] {
			continue
		}
		visited[key] = true

		page, err := s.client.Fetch(ctx, item.url)
		if err != nil {
			if item.depth == 0 {
				return nil, err
			}
			s.client.logger.Debug("skipping linked page", "url", item.url, "error", err)
			continue
		}
		crawled := &Crawled{Page: page, Depth: item.depth}
		if page.IsHTML() {
			if doc, err := page.Parse(); err == nil {
				crawled.Document = doc
			}
		}
		out = append(out, crawled)

		if crawled.Document == nil || item.depth >= s.maxDepth {
			continue
		}
		for _, link := range crawled.Document.InternalLinks {
			if !visited[normalizeURL(link)] && s.shouldFollow(link) {
				queue = append(queue, queueItem{url: link, depth: item.depth + 1})
			}
		}
	}
	return out, nil
}

func (s *Spider) shouldFollow(link string) bool {
	u, err := url.Parse(link)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	p := u.Path
	if p == "" {
		p = "/"
	}
	for _, pattern := range s.ignorePatterns {
		if matchPattern(pattern, p) {
			return false
		}
	}
	return true
}

// normalizeURL drops the fragment and lowercases scheme and host so that
// equivalent URLs are visited once.
func normalizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Fragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String()
}

// matchPattern matches a URL path against a glob. "/admin/*" matches the
// whole subtree and "*.pdf" matches by extension.
func matchPattern(pattern, p string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		if strings.HasPrefix(p, prefix+"/") || p == prefix {
			return true
		}
	}
	if ext, ok := strings.CutPrefix(pattern, "*."); ok && strings.HasSuffix(p, "."+ext) {
		return true
	}
	if matched, err := path.Match(pattern, p); err == nil && matched {
		return true
	}
	if strings.Contains(pattern, "*") && !strings.Contains(pattern, "/") {
		if matched, err := path.Match(pattern, path.Base(p)); err == nil && matched {
			return true
		}
	}
	return false
}
