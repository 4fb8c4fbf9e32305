// Package pageextractor captures plain HTTP(S) pages.
package pageextractor

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nao1215/autoarchiver/internal/model"
	"github.com/nao1215/autoarchiver/internal/module"
	"github.com/nao1215/autoarchiver/internal/netutil"
	"github.com/nao1215/autoarchiver/internal/tor"
	"github.com/nao1215/autoarchiver/internal/webpage"
)

// Name is the status origin of successful captures.
const Name = "page_extractor"

// trackingParams are query parameters removed by SanitizeURL. Entries
// ending in "_" are prefixes.
var trackingParams = []string{"utm_", "fbclid", "gclid", "dclid", "msclkid", "mc_cid", "mc_eid", "igshid", "_hsenc", "_hsmi"}

// Extractor captures pages with a webpage.Spider.
type Extractor struct {
	spider        *webpage.Spider
	stripTracking bool
	logger        *slog.Logger
}

// New is the module factory.
func New(env *module.Env) (any, error) {
	opts := append(ClientOptions(env), webpage.WithHTTPClient(&http.Client{Timeout: Timeout(env.Options)}))
	return &Extractor{
		spider:        webpage.NewSpider(webpage.NewClient(opts...), SpiderOptions(env.Options)...),
		stripTracking: env.Options.Bool("strip_tracking"),
		logger:        env.Logger,
	}, nil
}

// ClientOptions maps the shared HTTP options of env to client options. The
// transport is left to the caller.
func ClientOptions(env *module.Env) []webpage.Option {
	o := env.Options
	opts := []webpage.Option{webpage.WithLogger(env.Logger)}
	if ua := o.String("user_agent"); ua != "" {
		opts = append(opts, webpage.WithUserAgent(ua))
	}
	if n := o.Int("retries"); n > 0 {
		p := netutil.DefaultPolicy()
		p.Attempts = n
		opts = append(opts, webpage.WithRetry(p))
	}
	if rps := o.Int("requests_per_second"); rps > 0 {
		opts = append(opts, webpage.WithRateLimit(float64(rps)))
	}
	if n := o.Int("max_body_size"); n > 0 {
		opts = append(opts, webpage.WithMaxBodySize(int64(n)))
	}
	if c := o.String("cookie"); c != "" {
		opts = append(opts, webpage.WithHeader("Cookie", c))
	}
	return opts
}

// Timeout returns the configured per-request timeout.
func Timeout(o module.Options) time.Duration {
	if d := o.Seconds("timeout"); d > 0 {
		return d
	}
	return webpage.DefaultTimeout
}

// SpiderOptions maps the crawl options.
func SpiderOptions(o module.Options) []webpage.SpiderOption {
	return []webpage.SpiderOption{
		webpage.WithMaxDepth(o.Int("max_depth")),
		webpage.WithMaxPages(o.Int("max_pages")),
		webpage.WithIgnorePatterns(o.Strings("ignore_patterns")),
	}
}

// Suitable accepts http(s) URLs that are not onion services.
func (e *Extractor) Suitable(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	return !tor.IsOnionURL(rawURL)
}

// SanitizeURL removes tracking query parameters.
func (e *Extractor) SanitizeURL(rawURL string) string {
	if !e.stripTracking {
		return rawURL
	}
	return StripTracking(rawURL)
}

// StripTracking removes known tracking parameters from rawURL. URLs that do
// not parse are returned unchanged.
func StripTracking(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.RawQuery == "" {
		return rawURL
	}
	q := u.Query()
	changed := false
	for k := range q {
		if isTracking(k) {
			q.Del(k)
			changed = true
		}
	}
	if !changed {
		return rawURL
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func isTracking(param string) bool {
	p := strings.ToLower(param)
	for _, t := range trackingParams {
		if strings.HasSuffix(t, "_") && !strings.HasPrefix(t, "_") {
			if strings.HasPrefix(p, t) {
				return true
			}
			continue
		}
		if p == t {
			return true
		}
	}
	return false
}

// Download implements module.Extractor.
func (e *Extractor) Download(ctx context.Context, item *model.Item) (*model.Item, error) {
	res, err := webpage.Capture(ctx, e.spider, item, Name)
	if err != nil {
		return nil, err
	}
	if res != nil {
		e.logger.Debug("page captured", "url", item.MustURL(), "assets", len(res.Media))
	}
	return res, nil
}
