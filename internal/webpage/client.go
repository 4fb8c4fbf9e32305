package webpage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/nao1215/autoarchiver/internal/netutil"
)

// Defaults for NewClient.
const (
	DefaultUserAgent   = "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"
	DefaultMaxBodySize = 20 * 1024 * 1024
	DefaultTimeout     = 60 * time.Second
)

// StatusError reports a non-2xx response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.URL, e.Code)
}

// Page is a fetched resource.
type Page struct {
	// URL is the requested URL.
	URL string
	// FinalURL is the URL after redirects.
	FinalURL    string
	StatusCode  int
	ContentType string
	Header      http.Header
	Body        []byte
	// Truncated is set when the body hit the size limit.
	Truncated bool
	FetchedAt time.Time
}

// IsHTML reports whether the page declares an HTML content type.
func (p *Page) IsHTML() bool {
	mt, _, err := mime.ParseMediaType(p.ContentType)
	if err != nil {
		return strings.Contains(p.ContentType, "html")
	}
	return mt == "text/html" || mt == "application/xhtml+xml"
}

// Parse parses the body as HTML, resolving links against FinalURL.
func (p *Page) Parse() (*Document, error) {
	base := p.FinalURL
	if base == "" {
		base = p.URL
	}
	parser, err := NewParser(base)
	if err != nil {
		return nil, err
	}
	return parser.Parse(bytes.NewReader(p.Body))
}

// Client fetches pages.
type Client struct {
	http        *http.Client
	userAgent   string
	headers     http.Header
	maxBodySize int64
	limiter     *netutil.HostLimiter
	retry       netutil.Policy
	logger      *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client, e.g. one dialing through a
// SOCKS5 proxy.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithHeader adds a header sent with every request, e.g. a cookie.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.headers.Add(key, value)
	}
}

// WithMaxBodySize limits how much of a body is read.
func WithMaxBodySize(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBodySize = n
		}
	}
}

// WithRateLimit allows rps requests per second per host.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		c.limiter = netutil.NewHostLimiter(rps)
	}
}

// WithRetry sets the retry policy for transient failures.
func WithRetry(p netutil.Policy) Option {
	return func(c *Client) {
		c.retry = p
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a Client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		http:        &http.Client{Timeout: DefaultTimeout},
		userAgent:   DefaultUserAgent,
		headers:     make(http.Header),
		maxBodySize: DefaultMaxBodySize,
		retry:       netutil.DefaultPolicy(),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch downloads pageURL. Network errors, 429 and 5xx responses are
// retried; other non-2xx responses fail immediately with a *StatusError.
func (c *Client) Fetch(ctx context.Context, pageURL string) (*Page, error) {
	var page *Page
	err := netutil.Retry(ctx, c.retry, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx, pageURL); err != nil {
			return netutil.Permanent(err)
		}
		p, err := c.fetchOnce(ctx, pageURL)
		if err != nil {
			c.logger.Debug("fetch attempt failed", "url", pageURL, "error", err)
			return err
		}
		page = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

func (c *Client) fetchOnce(ctx context.Context, pageURL string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, netutil.Permanent(err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	for k, vs := range c.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, netutil.Permanent(err)
		}
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024)) //nolint:errcheck // draining for connection reuse
		statusErr := &StatusError{URL: pageURL, Code: resp.StatusCode}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, statusErr
		}
		return nil, netutil.Permanent(statusErr)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	truncated := int64(len(body)) > c.maxBodySize
	if truncated {
		body = body[:c.maxBodySize]
	}

	return &Page{
		URL:         pageURL,
		FinalURL:    resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Header:      resp.Header,
		Body:        body,
		Truncated:   truncated,
		FetchedAt:   time.Now().UTC(),
	}, nil
}

// IsStatus reports whether err is a *StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}
