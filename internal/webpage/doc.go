// Package webpage fetches and parses web pages for the extractors.
//
// # Components
//
//   - Client: fetches one page with a body size limit, per-host rate
//     limiting and bounded retries
//   - Parser: extracts title, description, meta tags, links, images and
//     visible text from HTML
//   - Spider: follows same-site links breadth first, used when an
//     extractor is asked to capture linked pages too
//
// The Client accepts any *http.Client, so the same code serves clearnet
// captures and captures through a Tor SOCKS5 proxy.
//
// # Usage
//
//	client := webpage.NewClient(webpage.WithRateLimit(1))
//	page, err := client.Fetch(ctx, "https://example.com")
//	doc, err := page.Parse()
package webpage
