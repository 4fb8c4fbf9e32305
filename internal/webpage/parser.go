package webpage

import (
	"io"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// Document is what Parse extracts from an HTML page.
type Document struct {
	// Title is the text of the <title> element.
	Title string

	// Description comes from the description or og:description meta tag.
	Description string

	// Canonical is the href of <link rel="canonical">, resolved.
	Canonical string

	// Language is the lang attribute of <html>.
	Language string

	// MetaTags maps meta name (or OpenGraph property) to content.
	MetaTags map[string]string

	// Links are every resolved anchor href, in document order.
	Links []string

	// InternalLinks are the links pointing at the same host.
	InternalLinks []string

	// Images are resolved image and icon sources.
	Images []string

	// Emails are addresses found in the text.
	Emails []string

	// OnionAddresses are .onion hosts mentioned in the text.
	OnionAddresses []string

	// Text is the visible text, whitespace collapsed.
	Text string
}

// Parser extracts information from HTML content.
type Parser struct {
	// baseURL resolves relative references.
	baseURL *url.URL
}

// NewParser creates a parser that resolves links against baseURL.
func NewParser(baseURL string) (*Parser, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	return &Parser{baseURL: u}, nil
}

// Parse reads HTML and extracts a Document in a single pass.
func (p *Parser) Parse(content io.Reader) (*Document, error) {
	root, err := html.Parse(content)
	if err != nil {
		return nil, err
	}

	doc := &Document{MetaTags: make(map[string]string)}
	var text strings.Builder
	seen := make(map[string]bool)

	var walk func(*html.Node, bool)
	walk = func(n *html.Node, hidden bool) {
		switch n.Type {
		case html.ElementNode:
			p.processElement(n, doc, seen)
			if n.Data == "script" || n.Data == "style" || n.Data == "noscript" || n.Data == "template" {
				hidden = true
			}
		case html.TextNode:
			if !hidden {
				text.WriteString(n.Data)
				text.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, hidden)
		}
	}
	walk(root, false)

	doc.Text = strings.Join(strings.Fields(text.String()), " ")
	doc.Emails = uniqueMatches(emailRegex, doc.Text)
	doc.OnionAddresses = uniqueMatches(onionRegex, doc.Text)
	if doc.Description == "" {
		doc.Description = doc.MetaTags["og:description"]
	}
	if doc.Title == "" {
		doc.Title = doc.MetaTags["og:title"]
	}
	return doc, nil
}

func (p *Parser) processElement(n *html.Node, doc *Document, seen map[string]bool) {
	switch n.Data {
	case "html":
		doc.Language = getAttr(n, "lang")

	case "title":
		if doc.Title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
			doc.Title = strings.TrimSpace(n.FirstChild.Data)
		}

	case "a":
		resolved := p.resolveURL(getAttr(n, "href"))
		if resolved == "" || seen[resolved] {
			return
		}
		seen[resolved] = true
		doc.Links = append(doc.Links, resolved)
		if p.isInternal(resolved) {
			doc.InternalLinks = append(doc.InternalLinks, resolved)
		}

	case "img":
		if src := p.resolveURL(getAttr(n, "src")); src != "" {
			doc.Images = append(doc.Images, src)
		}

	case "meta":
		name := getAttr(n, "name")
		if name == "" {
			name = getAttr(n, "property")
		}
		content := strings.TrimSpace(getAttr(n, "content"))
		if name == "" || content == "" {
			return
		}
		name = strings.ToLower(name)
		doc.MetaTags[name] = content
		if name == "description" {
			doc.Description = content
		}

	case "link":
		href := getAttr(n, "href")
		switch strings.ToLower(getAttr(n, "rel")) {
		case "canonical":
			doc.Canonical = p.resolveURL(href)
		case "icon", "shortcut icon":
			if src := p.resolveURL(href); src != "" {
				doc.Images = append(doc.Images, src)
			}
		}
	}
}

// resolveURL resolves href against the base URL. Non-navigational
// references resolve to "".
func (p *Parser) resolveURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || href == "#" {
		return ""
	}
	lower := strings.ToLower(href)
	for _, prefix := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(lower, prefix) {
			return ""
		}
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	resolved := p.baseURL.ResolveReference(u)
	resolved.Fragment = ""
	return resolved.String()
}

func (p *Parser) isInternal(link string) bool {
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Hostname(), p.baseURL.Hostname())
}

var (
	emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	onionRegex = regexp.MustCompile(`\b[a-z2-7]{56}\.onion\b`)
)

func uniqueMatches(re *regexp.Regexp, text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range re.FindAllString(text, -1) {
		m = strings.ToLower(m)
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
