package crawler

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

var (
	// ErrUnparseable is returned when page content cannot be parsed as HTML.
	ErrUnparseable = errors.New("page content cannot be parsed")

	// ErrMalformedLink is returned when a rel="next" element carries no
	// usable http(s) target.
	ErrMalformedLink = errors.New("malformed next link")
)

// HopKind tells whether a page continues the chain or ends it.
type HopKind int

const (
	// HopEnd means the page has no next link. This is the normal end of
	// a crawl, not a failure.
	HopEnd HopKind = iota
	// HopContinue means the page links to a next page.
	HopContinue
)

// String returns the name of the hop kind.
func (k HopKind) String() string {
	if k == HopContinue {
		return "continue"
	}
	return "end"
}

// Hop is the result of looking for the next link on a page.
// URL is absolute and only set for HopContinue.
type Hop struct {
	Kind HopKind
	URL  string
}

// NextLink finds the first element in document order whose rel attribute
// contains the token "next" and returns its href resolved against baseURL.
// Pages without such an element yield Hop{Kind: HopEnd}.
func NextLink(baseURL string, content []byte) (Hop, error) {
	if len(bytes.TrimSpace(content)) == 0 {
		return Hop{}, fmt.Errorf("%w: empty content", ErrUnparseable)
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return Hop{}, fmt.Errorf("invalid base url %q: %w", baseURL, err)
	}

	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return Hop{}, fmt.Errorf("%w: %w", ErrUnparseable, err)
	}

	n := findRelNext(doc)
	if n == nil {
		return Hop{Kind: HopEnd}, nil
	}

	href, ok := getAttr(n, "href")
	href = strings.TrimSpace(href)
	if !ok || href == "" {
		return Hop{}, fmt.Errorf("%w: <%s rel=next> has no href", ErrMalformedLink, n.Data)
	}

	ref, err := url.Parse(href)
	if err != nil {
		return Hop{}, fmt.Errorf("%w: %q: %w", ErrMalformedLink, href, err)
	}
	resolved := base.ResolveReference(ref)
	resolved.Fragment = ""
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return Hop{}, fmt.Errorf("%w: unsupported target %q", ErrMalformedLink, href)
	}

	return Hop{Kind: HopContinue, URL: resolved.String()}, nil
}

// findRelNext walks the tree depth first and returns the first element
// with a rel=next token.
func findRelNext(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && hasRelToken(n, "next") {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findRelNext(c); found != nil {
			return found
		}
	}
	return nil
}

// hasRelToken reports whether the space separated rel attribute of n
// contains token, ignoring case.
func hasRelToken(n *html.Node, token string) bool {
	rel, ok := getAttr(n, "rel")
	if !ok {
		return false
	}
	for _, field := range strings.Fields(rel) {
		if strings.EqualFold(field, token) {
			return true
		}
	}
	return false
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) (string, bool) {
	for _, attr := range n.Attr {
		if attr.Namespace == "" && attr.Key == key {
			return attr.Val, true
		}
	}
	return "", false
}
