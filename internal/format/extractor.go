package format

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/unicode/norm"

	"github.com/nao1215/serialmirror/internal/model"
)

// ErrExtract is returned when a required field cannot be found in a page.
var ErrExtract = errors.New("extraction failed")

// Default selectors match the chapter layout of the reference site.
const (
	DefaultTitleSelector   = ".elementor-element-3d7596e h2"
	DefaultDateSelector    = ".elementor-element-8aba006 .elementor-widget-container"
	DefaultContentSelector = ".twi-article"
	DefaultTrimTrailing    = 6
)

// Extractor pulls the typed fields out of one cached page.
type Extractor interface {
	Extract(content []byte, meta model.PageMeta) (model.Extracted, error)
}

// Selectors configures a SelectorExtractor.
type Selectors struct {
	// Title selects the element holding the chapter title.
	Title string `yaml:"title"`

	// Date selects the element holding the publish date.
	Date string `yaml:"date"`

	// Content selects the chapter body container.
	Content string `yaml:"content"`

	// TrimTrailing is the number of child nodes dropped from the end of
	// the body. Chapters end with navigation links that the template
	// already provides.
	TrimTrailing int `yaml:"trim_trailing"`
}

// DefaultSelectors returns the selectors for the reference site.
func DefaultSelectors() Selectors {
	return Selectors{
		Title:        DefaultTitleSelector,
		Date:         DefaultDateSelector,
		Content:      DefaultContentSelector,
		TrimTrailing: DefaultTrimTrailing,
	}
}

// SelectorExtractor is an Extractor driven by CSS selectors.
type SelectorExtractor struct {
	sel Selectors
}

// NewSelectorExtractor creates a SelectorExtractor. Empty selectors fall
// back to the defaults; a negative TrimTrailing is treated as zero.
func NewSelectorExtractor(sel Selectors) *SelectorExtractor {
	def := DefaultSelectors()
	if sel.Title == "" {
		sel.Title = def.Title
	}
	if sel.Date == "" {
		sel.Date = def.Date
	}
	if sel.Content == "" {
		sel.Content = def.Content
	}
	if sel.TrimTrailing < 0 {
		sel.TrimTrailing = 0
	}
	return &SelectorExtractor{sel: sel}
}

// Extract implements Extractor.
func (x *SelectorExtractor) Extract(content []byte, meta model.PageMeta) (model.Extracted, error) {
	r, err := charset.NewReader(bytes.NewReader(content), "")
	if err != nil {
		return model.Extracted{}, fmt.Errorf("%w: %s: decode: %w", ErrExtract, meta.ID, err)
	}
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return model.Extracted{}, fmt.Errorf("%w: %s: parse: %w", ErrExtract, meta.ID, err)
	}

	title := collapse(doc.Find(x.sel.Title).First().Text())
	if title == "" {
		return model.Extracted{}, fmt.Errorf("%w: %s: title not found with %q", ErrExtract, meta.ID, x.sel.Title)
	}

	date := collapse(doc.Find(x.sel.Date).First().Text())
	if date == "" {
		return model.Extracted{}, fmt.Errorf("%w: %s: publish date not found with %q", ErrExtract, meta.ID, x.sel.Date)
	}

	body := doc.Find(x.sel.Content).First()
	if body.Length() == 0 {
		return model.Extracted{}, fmt.Errorf("%w: %s: content not found with %q", ErrExtract, meta.ID, x.sel.Content)
	}

	node := body.Get(0)
	for i := 0; i < x.sel.TrimTrailing && node.LastChild != nil; i++ {
		node.RemoveChild(node.LastChild)
	}

	inner, err := body.Html()
	if err != nil {
		return model.Extracted{}, fmt.Errorf("%w: %s: render content: %w", ErrExtract, meta.ID, err)
	}

	return model.Extracted{
		Title:         norm.NFC.String(title),
		DatePublished: norm.NFC.String(date),
		ContentHTML:   strings.TrimSpace(inner),
		WordCount:     len(strings.Fields(body.Text())),
	}, nil
}

// collapse trims s and folds internal runs of whitespace into one space.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
