package format

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html"
	"os"
	"strconv"

	"github.com/PuerkitoBio/goquery"
	"github.com/dustin/go-humanize"

	"github.com/nao1215/serialmirror/internal/model"
)

//go:embed assets/template.html assets/toc.html assets/style.css
var assets embed.FS

// ErrTemplate is returned when a template lacks a required element.
var ErrTemplate = errors.New("invalid template")

// DefaultTemplate returns the embedded page template.
func DefaultTemplate() []byte {
	return mustAsset("assets/template.html")
}

// DefaultStylesheet returns the embedded stylesheet.
func DefaultStylesheet() []byte {
	return mustAsset("assets/style.css")
}

func mustAsset(name string) []byte {
	data, err := assets.ReadFile(name)
	if err != nil {
		panic(fmt.Sprintf("missing embedded asset %s: %v", name, err))
	}
	return data
}

// Renderer fills the presentation template for one page at a time.
// It is safe for concurrent use.
type Renderer struct {
	template []byte
	toc      []byte
}

// NewRenderer creates a Renderer from template. The template must contain
// elements with the classes "title" and "content".
func NewRenderer(template []byte) (*Renderer, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(template))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTemplate, err)
	}
	for _, class := range []string{".title", ".content"} {
		if doc.Find(class).Length() == 0 {
			return nil, fmt.Errorf("%w: no %s element", ErrTemplate, class)
		}
	}
	return &Renderer{template: template, toc: mustAsset("assets/toc.html")}, nil
}

// LoadRenderer reads the template at path, or uses the embedded default
// when path is empty.
func LoadRenderer(path string) (*Renderer, error) {
	if path == "" {
		return NewRenderer(DefaultTemplate())
	}
	data, err := os.ReadFile(path) //nolint:gosec // path comes from user configuration
	if err != nil {
		return nil, fmt.Errorf("failed to read template: %w", err)
	}
	return NewRenderer(data)
}

// Render returns the filled template for one page.
//
// Links to a missing neighbour lose their href and text, so the first and
// last chapters show no dead navigation.
func (r *Renderer) Render(meta model.PageMeta, ex model.Extracted) ([]byte, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(r.template))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTemplate, err)
	}

	doc.Find("head > title").SetText(ex.Title)
	doc.Find(".title").First().SetText(ex.Title).SetAttr("id", meta.ID)
	doc.Find(".date_published").First().SetText("Date published: " + ex.DatePublished)
	doc.Find(".date_scraped").First().SetText("Date scraped: " + meta.DateScraped.String())

	setNeighbour(doc.Find(".prev"), meta.PrevID)
	setNeighbour(doc.Find(".next"), meta.NextID)

	doc.Find(".content").First().AppendHtml(ex.ContentHTML)

	out, err := doc.Html()
	if err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", meta.ID, err)
	}
	return []byte(out), nil
}

func setNeighbour(links *goquery.Selection, id string) {
	if id == "" {
		links.SetText("").RemoveAttr("href")
		return
	}
	links.SetAttr("href", "./"+id+".html")
}

// RenderTOC returns the HTML table of contents for records. Records
// without a rendered document are listed without a link.
func (r *Renderer) RenderTOC(title string, records []model.PageRecord) ([]byte, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(r.toc))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTemplate, err)
	}

	doc.Find("head > title").SetText(title)
	doc.Find(".toc-title").SetText(title)

	words := 0
	list := doc.Find(".toc").First()
	for _, rec := range records {
		words += rec.WordCount
		list.AppendHtml(tocEntry(rec))
	}
	doc.Find(".toc-summary").SetText(fmt.Sprintf("%d chapters, %s words", len(records), humanize.Comma(int64(words))))

	out, err := doc.Html()
	if err != nil {
		return nil, fmt.Errorf("failed to render table of contents: %w", err)
	}
	return []byte(out), nil
}

func tocEntry(rec model.PageRecord) string {
	label := rec.Title
	if label == "" {
		label = rec.ID
	}

	var b bytes.Buffer
	b.WriteString("<li>")
	if rec.Out != "" {
		b.WriteString(`<a href="./` + html.EscapeString(rec.ID) + `.html">` + html.EscapeString(label) + "</a>")
	} else {
		b.WriteString(html.EscapeString(label))
	}
	if rec.DatePublished != "" || rec.WordCount > 0 {
		b.WriteString(` <span class="meta">`)
		b.WriteString(html.EscapeString(rec.DatePublished))
		if rec.WordCount > 0 {
			if rec.DatePublished != "" {
				b.WriteString(", ")
			}
			b.WriteString(strconv.Itoa(rec.WordCount) + " words")
		}
		b.WriteString("</span>")
	}
	b.WriteString("</li>")
	return b.String()
}
