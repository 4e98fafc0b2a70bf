package report

import (
	"time"

	"github.com/nao1215/serialmirror/internal/model"
)

// Summary is the input of every Writer.
type Summary struct {
	// Title heads the report.
	Title string `json:"title"`

	// GeneratedAt is when the summary was built.
	GeneratedAt time.Time `json:"generated_at"`

	// Pages are the index records in discovery order.
	Pages []model.PageRecord `json:"pages"`

	// CacheSizes maps page id to the size of its cache entry in bytes.
	// Pages missing from the cache are absent.
	CacheSizes map[string]int64 `json:"cache_sizes,omitempty"`
}

// NewSummary builds a Summary. sizeOf may be nil; when set it is asked
// for the cache size of every page and a failing lookup leaves the page
// out of CacheSizes.
func NewSummary(title string, pages []model.PageRecord, sizeOf func(id string) (int64, error)) *Summary {
	s := &Summary{
		Title:       title,
		GeneratedAt: time.Now().UTC(),
		Pages:       pages,
		CacheSizes:  make(map[string]int64, len(pages)),
	}
	if sizeOf == nil {
		return s
	}
	for _, p := range pages {
		if n, err := sizeOf(p.ID); err == nil {
			s.CacheSizes[p.ID] = n
		}
	}
	return s
}

// TotalWords sums the word counts of formatted pages.
func (s *Summary) TotalWords() int {
	total := 0
	for _, p := range s.Pages {
		total += p.WordCount
	}
	return total
}

// TotalCacheSize sums the known cache sizes.
func (s *Summary) TotalCacheSize() int64 {
	var total int64
	for _, n := range s.CacheSizes {
		total += n
	}
	return total
}

// FormattedCount returns how many pages have a rendered output document.
func (s *Summary) FormattedCount() int {
	n := 0
	for _, p := range s.Pages {
		if p.Out != "" {
			n++
		}
	}
	return n
}

// LastScraped returns the most recent scrape time, or the zero time.
func (s *Summary) LastScraped() time.Time {
	var last time.Time
	for _, p := range s.Pages {
		if p.DateScraped.After(last) {
			last = p.DateScraped.Time
		}
	}
	return last
}

// displayTitle returns the page title, or its id when it has not been
// formatted yet.
func displayTitle(p model.PageRecord) string {
	if p.Title != "" {
		return p.Title
	}
	return p.ID
}
