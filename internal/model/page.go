package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// TimestampLayout is the on-disk format of scrape timestamps.
// UTC, second precision, literal Z suffix.
const TimestampLayout = "2006-01-02T15:04:05Z"

// ErrNoIdentifier is returned when a URL has no non-empty path segment
// from which a page identifier can be derived.
var ErrNoIdentifier = errors.New("url has no path segment to derive a page id from")

// Timestamp is a UTC instant truncated to whole seconds.
// It marshals to and from TimestampLayout so that index files stay
// byte-stable across load/save cycles.
type Timestamp struct {
	time.Time
}

// NewTimestamp converts t to UTC and drops sub-second precision.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC().Truncate(time.Second)}
}

// String returns the timestamp in TimestampLayout.
func (t Timestamp) String() string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimestampLayout)
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements json.Unmarshaler.
// An empty string decodes to the zero Timestamp.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	if raw == "" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := time.Parse(TimestampLayout, raw)
	if err != nil {
		// Older index files may carry a full RFC 3339 value.
		parsed, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			return fmt.Errorf("invalid timestamp %q: %w", raw, err)
		}
	}
	*t = NewTimestamp(parsed)
	return nil
}

// PageRecord is one entry of the series index.
//
// The first four fields are written by the crawl engine. Title,
// DatePublished, WordCount and Out are merged in by the format stage.
// Fields that this version does not know about are kept in Extra and
// written back unchanged, so an index edited by other tools survives a
// load/upsert/save cycle.
type PageRecord struct {
	// ID is derived from URL with IDFromURL and is unique within the index.
	ID string `json:"id"`

	// URL is the canonical URL the page was fetched from.
	URL string `json:"url"`

	// Raw is the path of the cached raw page content.
	Raw string `json:"raw"`

	// DateScraped is the instant of the last successful fetch.
	DateScraped Timestamp `json:"date_scraped"`

	// Title is the chapter title extracted by the format stage.
	Title string `json:"title,omitempty"`

	// DatePublished is the publish date as printed on the page.
	DatePublished string `json:"date_published,omitempty"`

	// WordCount is the number of words in the chapter body.
	WordCount int `json:"word_count,omitempty"`

	// Out is the path of the rendered output document.
	Out string `json:"out,omitempty"`

	// Extra holds unrecognized JSON fields.
	Extra map[string]json.RawMessage `json:"-"`
}

// pageRecordFields lists the JSON keys owned by PageRecord.
var pageRecordFields = []string{
	"id", "url", "raw", "date_scraped", "title", "date_published", "word_count", "out",
}

// pageRecordAlias drops the custom (un)marshalers to avoid recursion.
type pageRecordAlias PageRecord

// MarshalJSON implements json.Marshaler.
func (r PageRecord) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(pageRecordAlias(r))
	if err != nil || len(r.Extra) == 0 {
		return data, err
	}

	merged := make(map[string]json.RawMessage, len(r.Extra)+len(pageRecordFields))
	for k, v := range r.Extra {
		merged[k] = v
	}
	var known map[string]json.RawMessage
	if err := json.Unmarshal(data, &known); err != nil {
		return nil, err
	}
	for k, v := range known {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *PageRecord) UnmarshalJSON(b []byte) error {
	var alias pageRecordAlias
	if err := json.Unmarshal(b, &alias); err != nil {
		return err
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(b, &all); err != nil {
		return err
	}
	for _, k := range pageRecordFields {
		delete(all, k)
	}
	if len(all) > 0 {
		alias.Extra = all
	}

	*r = PageRecord(alias)
	return nil
}

// Validate checks the fields the crawl engine relies on.
func (r PageRecord) Validate() error {
	if r.ID == "" {
		return errors.New("page record has empty id")
	}
	if r.URL == "" {
		return fmt.Errorf("page record %q has empty url", r.ID)
	}
	return nil
}

// IDFromURL derives a page identifier from the last non-empty path segment
// of rawURL. "https://example.com/2017/03/03/rw1-00/" yields "rw1-00".
func IDFromURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("invalid page url %q: %w", rawURL, err)
	}

	segments := strings.Split(u.Path, "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if s := segments[i]; s != "" && s != "." && s != ".." {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNoIdentifier, rawURL)
}

// Extracted holds the fields pulled out of one cached page by the
// format stage.
type Extracted struct {
	// Title is the chapter title, whitespace-trimmed and NFC normalized.
	Title string

	// DatePublished is the publish date text as shown on the page.
	DatePublished string

	// ContentHTML is the inner HTML of the chapter body.
	ContentHTML string

	// WordCount is the number of whitespace-separated words in the body.
	WordCount int
}

// PageMeta is the sequencing metadata handed to the extractor and renderer.
type PageMeta struct {
	ID          string
	PrevID      string
	NextID      string
	DateScraped Timestamp
}
