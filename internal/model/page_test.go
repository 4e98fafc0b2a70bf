package model

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestIDFromURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		url     string
		want    string
		wantErr error
	}{
		{name: "trailing slash", url: "https://wanderinginn.com/2017/03/03/rw1-00/", want: "rw1-00"},
		{name: "no trailing slash", url: "https://example.com/series/ch-2", want: "ch-2"},
		{name: "double slashes", url: "https://example.com/a//b//", want: "b"},
		{name: "query ignored", url: "https://example.com/a/ch-3/?amp=1", want: "ch-3"},
		{name: "root only", url: "https://example.com/", wantErr: ErrNoIdentifier},
		{name: "host only", url: "https://example.com", wantErr: ErrNoIdentifier},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := IDFromURL(tt.url)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestTimestamp(t *testing.T) {
	t.Parallel()

	t.Run("marshals in UTC with second precision", func(t *testing.T) {
		t.Parallel()

		loc := time.FixedZone("UTC+9", 9*60*60)
		ts := NewTimestamp(time.Date(2025, 1, 2, 12, 30, 45, 987654321, loc))

		data, err := json.Marshal(ts)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if string(data) != `"2025-01-02T03:30:45Z"` {
			t.Errorf("unexpected encoding %s", data)
		}
	})

	t.Run("rejects garbage", func(t *testing.T) {
		t.Parallel()

		var ts Timestamp
		if err := json.Unmarshal([]byte(`"yesterday"`), &ts); err == nil {
			t.Error("expected error for invalid timestamp")
		}
	})

	t.Run("empty string is zero", func(t *testing.T) {
		t.Parallel()

		var ts Timestamp
		if err := json.Unmarshal([]byte(`""`), &ts); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !ts.IsZero() {
			t.Errorf("expected zero timestamp, got %v", ts)
		}
	})
}

func TestPageRecordJSON(t *testing.T) {
	t.Parallel()

	t.Run("uses index field names", func(t *testing.T) {
		t.Parallel()

		rec := PageRecord{
			ID:          "rw1-00",
			URL:         "https://example.com/rw1-00/",
			Raw:         "raw/rw1-00.html",
			DateScraped: NewTimestamp(time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)),
		}
		data, err := json.Marshal(rec)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		want := `{"id":"rw1-00","url":"https://example.com/rw1-00/","raw":"raw/rw1-00.html","date_scraped":"2025-05-01T08:00:00Z"}`
		if string(data) != want {
			t.Errorf("expected %s, got %s", want, data)
		}
	})

	t.Run("preserves unknown fields", func(t *testing.T) {
		t.Parallel()

		in := `{"id":"a","url":"https://example.com/a","raw":"raw/a.html","date_scraped":"2025-05-01T08:00:00Z","rating":5}`
		var rec PageRecord
		if err := json.Unmarshal([]byte(in), &rec); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if string(rec.Extra["rating"]) != "5" {
			t.Fatalf("expected rating to be kept, got %v", rec.Extra)
		}

		out, err := json.Marshal(rec)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if !strings.Contains(string(out), `"rating":5`) {
			t.Errorf("rating lost on marshal: %s", out)
		}
		if !strings.Contains(string(out), `"date_scraped":"2025-05-01T08:00:00Z"`) {
			t.Errorf("date_scraped lost on marshal: %s", out)
		}
	})
}

func TestPageRecordValidate(t *testing.T) {
	t.Parallel()

	if err := (PageRecord{ID: "a", URL: "https://example.com/a"}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := (PageRecord{URL: "https://example.com/a"}).Validate(); err == nil {
		t.Error("expected error for empty id")
	}
	if err := (PageRecord{ID: "a"}).Validate(); err == nil {
		t.Error("expected error for empty url")
	}
}
