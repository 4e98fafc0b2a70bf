package crawler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/serialmirror/internal/cache"
	"github.com/nao1215/serialmirror/internal/event"
	"github.com/nao1215/serialmirror/internal/index"
	"github.com/nao1215/serialmirror/internal/model"
)

const site = "https://serial.example"

func pageURL(id string) string {
	return site + "/chapters/" + id + "/"
}

// page renders a chapter that links to next, or ends the chain when next is empty.
func page(id, next string) []byte {
	link := ""
	if next != "" {
		link = fmt.Sprintf(`<a rel="next" href="%s">Next Chapter</a>`, pageURL(next))
	}
	return []byte(fmt.Sprintf(`<html><head><title>%s</title></head><body><p>text of %s</p>%s</body></html>`, id, id, link))
}

// stubFetcher serves canned responses and counts calls per URL.
type stubFetcher struct {
	mu    sync.Mutex
	pages map[string][]byte
	calls map[string]int
}

func newStubFetcher() *stubFetcher {
	return &stubFetcher{pages: make(map[string][]byte), calls: make(map[string]int)}
}

func (s *stubFetcher) serve(id, next string) {
	s.pages[pageURL(id)] = page(id, next)
}

func (s *stubFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[url]++
	if body, ok := s.pages[url]; ok {
		return body, nil
	}
	return nil, fmt.Errorf("stub: %s unavailable", url)
}

func (s *stubFetcher) count(url string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[url]
}

func (s *stubFetcher) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

type fixture struct {
	dir     string
	store   *cache.FileStore
	index   *index.Index
	fetcher *stubFetcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dir := t.TempDir()
	return &fixture{
		dir:     dir,
		store:   cache.NewFileStore(filepath.Join(dir, "raw")),
		index:   index.New(filepath.Join(dir, "index.json")),
		fetcher: newStubFetcher(),
	}
}

func (f *fixture) cachePage(t *testing.T, id, next string) {
	t.Helper()
	if err := f.store.Write(id, page(id, next)); err != nil {
		t.Fatal(err)
	}
}

func (f *fixture) engine(opts ...Option) *Engine {
	return NewEngine(f.store, f.index, f.fetcher, opts...)
}

func assertIDs(t *testing.T, got []string, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func indexIDs(idx *index.Index) []string {
	var ids []string
	for _, r := range idx.Records() {
		ids = append(ids, r.ID)
	}
	return ids
}

func TestEngineFreshCrawl(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.fetcher.serve("ch-1", "ch-2")
	f.fetcher.serve("ch-2", "ch-3")
	f.fetcher.serve("ch-3", "")

	now := time.Date(2025, 6, 1, 12, 0, 0, 500, time.UTC)
	rec := &event.Recorder{}
	res, err := f.engine(WithObserver(rec), WithClock(func() time.Time { return now })).Run(context.Background(), pageURL("ch-1"), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Final != StateDone || res.Fetched != 3 || res.Cached != 0 {
		t.Errorf("unexpected result %+v", res)
	}
	assertIDs(t, res.Visited, "ch-1", "ch-2", "ch-3")
	assertIDs(t, indexIDs(f.index), "ch-1", "ch-2", "ch-3")

	for _, id := range []string{"ch-1", "ch-2", "ch-3"} {
		if !f.store.Exists(id) {
			t.Errorf("%s was not cached", id)
		}
		r, _ := f.index.Find(id)
		if r.URL != pageURL(id) || r.Raw != f.store.Path(id) {
			t.Errorf("unexpected record %+v", r)
		}
		if r.DateScraped.String() != "2025-06-01T12:00:00Z" {
			t.Errorf("unexpected scrape time %s", r.DateScraped)
		}
	}

	loaded, err := index.Load(filepath.Join(f.dir, "index.json"))
	if err != nil {
		t.Fatal(err)
	}
	assertIDs(t, indexIDs(loaded), "ch-1", "ch-2", "ch-3")

	if n := rec.Count(event.KindPersisted); n != 3 {
		t.Errorf("expected 3 persisted events, got %d", n)
	}
	if n := rec.Count(event.KindAdvancing); n != 2 {
		t.Errorf("expected 2 advancing events, got %d", n)
	}
	kinds := rec.Kinds()
	if kinds[len(kinds)-1] != event.KindDone {
		t.Errorf("expected last event to be done, got %s", kinds[len(kinds)-1])
	}
}

func TestEngineCacheFirst(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.cachePage(t, "ch-1", "ch-2")
	f.cachePage(t, "ch-2", "ch-3")
	f.cachePage(t, "ch-3", "")

	res, err := f.engine().Run(context.Background(), pageURL("ch-1"), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := f.fetcher.total(); n != 0 {
		t.Errorf("expected zero fetches, got %d", n)
	}
	if res.Cached != 3 || res.Fetched != 0 {
		t.Errorf("unexpected result %+v", res)
	}
	if f.index.Len() != 0 {
		t.Errorf("cache hits must not touch the index, got %v", indexIDs(f.index))
	}
	if _, err := os.Stat(filepath.Join(f.dir, "index.json")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("index file should not have been written: %v", err)
	}
}

func TestEngineAbortOnMissingContent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.fetcher.serve("ch-1", "ch-2")

	rec := &event.Recorder{}
	res, err := f.engine(WithObserver(rec)).Run(context.Background(), pageURL("ch-1"), false)
	if !errors.Is(err, ErrNoContent) {
		t.Fatalf("expected ErrNoContent, got %v", err)
	}
	if res.Final != StateAborted {
		t.Errorf("expected aborted, got %s", res.Final)
	}
	assertIDs(t, indexIDs(f.index), "ch-1")
	if f.store.Exists("ch-2") {
		t.Error("failed page must not be cached")
	}
	if n := rec.Count(event.KindAborted); n != 1 {
		t.Errorf("expected one aborted event, got %d", n)
	}
}

func TestEngineAbortLeavesIndexUntouched(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.fetcher.serve("ch-1", "ch-2")
	f.fetcher.serve("ch-2", "")
	if _, err := f.engine().Run(context.Background(), pageURL("ch-1"), false); err != nil {
		t.Fatal(err)
	}
	if err := os.RemoveAll(f.store.Dir()); err != nil {
		t.Fatal(err)
	}

	indexPath := filepath.Join(f.dir, "index.json")
	before, err := os.ReadFile(indexPath)
	if err != nil {
		t.Fatal(err)
	}

	idx, err := index.Load(indexPath)
	if err != nil {
		t.Fatal(err)
	}
	failing := newStubFetcher()
	engine := NewEngine(f.store, idx, failing)

	res, err := engine.Resume(context.Background(), "", false)
	if !errors.Is(err, ErrNoContent) {
		t.Fatalf("expected ErrNoContent, got %v", err)
	}
	if res.Final != StateAborted {
		t.Errorf("expected aborted, got %s", res.Final)
	}
	if failing.count(pageURL("ch-1")) != 1 {
		t.Errorf("expected one fetch of the resume page, got %d", failing.count(pageURL("ch-1")))
	}

	after, err := os.ReadFile(indexPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(after) != string(before) {
		t.Errorf("index file changed:\nbefore: %s\nafter:  %s", before, after)
	}

	entries, err := os.ReadDir(f.dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.Name() != "index.json" {
			t.Errorf("unexpected file left in the work dir: %s", e.Name())
		}
	}
}

func TestEngineForce(t *testing.T) {
	t.Parallel()

	t.Run("refetches cached pages and keeps index position", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.fetcher.serve("ch-1", "ch-2")
		f.fetcher.serve("ch-2", "")
		if _, err := f.engine(WithClock(func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) })).Run(context.Background(), pageURL("ch-1"), false); err != nil {
			t.Fatal(err)
		}
		if err := f.index.Update("ch-1", func(r *model.PageRecord) { r.Title = "One" }); err != nil {
			t.Fatal(err)
		}

		later := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
		res, err := f.engine(WithClock(func() time.Time { return later })).Run(context.Background(), pageURL("ch-1"), true)
		if err != nil {
			t.Fatal(err)
		}
		if res.Fetched != 2 {
			t.Errorf("expected 2 fetches, got %d", res.Fetched)
		}
		assertIDs(t, indexIDs(f.index), "ch-1", "ch-2")
		r, _ := f.index.Find("ch-1")
		if r.DateScraped.String() != "2025-02-01T00:00:00Z" {
			t.Errorf("scrape time not refreshed: %s", r.DateScraped)
		}
		if r.Title != "One" {
			t.Errorf("format fields should survive a refetch, got %+v", r)
		}
	})

	t.Run("falls back to cache when fetch fails", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.cachePage(t, "ch-1", "")

		res, err := f.engine().Run(context.Background(), pageURL("ch-1"), true)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Fallbacks != 1 || res.Final != StateDone {
			t.Errorf("unexpected result %+v", res)
		}
		if f.fetcher.total() != 1 {
			t.Errorf("expected one fetch attempt, got %d", f.fetcher.total())
		}
		if f.index.Len() != 0 {
			t.Error("fallback content is not fresh and must not be indexed")
		}
	})
}

func TestEngineCycle(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.cachePage(t, "ch-1", "ch-2")
	f.cachePage(t, "ch-2", "ch-1")

	res, err := f.engine().Run(context.Background(), pageURL("ch-1"), false)
	if !errors.Is(err, ErrCycle) {
		t.Fatalf("expected ErrCycle, got %v", err)
	}
	assertIDs(t, res.Visited, "ch-1", "ch-2")
}

func TestEngineMaxPages(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.fetcher.serve("ch-1", "ch-2")
	f.fetcher.serve("ch-2", "ch-3")
	f.fetcher.serve("ch-3", "")

	res, err := f.engine(WithMaxPages(2)).Run(context.Background(), pageURL("ch-1"), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Limited || res.Final != StateDone {
		t.Errorf("expected limited run, got %+v", res)
	}
	assertIDs(t, res.Visited, "ch-1", "ch-2")
	if f.fetcher.count(pageURL("ch-3")) != 0 {
		t.Error("page beyond the limit was fetched")
	}
}

func TestEngineCancelled(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.fetcher.serve("ch-1", "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := f.engine().Run(ctx, pageURL("ch-1"), false)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if errors.Is(err, ErrNoContent) {
		t.Error("cancellation must not be reported as missing content")
	}
	if res.Final != StateAborted || f.fetcher.total() != 0 {
		t.Errorf("unexpected result %+v, fetches %d", res, f.fetcher.total())
	}
}

func TestEngineMalformedNextLink(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	if err := f.store.Write("ch-1", []byte(`<a rel="next">broken</a>`)); err != nil {
		t.Fatal(err)
	}

	_, err := f.engine().Run(context.Background(), pageURL("ch-1"), false)
	if !errors.Is(err, ErrMalformedLink) {
		t.Fatalf("expected ErrMalformedLink, got %v", err)
	}
}

// crawledSeries returns a fixture whose cache and index hold ch-1..ch-3
// from a completed run, while the live site has since published ch-4.
func crawledSeries(t *testing.T) *fixture {
	t.Helper()

	f := newFixture(t)
	f.fetcher.serve("ch-1", "ch-2")
	f.fetcher.serve("ch-2", "ch-3")
	f.fetcher.serve("ch-3", "")
	if _, err := f.engine().Run(context.Background(), pageURL("ch-1"), false); err != nil {
		t.Fatal(err)
	}

	f.fetcher.mu.Lock()
	f.fetcher.pages[pageURL("ch-3")] = page("ch-3", "ch-4")
	f.fetcher.pages[pageURL("ch-4")] = page("ch-4", "")
	f.fetcher.mu.Unlock()
	return f
}

func TestEngineResume(t *testing.T) {
	t.Parallel()

	t.Run("rewinds one page and stays on the cache", func(t *testing.T) {
		t.Parallel()

		f := crawledSeries(t)

		res, err := f.engine(WithStartURL(pageURL("ch-1"))).Resume(context.Background(), "", false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.StartURL != pageURL("ch-2") {
			t.Errorf("expected resume at ch-2, got %s", res.StartURL)
		}
		assertIDs(t, res.Visited, "ch-2", "ch-3")
		assertIDs(t, indexIDs(f.index), "ch-1", "ch-2", "ch-3")
		if res.Cached != 2 || res.Fetched != 0 {
			t.Errorf("expected both pages from the cache, got %+v", res)
		}
		if n := f.fetcher.count(pageURL("ch-4")); n != 0 {
			t.Errorf("the cached last chapter has no next link, yet ch-4 was fetched %d times", n)
		}
	})

	t.Run("force finds chapters published since the last run", func(t *testing.T) {
		t.Parallel()

		f := crawledSeries(t)

		res, err := f.engine().Resume(context.Background(), "", true)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertIDs(t, res.Visited, "ch-2", "ch-3", "ch-4")
		assertIDs(t, indexIDs(f.index), "ch-1", "ch-2", "ch-3", "ch-4")
	})

	t.Run("resume from the last chapter with force", func(t *testing.T) {
		t.Parallel()

		f := crawledSeries(t)

		res, err := f.engine().Resume(context.Background(), "ch-3", true)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertIDs(t, res.Visited, "ch-3", "ch-4")
		if res.Fetched != 2 {
			t.Errorf("expected ch-3 and ch-4 fetched, got %+v", res)
		}
		if n := f.fetcher.count(pageURL("ch-2")); n != 1 {
			t.Errorf("expected ch-2 fetched only by the first run, got %d", n)
		}
		assertIDs(t, indexIDs(f.index), "ch-1", "ch-2", "ch-3", "ch-4")
	})

	t.Run("empty index starts at start url", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.fetcher.serve("ch-1", "")

		res, err := f.engine(WithStartURL(pageURL("ch-1"))).Resume(context.Background(), "", false)
		if err != nil {
			t.Fatal(err)
		}
		assertIDs(t, res.Visited, "ch-1")
	})

	t.Run("unknown explicit id", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		_, err := f.engine().Resume(context.Background(), "nope", false)
		if !errors.Is(err, index.ErrRecordNotFound) {
			t.Fatalf("expected ErrRecordNotFound, got %v", err)
		}
	})
}
