package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nao1215/serialmirror/internal/cache"
	"github.com/nao1215/serialmirror/internal/event"
	"github.com/nao1215/serialmirror/internal/fetcher"
	"github.com/nao1215/serialmirror/internal/index"
	"github.com/nao1215/serialmirror/internal/model"
)

var (
	// ErrNoContent is returned when a page is neither cached nor fetchable.
	ErrNoContent = errors.New("no content available for page")

	// ErrCycle is returned when a next link leads back to a page already
	// visited in the same run.
	ErrCycle = errors.New("next link leads to an already visited page")
)

// State is a step of the per-page state machine.
type State int

// Engine states. A page moves Resolving -> Cached | Fetching -> Persisted
// -> Advancing, and the run ends in Done or Aborted.
const (
	StateResolving State = iota
	StateCached
	StateFetching
	StatePersisted
	StateAdvancing
	StateDone
	StateAborted
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateResolving:
		return "resolving"
	case StateCached:
		return "cached"
	case StateFetching:
		return "fetching"
	case StatePersisted:
		return "persisted"
	case StateAdvancing:
		return "advancing"
	case StateDone:
		return "done"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Result summarizes a run.
type Result struct {
	// StartURL is the URL the run began at.
	StartURL string

	// Visited lists page ids in the order they were processed.
	Visited []string

	// Fetched counts pages whose content came from the network.
	Fetched int

	// Cached counts pages served from the cache, forced fallbacks included.
	Cached int

	// Fallbacks counts forced refreshes that fell back to the cache.
	Fallbacks int

	// Final is StateDone or StateAborted.
	Final State

	// Limited is set when the run stopped at the page limit.
	Limited bool

	// LastURL is the URL of the last page processed.
	LastURL string
}

// Engine walks a chain of pages linked by rel="next", serving each page
// from the cache when possible and recording fetched pages in the index.
type Engine struct {
	store    cache.Store
	index    *index.Index
	fetcher  fetcher.Fetcher
	observer event.Observer
	maxPages int
	startURL string
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithObserver sets the observer that receives state transitions.
func WithObserver(o event.Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

// WithMaxPages bounds the number of pages processed per run. 0 is unbounded.
func WithMaxPages(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.maxPages = n
		}
	}
}

// WithStartURL sets the URL Resume falls back to when the index is empty.
func WithStartURL(u string) Option {
	return func(e *Engine) {
		e.startURL = u
	}
}

// WithClock replaces the clock used for scrape timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine creates an Engine over the given cache, index and fetcher.
func NewEngine(store cache.Store, idx *index.Index, f fetcher.Fetcher, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		index:    idx,
		fetcher:  f,
		observer: event.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Resume starts a run at the index resume point: explicitID when set,
// otherwise the second-to-last indexed page, or the configured start URL
// for an empty index.
func (e *Engine) Resume(ctx context.Context, explicitID string, force bool) (*Result, error) {
	startURL, err := e.index.ResumePoint(explicitID, e.startURL)
	if err != nil {
		return &Result{Final: StateAborted}, fmt.Errorf("failed to determine resume point: %w", err)
	}
	return e.Run(ctx, startURL, force)
}

// Run walks the chain starting at startURL until a page without a next
// link is reached.
//
// Without force, cached pages are never fetched and never rewrite the
// index. With force, every page is fetched and the cache is only used
// when the fetch fails. The index is saved after every fetched page, so
// an aborted run keeps the progress made so far.
func (e *Engine) Run(ctx context.Context, startURL string, force bool) (*Result, error) {
	res := &Result{StartURL: startURL}
	visited := make(map[string]bool)
	current := startURL

	for {
		if err := ctx.Err(); err != nil {
			return e.abort(res, current, "", err)
		}
		if e.maxPages > 0 && len(res.Visited) >= e.maxPages {
			res.Limited = true
			res.Final = StateDone
			e.emit(event.Event{Kind: event.KindLimited, URL: current})
			return res, nil
		}

		id, err := model.IDFromURL(current)
		if err != nil {
			return e.abort(res, current, "", err)
		}
		if visited[id] {
			return e.abort(res, current, id, fmt.Errorf("%w: %s", ErrCycle, id))
		}
		visited[id] = true
		res.Visited = append(res.Visited, id)
		res.LastURL = current
		e.emit(event.Event{Kind: event.KindResolving, PageID: id, URL: current})

		content, fresh, err := e.resolve(ctx, res, id, current, force)
		if err != nil {
			return e.abort(res, current, id, err)
		}
		if fresh {
			if err := e.persist(id, current, content); err != nil {
				return e.abort(res, current, id, err)
			}
		}

		hop, err := NextLink(current, content)
		if err != nil {
			return e.abort(res, current, id, fmt.Errorf("page %s: %w", id, err))
		}
		if hop.Kind == HopEnd {
			res.Final = StateDone
			e.emit(event.Event{Kind: event.KindDone, PageID: id, URL: current})
			return res, nil
		}

		e.emit(event.Event{Kind: event.KindAdvancing, PageID: id, URL: hop.URL})
		current = hop.URL
	}
}

// resolve returns the content for one page and whether it was freshly
// fetched.
func (e *Engine) resolve(ctx context.Context, res *Result, id, pageURL string, force bool) ([]byte, bool, error) {
	if !force {
		content, err := e.store.Read(id)
		if err == nil {
			res.Cached++
			e.emit(event.Event{Kind: event.KindCached, PageID: id, URL: pageURL, Bytes: len(content)})
			return content, false, nil
		}
		if !errors.Is(err, cache.ErrNotFound) {
			return nil, false, err
		}
	}

	e.emit(event.Event{Kind: event.KindFetching, PageID: id, URL: pageURL})
	content, fetchErr := e.fetcher.Fetch(ctx, pageURL)
	if fetchErr == nil {
		res.Fetched++
		return content, true, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, false, ctxErr
	}

	if force {
		if content, err := e.store.Read(id); err == nil {
			res.Cached++
			res.Fallbacks++
			e.emit(event.Event{Kind: event.KindFallback, PageID: id, URL: pageURL, Bytes: len(content), Err: fetchErr})
			return content, false, nil
		}
	}
	return nil, false, fmt.Errorf("%w: %s: %w", ErrNoContent, pageURL, fetchErr)
}

// persist writes fresh content to the cache and records it in the index.
// Fields merged in by the format stage and unknown fields are carried over
// from the previous record of the same id.
func (e *Engine) persist(id, pageURL string, content []byte) error {
	if err := e.store.Write(id, content); err != nil {
		return err
	}

	rec := model.PageRecord{}
	if prev, ok := e.index.Find(id); ok {
		rec = prev
	}
	rec.ID = id
	rec.URL = pageURL
	rec.Raw = e.store.Path(id)
	rec.DateScraped = model.NewTimestamp(e.now())

	if _, err := e.index.Upsert(rec); err != nil {
		return err
	}
	if err := e.index.Save(); err != nil {
		return err
	}
	e.emit(event.Event{Kind: event.KindPersisted, PageID: id, URL: pageURL, Bytes: len(content)})
	return nil
}

func (e *Engine) abort(res *Result, pageURL, id string, err error) (*Result, error) {
	res.Final = StateAborted
	e.emit(event.Event{Kind: event.KindAborted, PageID: id, URL: pageURL, Err: err})
	return res, err
}

func (e *Engine) emit(ev event.Event) {
	e.observer.Observe(event.Stamp(ev))
}
