package event

import (
	"sync"
	"time"
)

// Kind identifies what happened.
type Kind string

// Fetcher events.
const (
	// KindDelayApplied is emitted after the politeness delay before an attempt.
	KindDelayApplied Kind = "delay_applied"
	// KindAttemptStarted is emitted when an HTTP attempt begins.
	KindAttemptStarted Kind = "attempt_started"
	// KindAttemptFailed is emitted when an attempt fails and may be retried.
	KindAttemptFailed Kind = "attempt_failed"
	// KindAttemptSucceeded is emitted when an attempt returns content.
	KindAttemptSucceeded Kind = "attempt_succeeded"
	// KindFetchExhausted is emitted when every attempt for a URL failed.
	KindFetchExhausted Kind = "fetch_exhausted"
)

// Crawl engine events, one per state transition.
const (
	KindResolving  Kind = "resolving"
	KindCached     Kind = "cached"
	KindFetching   Kind = "fetching"
	KindFallback   Kind = "cache_fallback"
	KindPersisted  Kind = "persisted"
	KindAdvancing  Kind = "advancing"
	KindDone       Kind = "done"
	KindLimited    Kind = "limited"
	KindAborted    Kind = "aborted"
	KindFormatted  Kind = "formatted"
	KindFormatSkip Kind = "format_skipped"
)

// Event is a single progress notification. Fields that do not apply to
// a Kind are left at their zero value.
type Event struct {
	Kind        Kind
	Time        time.Time
	PageID      string
	URL         string
	Attempt     int
	MaxAttempts int
	Bytes       int
	Elapsed     time.Duration
	Delay       time.Duration
	Err         error
}

// Observer consumes events. Implementations must be safe to call from the
// goroutine running the crawl; the formatter may call from several.
type Observer interface {
	Observe(e Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(e Event)

// Observe calls f(e).
func (f ObserverFunc) Observe(e Event) { f(e) }

type nop struct{}

func (nop) Observe(Event) {}

// Nop returns an Observer that discards every event.
func Nop() Observer { return nop{} }

type multi []Observer

func (m multi) Observe(e Event) {
	for _, o := range m {
		o.Observe(e)
	}
}

// Multi fans an event out to every non-nil observer in order.
func Multi(observers ...Observer) Observer {
	out := make(multi, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return Nop()
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}

// Stamp sets e.Time to now when it is unset and returns e.
func Stamp(e Event) Event {
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}
	return e
}

// Recorder stores every event it observes. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Observe appends e.
func (r *Recorder) Observe(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Kinds returns the kinds of the recorded events in order.
func (r *Recorder) Kinds() []Kind {
	events := r.Events()
	out := make([]Kind, len(events))
	for i, e := range events {
		out[i] = e.Kind
	}
	return out
}

// Count returns how many recorded events have kind k.
func (r *Recorder) Count(k Kind) int {
	n := 0
	for _, e := range r.Events() {
		if e.Kind == k {
			n++
		}
	}
	return n
}
