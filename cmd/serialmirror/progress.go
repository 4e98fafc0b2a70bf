package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/nao1215/serialmirror/internal/event"
)

// progress prints one console line per page. It is an event.Observer and
// is safe for the concurrent formatter.
type progress struct {
	mu    sync.Mutex
	out   io.Writer
	pages int
}

func newProgress(out io.Writer) *progress {
	return &progress{out: out}
}

// Observe implements event.Observer.
func (p *progress) Observe(e event.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch e.Kind {
	case event.KindCached:
		p.pages++
		fmt.Fprintf(p.out, "[%4d] %-40s cached    %s\n", p.pages, e.PageID, humanize.Bytes(uint64(max(e.Bytes, 0))))
	case event.KindPersisted:
		p.pages++
		fmt.Fprintf(p.out, "[%4d] %-40s fetched   %s\n", p.pages, e.PageID, humanize.Bytes(uint64(max(e.Bytes, 0))))
	case event.KindFallback:
		p.pages++
		fmt.Fprintf(p.out, "[%4d] %-40s fallback  %v\n", p.pages, e.PageID, e.Err)
	case event.KindAttemptSucceeded:
		fmt.Fprintf(p.out, "       attempt %d/%d completed in %s (%s)\n",
			e.Attempt, e.MaxAttempts, e.Elapsed.Round(time.Millisecond), humanize.Bytes(uint64(max(e.Bytes, 0))))
	case event.KindAttemptFailed:
		fmt.Fprintf(p.out, "       attempt %d/%d failed after %s %s: %v\n",
			e.Attempt, e.MaxAttempts, e.Elapsed.Round(time.Millisecond), e.URL, e.Err)
	case event.KindDelayApplied:
		if e.Delay >= time.Second {
			fmt.Fprintf(p.out, "       waiting %s\n", e.Delay.Round(100*time.Millisecond))
		}
	case event.KindLimited:
		fmt.Fprintf(p.out, "page limit reached before %s\n", e.URL)
	case event.KindAborted:
		fmt.Fprintf(p.out, "crawl aborted at %s: %v\n", e.URL, e.Err)
	case event.KindFormatSkip:
		fmt.Fprintf(p.out, "skipped %s: %v\n", e.PageID, e.Err)
	}
}
