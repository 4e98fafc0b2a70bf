package main

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/serialmirror/internal/event"
)

func TestProgress(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p := newProgress(&buf)

	p.Observe(event.Event{Kind: event.KindResolving, PageID: "ch-1"})
	p.Observe(event.Event{Kind: event.KindDelayApplied, Delay: 7 * time.Second})
	p.Observe(event.Event{Kind: event.KindAttemptFailed, URL: "https://example.com/ch-1/", Attempt: 1, MaxAttempts: 3, Elapsed: 30 * time.Second, Err: errors.New("timeout")})
	p.Observe(event.Event{Kind: event.KindAttemptStarted, URL: "https://example.com/ch-1/", Attempt: 2, MaxAttempts: 3})
	p.Observe(event.Event{Kind: event.KindAttemptSucceeded, URL: "https://example.com/ch-1/", Attempt: 2, MaxAttempts: 3, Elapsed: 1250 * time.Millisecond, Bytes: 2048})
	p.Observe(event.Event{Kind: event.KindPersisted, PageID: "ch-1", Bytes: 2048})
	p.Observe(event.Event{Kind: event.KindCached, PageID: "ch-2", Bytes: 10})
	p.Observe(event.Event{Kind: event.KindDelayApplied, Delay: 10 * time.Millisecond})

	out := buf.String()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 5 {
		t.Fatalf("expected 5 lines, got %d:\n%s", len(lines), out)
	}
	for _, want := range []string{"waiting 7s", "attempt 1/3 failed after 30s", "attempt 2/3 completed in 1.25s (2.0 kB)", "[   1] ch-1", "fetched", "2.0 kB", "[   2] ch-2", "cached"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestProgressConcurrent(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p := newProgress(&buf)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Observe(event.Event{Kind: event.KindFormatSkip, PageID: "ch-x", Err: errors.New("bad")})
		}()
	}
	wg.Wait()

	if n := strings.Count(buf.String(), "skipped ch-x"); n != 20 {
		t.Errorf("expected 20 lines, got %d", n)
	}
}
