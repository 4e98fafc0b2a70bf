package log

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/serialmirror/internal/event"
)

func TestObserver(t *testing.T) {
	t.Parallel()

	t.Run("retry becomes a warning with attempt numbers", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		obs := Observer(NewLogger(&buf, false, false))
		obs.Observe(event.Event{
			Kind:        event.KindAttemptFailed,
			URL:         "https://example.com/rw1-01/",
			Attempt:     2,
			MaxAttempts: 3,
			Err:         errors.New("status 503"),
		})

		out := buf.String()
		for _, want := range []string{"level=WARN", "attempt_failed", "attempt=2", "max_attempts=3", "status 503"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected %q in %q", want, out)
			}
		}
	})

	t.Run("progress is hidden unless verbose", func(t *testing.T) {
		t.Parallel()

		var quiet, verbose bytes.Buffer
		e := event.Event{Kind: event.KindPersisted, PageID: "rw1-00", Bytes: 2048, Elapsed: time.Second}
		Observer(NewLogger(&quiet, false, false)).Observe(e)
		Observer(NewLogger(&verbose, true, false)).Observe(e)

		if quiet.Len() != 0 {
			t.Errorf("expected no output when quiet, got %q", quiet.String())
		}
		if !strings.Contains(verbose.String(), "page=rw1-00") || !strings.Contains(verbose.String(), "bytes=2048") {
			t.Errorf("unexpected verbose output %q", verbose.String())
		}
	})

	t.Run("abort is an error", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		Observer(NewLogger(&buf, false, false)).Observe(event.Event{Kind: event.KindAborted, PageID: "rw1-02"})
		if !strings.Contains(buf.String(), "level=ERROR") {
			t.Errorf("expected error level, got %q", buf.String())
		}
	})

	t.Run("nil logger falls back to default", func(t *testing.T) {
		t.Parallel()

		Observer(nil).Observe(event.Event{Kind: event.KindDone})
	})
}
