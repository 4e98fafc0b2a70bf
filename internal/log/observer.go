package log

import (
	"context"
	"log/slog"

	"github.com/nao1215/serialmirror/internal/event"
)

// Observer returns an event.Observer that writes each event as one
// structured log line. Retries and fallbacks are warnings, exhausted
// fetches and aborts are errors, progress is Info and the rest is Debug.
func Observer(logger *slog.Logger) event.Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return event.ObserverFunc(func(e event.Event) {
		level := levelFor(e.Kind)
		ctx := context.Background()
		if !logger.Enabled(ctx, level) {
			return
		}
		logger.LogAttrs(ctx, level, string(e.Kind), attrsFor(e)...)
	})
}

func levelFor(k event.Kind) slog.Level {
	switch k {
	case event.KindFetchExhausted, event.KindAborted:
		return slog.LevelError
	case event.KindAttemptFailed, event.KindFallback, event.KindFormatSkip, event.KindLimited:
		return slog.LevelWarn
	case event.KindPersisted, event.KindDone, event.KindFormatted:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

func attrsFor(e event.Event) []slog.Attr {
	attrs := make([]slog.Attr, 0, 8)
	if e.PageID != "" {
		attrs = append(attrs, slog.String("page", e.PageID))
	}
	if e.URL != "" {
		attrs = append(attrs, slog.String("url", e.URL))
	}
	if e.Attempt > 0 {
		attrs = append(attrs, slog.Int("attempt", e.Attempt), slog.Int("max_attempts", e.MaxAttempts))
	}
	if e.Delay > 0 {
		attrs = append(attrs, slog.Duration("delay", e.Delay))
	}
	if e.Bytes > 0 {
		attrs = append(attrs, slog.Int("bytes", e.Bytes))
	}
	if e.Elapsed > 0 {
		attrs = append(attrs, slog.Duration("elapsed", e.Elapsed))
	}
	if e.Err != nil {
		attrs = append(attrs, slog.String("error", e.Err.Error()))
	}
	return attrs
}
