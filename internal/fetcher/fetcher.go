package fetcher

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/cenkalti/backoff/v4"

	"github.com/nao1215/serialmirror/internal/event"
)

// Default values for the politeness and retry policy.
const (
	DefaultDelayMin    = 5 * time.Second
	DefaultDelayMax    = 15 * time.Second
	DefaultMaxAttempts = 3
	DefaultTimeout     = 30 * time.Second
	DefaultMaxBodySize = 10 << 20

	// DefaultUserAgent mimics a desktop browser.
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"
)

var (
	// ErrFetchFailed is returned when every attempt for a URL failed.
	ErrFetchFailed = errors.New("fetch failed")

	// ErrBodyTooLarge is returned when a response exceeds the body size cap.
	ErrBodyTooLarge = errors.New("response body too large")
)

// StatusError reports a response with a status other than 200.
type StatusError struct {
	Code int
	URL  string
}

// Error implements error.
func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d %s for %s", e.Code, http.StatusText(e.Code), e.URL)
}

// Fetcher retrieves the content at a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// HTTPFetcher is a Fetcher that talks HTTP with politeness delays and
// bounded retries. It is not meant for concurrent use by several crawls.
type HTTPFetcher struct {
	client      *http.Client
	headers     http.Header
	delayMin    time.Duration
	delayMax    time.Duration
	maxAttempts int
	maxBodySize int64
	observer    event.Observer
	rand        *rand.Rand
}

// Option configures an HTTPFetcher.
type Option func(*HTTPFetcher)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *HTTPFetcher) {
		if c != nil {
			f.client = c
		}
	}
}

// WithDelay sets the range the pre-attempt pause is drawn from.
// A max below min is raised to min.
func WithDelay(minDelay, maxDelay time.Duration) Option {
	return func(f *HTTPFetcher) {
		if minDelay < 0 {
			minDelay = 0
		}
		if maxDelay < minDelay {
			maxDelay = minDelay
		}
		f.delayMin, f.delayMax = minDelay, maxDelay
	}
}

// WithMaxAttempts sets the number of attempts per Fetch call.
func WithMaxAttempts(n int) Option {
	return func(f *HTTPFetcher) {
		if n > 0 {
			f.maxAttempts = n
		}
	}
}

// WithMaxBodySize caps the decoded response body.
func WithMaxBodySize(n int64) Option {
	return func(f *HTTPFetcher) {
		if n > 0 {
			f.maxBodySize = n
		}
	}
}

// WithHeaders adds request headers, overriding the defaults on conflict.
func WithHeaders(h map[string]string) Option {
	return func(f *HTTPFetcher) {
		for k, v := range h {
			f.headers.Set(k, v)
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *HTTPFetcher) {
		if ua != "" {
			f.headers.Set("User-Agent", ua)
		}
	}
}

// WithObserver sets the observer that receives fetch events.
func WithObserver(o event.Observer) Option {
	return func(f *HTTPFetcher) {
		if o != nil {
			f.observer = o
		}
	}
}

// WithRand sets the random source used for delays.
func WithRand(r *rand.Rand) Option {
	return func(f *HTTPFetcher) {
		if r != nil {
			f.rand = r
		}
	}
}

// DefaultHeaders returns the browser-like header set sent with every request.
func DefaultHeaders() http.Header {
	h := make(http.Header)
	h.Set("User-Agent", DefaultUserAgent)
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	h.Set("Accept-Language", "en-US,en;q=0.5")
	h.Set("Accept-Encoding", "gzip, deflate, br")
	h.Set("Accept-Charset", "utf-8, iso-8859-1;q=0.5")
	return h
}

// New creates an HTTPFetcher. Without WithHTTPClient a plain client with
// DefaultTimeout is used.
func New(opts ...Option) *HTTPFetcher {
	f := &HTTPFetcher{
		headers:     DefaultHeaders(),
		delayMin:    DefaultDelayMin,
		delayMax:    DefaultDelayMax,
		maxAttempts: DefaultMaxAttempts,
		maxBodySize: DefaultMaxBodySize,
		observer:    event.Nop(),
		rand:        rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())), //nolint:gosec // delay jitter
	}
	for _, opt := range opts {
		opt(f)
	}
	client := &http.Client{Timeout: DefaultTimeout}
	if f.client != nil {
		copied := *f.client
		client = &copied
	}
	client.Transport = &headerTransport{base: client.Transport, headers: f.headers.Clone()}
	f.client = client
	return f
}

// MaxAttempts returns the attempt budget per Fetch call.
func (f *HTTPFetcher) MaxAttempts() int {
	return f.maxAttempts
}

// Fetch retrieves url. On success the decoded body is returned. When every
// attempt fails the error wraps ErrFetchFailed and the last attempt error.
// Cancellation of ctx is returned as is, without ErrFetchFailed.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	pb := &politeBackOff{draw: f.drawDelay}

	// The first attempt waits too; backoff only schedules the retries.
	pb.last = f.drawDelay()
	if err := sleep(ctx, pb.last); err != nil {
		return nil, err
	}

	attempt := 0
	op := func() ([]byte, error) {
		attempt++
		f.emit(event.Event{Kind: event.KindDelayApplied, URL: url, Attempt: attempt, MaxAttempts: f.maxAttempts, Delay: pb.last})
		f.emit(event.Event{Kind: event.KindAttemptStarted, URL: url, Attempt: attempt, MaxAttempts: f.maxAttempts})

		start := time.Now()
		body, err := f.do(ctx, url)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(ctx.Err())
			}
			f.emit(event.Event{Kind: event.KindAttemptFailed, URL: url, Attempt: attempt, MaxAttempts: f.maxAttempts, Elapsed: time.Since(start), Err: err})
			return nil, err
		}

		f.emit(event.Event{Kind: event.KindAttemptSucceeded, URL: url, Attempt: attempt, MaxAttempts: f.maxAttempts, Elapsed: time.Since(start), Bytes: len(body)})
		return body, nil
	}

	b := backoff.WithContext(backoff.WithMaxRetries(pb, uint64(f.maxAttempts-1)), ctx) //nolint:gosec // maxAttempts >= 1
	body, err := backoff.RetryWithData(op, b)
	if err == nil {
		return body, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	f.emit(event.Event{Kind: event.KindFetchExhausted, URL: url, Attempt: attempt, MaxAttempts: f.maxAttempts, Err: err})
	return nil, fmt.Errorf("%w: %s after %d attempts: %w", ErrFetchFailed, url, attempt, err)
}

// do performs a single GET.
func (f *HTTPFetcher) do(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10)) //nolint:errcheck // drain for connection reuse
		return nil, &StatusError{Code: resp.StatusCode, URL: url}
	}
	return f.readBody(resp)
}

// readBody decodes the Content-Encoding of resp and enforces the size cap.
func (f *HTTPFetcher) readBody(resp *http.Response) ([]byte, error) {
	var reader io.Reader = resp.Body

	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip", "x-gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip decode: %w", err)
		}
		defer gz.Close()
		reader = gz
	case "deflate":
		fl := flate.NewReader(resp.Body)
		defer fl.Close()
		reader = fl
	case "br":
		reader = brotli.NewReader(resp.Body)
	case "", "identity":
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", resp.Header.Get("Content-Encoding"))
	}

	body, err := io.ReadAll(io.LimitReader(reader, f.maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > f.maxBodySize {
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrBodyTooLarge, f.maxBodySize)
	}
	return body, nil
}

// drawDelay returns a duration uniformly distributed in [delayMin, delayMax].
func (f *HTTPFetcher) drawDelay() time.Duration {
	span := f.delayMax - f.delayMin
	if span <= 0 {
		return f.delayMin
	}
	return f.delayMin + time.Duration(f.rand.Int64N(int64(span)+1))
}

func (f *HTTPFetcher) emit(e event.Event) {
	f.observer.Observe(event.Stamp(e))
}

// politeBackOff is a backoff.BackOff that returns a new random politeness
// delay for every retry.
type politeBackOff struct {
	draw func() time.Duration
	last time.Duration
}

// NextBackOff implements backoff.BackOff.
func (b *politeBackOff) NextBackOff() time.Duration {
	b.last = b.draw()
	return b.last
}

// Reset implements backoff.BackOff.
func (b *politeBackOff) Reset() {}

// sleep pauses for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
