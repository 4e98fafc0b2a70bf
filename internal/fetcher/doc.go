// Package fetcher retrieves page content over HTTP with politeness delays
// and bounded retries.
//
// Every network attempt, the first one included, is preceded by a pause
// drawn uniformly from a configured range. Only one request is ever in
// flight. A response counts as success only with status 200; anything else
// is retried until the attempt budget is spent.
//
// # Retry scheduling
//
// Retries run through github.com/cenkalti/backoff/v4. The BackOff used is
// not exponential: it returns a fresh random politeness delay for every
// retry, so a failing page is retried at the same gentle pace as a healthy
// crawl.
//
// # Transport
//
// Responses are requested with gzip, deflate and brotli encodings and
// decoded here. An optional SOCKS5 proxy can route all traffic, and
// configured extra headers (for example a session cookie) are injected
// into every request including redirects.
package fetcher
