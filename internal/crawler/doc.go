// Package crawler walks a serialized work page by page along its
// rel="next" links.
//
// # Architecture
//
// The package has two parts:
//
//   - NextLink: finds the next-page link in a page's HTML
//   - Engine: the sequential state machine that resolves each page from
//     the cache or the network, records fresh pages in the index and
//     follows the chain
//
// Design decision: The engine follows exactly one link per page and keeps
// no frontier. A series is a linked list, so breadth-first discovery would
// only add requests against a single, small origin.
//
// # Per-page states
//
//	Resolving -> Cached   -> Advancing
//	          -> Fetching -> Persisted -> Advancing
//	Advancing -> Resolving | Done
//	any       -> Aborted
//
// # Usage
//
//	engine := crawler.NewEngine(store, idx, f, crawler.WithStartURL(start))
//	res, err := engine.Resume(ctx, "", false)
package crawler
