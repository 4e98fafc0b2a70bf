// Package event defines the progress events emitted while mirroring a
// series and the Observer interface that consumes them.
//
// The crawl engine and the fetcher never print anything themselves. They
// emit events, and the caller decides where those go: the structured
// logger, the console progress printer, the run history database, or a
// Recorder in tests.
//
// # Usage
//
//	obs := event.Multi(log.Observer(logger), history.Observer(runID))
//	engine := crawler.NewEngine(store, idx, f, crawler.WithObserver(obs))
package event
