// Package log provides secure logging on top of log/slog and the bridge
// from crawl events to log lines.
//
// SecureHandler masks values that must not end up in a shared log:
//   - request headers such as Cookie and Authorization
//   - keys containing password, token, secret, auth or nonce
//   - bearer/basic credentials, JWTs and WordPress login cookies by value
//   - sensitive query parameters and proxy passwords inside URLs
//
// Even in verbose mode these values stay masked.
//
// # Usage
//
//	logger := log.NewLogger(os.Stderr, verbose, jsonLog)
//	slog.SetDefault(logger)
//
//	engine := crawler.NewEngine(store, idx, f,
//	    crawler.WithObserver(log.Observer(logger)),
//	)
package log
