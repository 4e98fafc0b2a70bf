// Package main provides the entry point for the serialmirror CLI.
//
// serialmirror mirrors a web serial: it follows the chain of rel="next"
// links from the first chapter, keeps a local cache of every page and a
// JSON index of the series, and renders the cached chapters into a
// self-contained offline archive.
//
// Usage:
//
//	serialmirror crawl --start https://example.com/2017/03/03/rw1-00/
//	serialmirror format
//	serialmirror mirror
//
// See --help for all available options.
package main

func main() {
	Execute()
}
