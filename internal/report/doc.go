// Package report renders the series index for people and tools.
//
// This package contains writers for different output formats:
//   - SimpleWriter: plain text for terminal display
//   - MarkdownWriter: a Markdown table of contents, also written to the
//     output directory as toc.md by the format stage
//   - JSONWriter: structured JSON for scripts
//
// Every writer consumes a Summary, which bundles the index records with
// cache sizes and totals so that the writers do not touch the filesystem.
package report
