// Package model defines the data structures shared across serialmirror.
//
// This package contains the following main types:
//   - PageRecord: one entry of the persisted series index
//   - Timestamp: a UTC, second-precision instant with a fixed JSON layout
//   - Extracted: the typed fields pulled out of a cached page for rendering
//   - PageMeta: the sequencing metadata (prev/next ids) for one page
//
// Models live in their own package because the cache, index, crawler and
// format packages all need them, and centralizing them prevents import cycles.
package model
