// Package cache persists raw page content on the local filesystem, one
// file per page id.
//
// The cache is the source of truth for what has already been downloaded.
// The crawl engine consults it before touching the network, and the format
// stage reads from it without ever fetching.
//
// Content is stored byte-for-byte as received. Writes are atomic: a process
// killed mid-write leaves either the previous file or no file, never a
// truncated one.
package cache
