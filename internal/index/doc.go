// Package index maintains the ordered, persisted list of pages mirrored so
// far.
//
// Order is discovery order: the first page of the series comes first. A
// page id appears at most once; updating a page replaces it where it
// stands. The index is saved after every new page so that an interrupted
// run can resume from where it stopped.
//
// # Resuming
//
// ResumePoint rewinds by one page. The last page of a series is the one
// most likely to have gained a next link since it was scraped, and
// starting one page earlier means it is re-evaluated (served from the
// cache) before the crawl moves on.
package index
