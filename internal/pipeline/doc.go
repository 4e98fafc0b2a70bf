// Package pipeline runs the crawl and format stages in sequence.
//
// The crawl, format and mirror commands are each a Pipeline of one or
// both steps sharing a single Archive. Each stage is a Step that records
// its result in the Archive, so the command can report and record run
// history the same way whichever steps ran.
package pipeline
