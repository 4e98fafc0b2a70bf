// Package database provides SQLite-based run history for serialmirror.
//
// HistoryDB stores:
//   - one row per crawl/format/mirror run, with its outcome and counters
//   - every crawl event emitted during the run (delays, attempts, fallbacks)
//
// The series index stays a plain JSON file; the database only answers
// "what happened during last night's crawl".
package database
