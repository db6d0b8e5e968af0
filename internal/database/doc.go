// Package database archives finished pipeline runs in SQLite.
//
// Every run that reaches a terminal state can be saved with its snapshot
// (stage statuses, timings, failing stage and error) and the output of each
// completed stage. Stage outputs are stored as JSON together with their
// SHA3-256 digest so tampered or truncated rows are detected on read.
//
// The archive uses modernc.org/sqlite, a CGO-free driver, with WAL
// journaling and a single connection.
package database
