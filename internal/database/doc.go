// Package database stores the archiving history in SQLite.
//
// Every lifecycle event of an item (started, failed, aborted, done) is kept
// as a row. Done rows carry the full result as JSON so a later run can answer
// from the cache instead of archiving the URL again.
package database
