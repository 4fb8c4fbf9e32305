// Package netutil holds the network helpers shared by modules that talk to
// remote services: bounded retries, bounded polling and per-host rate
// limiting.
package netutil
