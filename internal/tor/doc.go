// Package tor routes archive captures of onion services through Tor.
//
// A Transport wraps a SOCKS5 dialer and hands out HTTP clients for the
// extractors. The proxy is either an existing Tor daemon or a Daemon
// started with tornago for the duration of a run.
package tor
