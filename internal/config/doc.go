// Package config loads the orchestration document and resolves module
// options from it.
//
// Option values are layered in increasing precedence: manifest defaults, the
// document, then command-line overrides given as dotted paths
// (--page_extractor.timeout=30). The Resolver validates each layer against
// the manifests and reports every problem as a setup error before anything
// is archived.
//
// The document is YAML and may be written back with Document.Save. Comments
// and unknown keys survive a round trip.
package config
