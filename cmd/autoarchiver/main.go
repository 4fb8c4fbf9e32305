// Package main provides the entry point for the autoarchiver CLI.
//
// autoarchiver archives web content through a chain of modules configured
// in an orchestration document: a feeder produces URLs, extractors capture
// them, enrichers add information, storages keep the files, databases record
// the outcome and a formatter writes a summary.
//
// Usage:
//
//	autoarchiver archive <url>...
//	autoarchiver archive -c orchestration.yaml --local_storage.save_to=/tmp/archive
//	autoarchiver modules
//
// See --help for all available options.
package main

// main is the entry point for autoarchiver.
func main() {
	Execute()
}
