// Package pipeline drives work items through the archiving stages.
//
// For each item fed by the run's single feeder the orchestrator validates
// and sanitizes the URL, asks the databases for a cached result, tries the
// extractors in order until one succeeds, runs every enricher, stores every
// asset in every storage, renders the item with the formatter and finally
// records the result in the databases.
//
// Failures of individual collaborators are soft: they are logged and the
// item moves on. Only a missing extractor result, an unrecoverable storage
// error, an invalid URL or an unexpected panic fail an item, and only
// cancellation of the run context aborts it.
//
// Items are processed sequentially in feed order by default. With more than
// one worker, items run concurrently on an errgroup while calls into each
// module are serialized and outcomes keep feed order.
package pipeline
