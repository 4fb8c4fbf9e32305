// Package model defines the result model shared by every module of the
// archiver.
//
// This package contains the following main types:
//   - Item: one unit of work (a URL) and everything learned about it
//   - Media: a derived asset (downloaded file, screenshot, report) that
//     belongs to an Item and can be uploaded to storages
//
// Design decision: We keep the model free of any dependency on the module
// registry or the pipeline. Feeders, extractors, enrichers, databases,
// storages and formatters all exchange these types, so centralizing them here
// prevents import cycles between those packages.
//
// Items are serializable to JSON so database modules can persist and reload
// them. The ephemeral per-run context of an Item is never serialized.
package model
