// Package module discovers pluggable processing units and materializes them
// lazily.
//
// A module is a directory holding a manifest (manifest.yaml, manifest.yml or
// manifest.toml) that describes its display name, capabilities, option schema
// and dependencies. Discovery reads manifests only. The implementation is
// looked up in an implementation table by the manifest entry point and is
// constructed on first use, exactly once per Registry.
//
// # Capabilities
//
// A module advertises one or more capability tags: feeder, extractor,
// enricher, database, storage and formatter. Each tag corresponds to an
// interface in this package (Feeder, Extractor, ...). One implementation may
// satisfy several of them; the orchestrator asks the registry for modules by
// tag and type-asserts the matching interface.
//
// # Usage
//
//	reg, err := module.Discover(module.Root{Name: "builtin", FS: modules.FS})
//	reg.Configure(resolvedOptions)
//	inst, err := reg.Materialize(ctx, "hash_enricher")
//	enricher := inst.(module.Enricher)
//
// Setup problems (missing dependencies, missing required options, failing
// setup hooks) are reported as *SetupError, which wraps ErrSetup.
package module
