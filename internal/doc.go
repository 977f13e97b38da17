// Package internal holds the graphevents server internals.
//
// The tree is organized by responsibility:
// - api: HTTP handlers, middleware, templates and routing
// - domain/events: the event model, query parsing and retention sweep
// - storage: PostgreSQL repository and migrations
// - jobs: River workers for the periodic retention sweep
// - cache: Redis-backed listing page cache
// - attime, sanitize: time expression and input helpers
// - auth, audit, config, metrics, telemetry: shared infrastructure
//
// Code in internal/ is not meant for external import.
package internal
