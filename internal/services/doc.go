// Package services defines shared utilities consumed by the session, listing
// and resolution layers.
//
// Key responsibilities:
//   - Context helpers that stamp correlation identifiers, creator names and
//     operation names for logging.
//   - Structured error markers plus the Wrap helper so callers can classify
//     failures (auth, transport, not found, invalid input) with errors.Is.
//
// Use these helpers when wiring new lookups so error classification and
// observability stay uniform across the engine.
package services
