// Package services defines shared utilities consumed by the batch runner, the
// provider integrations, and the HTTP service.
//
// Key responsibilities:
//   - Context helpers that stamp queue item IDs, run IDs, session IDs, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that classify failures
//     into credential, encoding, request, and parse errors so a failed item
//     records which stage broke.
//
// Use these helpers when wiring new pipeline logic so error reporting stays
// uniform across the CLI and the HTTP service.
package services
