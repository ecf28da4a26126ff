// Package metrics exposes Prometheus collectors for batch runs, per-item
// outcomes, credential verifications and HTTP traffic.
//
// Collectors live on a private registry so tests and multiple servers in one
// process never collide. Metrics implements batch.Observer and
// session.VerificationObserver.
package metrics
