// Package server exposes stockmeta over local HTTP: one session per browser
// tab, each with its own credential, model selection and queue.
//
// Routes live under /api/sessions/{id}. Runs are started in the background
// and observed by polling the queue endpoint. /healthz and /metrics serve
// liveness and Prometheus metrics.
package server
