// Package batch runs the per-file metadata pipeline over a queue.
//
// A run locks the queue, then for each pending item in order marks it
// processing, encodes it, requests metadata, and records either the result or
// a classified error. Items are never processed concurrently and a failing
// item never stops the run. The queue is unlocked and its run state set to
// done when the run returns.
//
// Runs without a verified credential or a selected model fail with a
// credential error before any item changes state.
package batch
