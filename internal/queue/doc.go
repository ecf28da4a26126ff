// Package queue holds the in-memory batch of files awaiting metadata and
// drives each item through its lifecycle.
//
// Items move pending -> processing -> completed or error and nothing else.
// Intake drops non-image media types and duplicate file names silently, and
// every mutation of the item set is refused while a run holds the queue via
// BeginRun. Snapshots returned to callers are deep copies.
//
// Nothing here is persisted; a queue lives as long as its owning session or
// command.
package queue
