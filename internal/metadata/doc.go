// Package metadata requests stock-photo metadata for one image and parses the
// model's JSON reply into a queue.Metadata value.
package metadata
