// Package fileutil writes output files atomically with read-back verification.
package fileutil
