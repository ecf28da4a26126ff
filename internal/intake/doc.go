// Package intake turns files named on the command line and multipart uploads
// into queue candidates, determining each file's media type from its content.
//
// Filtering of non-images and duplicate names happens in the queue; intake
// only reports what it found.
package intake
