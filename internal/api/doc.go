// Package api defines the transport representations shared by the HTTP
// service and the command-line JSON output, plus conversions from queue and
// batch types.
package api
