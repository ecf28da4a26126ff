// Command stockmeta generates stock-photo titles, descriptions and keywords
// for image files with an OpenAI-compatible vision model.
//
// `stockmeta run` processes files from the command line, prompting for the
// API key once per invocation. `stockmeta serve` starts the local HTTP
// service where each browser session holds its own key and queue.
package main
