// Package encoding turns queued image files into data URIs for the completion
// request.
//
// By default the original bytes are sent untouched. With
// encoding.max_dimension set, JPEG, PNG, GIF, TIFF and BMP images larger than
// the limit are auto-oriented, fit inside the bounding box and re-encoded in
// their own format before base64 encoding.
package encoding
