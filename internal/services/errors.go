package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrCredential = errors.New("credential error")
	ErrEncoding   = errors.New("encoding error")
	ErrRequest    = errors.New("request error")
	ErrParse      = errors.New("parse error")
)

// Error kinds recorded on failed queue items.
const (
	KindCredential = "credential"
	KindEncoding   = "encoding"
	KindRequest    = "request"
	KindParse      = "parse"
	KindUnknown    = "unknown"
)

// Wrap builds an error message that includes operation context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrRequest
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind classifies an error by the marker it carries.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCredential):
		return KindCredential
	case errors.Is(err, ErrEncoding):
		return KindEncoding
	case errors.Is(err, ErrRequest):
		return KindRequest
	case errors.Is(err, ErrParse):
		return KindParse
	default:
		return KindUnknown
	}
}

// Message strips the marker prefix and returns the user-facing detail of err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, marker := range []error{ErrCredential, ErrEncoding, ErrRequest, ErrParse} {
		prefix := marker.Error() + ": "
		if strings.HasPrefix(msg, prefix) {
			return strings.TrimPrefix(msg, prefix)
		}
	}
	return msg
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}

// DisplayError is a marked error carrying the exact message shown to users.
// The wrapped cause stays available to logs and errors.Is.
type DisplayError struct {
	Marker  error
	Display string
	Err     error
}

func (e *DisplayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: %s: %v", e.Marker, e.Display, e.Err)
	}
	return fmt.Sprintf("%v: %s", e.Marker, e.Display)
}

func (e *DisplayError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Marker}
	}
	return []error{e.Marker, e.Err}
}

// Fail builds a DisplayError. A nil marker defaults to ErrRequest.
func Fail(marker error, display string, err error) error {
	if marker == nil {
		marker = ErrRequest
	}
	return &DisplayError{Marker: marker, Display: strings.TrimSpace(display), Err: err}
}

// DisplayMessage returns the user-facing message for err: the Display text of
// the outermost DisplayError when present, otherwise Message(err).
func DisplayMessage(err error) string {
	var display *DisplayError
	if errors.As(err, &display) && display.Display != "" {
		return display.Display
	}
	return Message(err)
}
