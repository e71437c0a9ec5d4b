package session

import (
	"errors"

	"github.com/studygarden/memquiz/core/transport"
)

// FormatError renders err as "<kind>: <message> [detail]" for a status line.
// Errors without a kind are rendered as-is.
func FormatError(err error) string {
	if err == nil {
		return ""
	}
	var e *transport.Error
	if !errors.As(err, &e) {
		return err.Error()
	}
	s := string(e.Kind) + ": " + e.Message
	if d := e.Detail(); d != "" {
		s += " [" + d + "]"
	}
	return s
}
