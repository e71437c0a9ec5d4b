package transport

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// Kind classifies a failed request.
type Kind string

const (
	// KindNetwork covers unreachable endpoints, timeouts and aborted calls.
	KindNetwork Kind = "network"
	// KindHTTP is a response outside the 2xx range.
	KindHTTP Kind = "http"
	// KindJSON is a body that could not be parsed.
	KindJSON Kind = "json"
	// KindBackend is a well-formed reply whose ok flag is not true.
	KindBackend Kind = "backend"
)

// bodyPrefixLimit is how many characters of a response body an Error keeps.
const bodyPrefixLimit = 200

// Error is the typed failure every request path returns.
type Error struct {
	Kind       Kind
	Message    string
	URL        string
	Status     int
	StatusText string
	// Body holds at most the first 200 characters of the response.
	Body string
	// Code is the backend-supplied error_code.
	Code string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Detail renders the optional structured fields, or "" if there are none.
func (e *Error) Detail() string {
	var d string
	add := func(s string) {
		if d != "" {
			d += " "
		}
		d += s
	}
	if e.Status != 0 {
		add(fmt.Sprintf("status=%d", e.Status))
	}
	if e.Code != "" {
		add("code=" + e.Code)
	}
	if e.Body != "" {
		add("body=" + e.Body)
	}
	return d
}

// KindOf reports the kind of a *Error anywhere in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// IsKind reports whether err carries kind k.
func IsKind(err error, k Kind) bool {
	got, ok := KindOf(err)
	return ok && got == k
}

func truncate(s string) string {
	if utf8.RuneCountInString(s) <= bodyPrefixLimit {
		return s
	}
	runes := []rune(s)
	return string(runes[:bodyPrefixLimit])
}
