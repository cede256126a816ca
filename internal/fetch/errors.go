package fetch

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrDisallowedByRobots is returned when robots.txt politeness is
	// enabled and the site's robots.txt forbids the URL for our agent.
	ErrDisallowedByRobots = errors.New("disallowed by robots.txt")

	// ErrBodyTooLarge is returned when a response body exceeds the
	// session's size cap.
	ErrBodyTooLarge = errors.New("response body too large")
)

// StatusError is returned by Get when the server answers with a non-2xx
// status code.
type StatusError struct {
	URL        string
	StatusCode int
}

// Error implements error.
func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}
