package remote

import (
	"errors"
	"fmt"
)

// Kind categorizes a remote failure.
type Kind string

const (
	// KindConnect covers DNS, dial, and TLS failures: the request never
	// produced a response.
	KindConnect Kind = "connect"

	// KindTimeout covers deadline expiry, client-side or context.
	KindTimeout Kind = "timeout"

	// KindStatus covers responses with a non-2xx status code.
	KindStatus Kind = "status"
)

// Error is the uniform failure type for all remote calls.
type Error struct {
	Kind       Kind
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindStatus:
		return fmt.Sprintf("remote %s: %s returned %d: %s", e.Kind, e.URL, e.StatusCode, e.Body)
	default:
		return fmt.Sprintf("remote %s: %s: %v", e.Kind, e.URL, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// IsRemote returns true if the error is a remote *Error, wrapped or not.
func IsRemote(err error) bool {
	var re *Error
	return errors.As(err, &re)
}

// isNotFound reports whether the error is a 404 status response. Adapters
// translate those into a nil product rather than a failure.
func isNotFound(err error) bool {
	var re *Error
	return errors.As(err, &re) && re.Kind == KindStatus && re.StatusCode == 404
}
