package fetch

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidURL is returned for URLs that are not absolute http(s) URIs.
	ErrInvalidURL = errors.New("url must be an absolute http or https URI")

	// ErrInvalidDestination is returned when an asset destination path is empty.
	ErrInvalidDestination = errors.New("asset destination path is empty")

	// ErrBodyTooLarge is returned when a response exceeds the configured size limit.
	ErrBodyTooLarge = errors.New("response body exceeds size limit")

	// ErrUnexpectedStatus is wrapped by every non-2xx failure.
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")
)

// Kind classifies a fetch failure. It decides how the retry loop recovers.
type Kind int

const (
	// KindInvalidArgument means the request was never sent. Not retried.
	KindInvalidArgument Kind = iota + 1
	// KindRateLimited is HTTP 429. Retried on the same session.
	KindRateLimited
	// KindPoisonedSession is HTTP 400 or 500. The session is replaced before the retry.
	KindPoisonedSession
	// KindStatus is any other non-2xx status. Retried on the same session.
	KindStatus
	// KindTransport is a network, TLS or read failure. Retried on the same session.
	KindTransport
	// KindTooLarge means the body exceeded the size limit. Not retried.
	KindTooLarge
)

// String returns the kind name used in logs and events.
func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid_argument"
	case KindRateLimited:
		return "rate_limited"
	case KindPoisonedSession:
		return "poisoned_session"
	case KindStatus:
		return "status"
	case KindTransport:
		return "transport"
	case KindTooLarge:
		return "too_large"
	default:
		return "unknown"
	}
}

// Error is a classified fetch failure.
type Error struct {
	Kind       Kind
	URL        string
	StatusCode int
	// Attempt is the 1-based attempt that produced the error.
	Attempt int
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s (%s, attempt %d): status %d: %v", e.URL, e.Kind, e.Attempt, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s (%s, attempt %d): %v", e.URL, e.Kind, e.Attempt, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of a fetch error, or 0 if err is not one.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return 0
}

// IsRateLimited reports whether err is an HTTP 429 failure.
func IsRateLimited(err error) bool {
	return KindOf(err) == KindRateLimited
}

// IsPoisonedSession reports whether err is a failure that poisons the session.
func IsPoisonedSession(err error) bool {
	return KindOf(err) == KindPoisonedSession
}

// classifyStatus maps a non-2xx status code to a failure kind.
func classifyStatus(code int) Kind {
	switch code {
	case 429:
		return KindRateLimited
	case 400, 500:
		return KindPoisonedSession
	default:
		return KindStatus
	}
}
