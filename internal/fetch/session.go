package fetch

import "net/http"

// ClientFactory creates independent HTTP clients. transport.Builder implements it.
type ClientFactory interface {
	NewClient() (*http.Client, error)
}

// Session is one HTTP client and its cookie state. A Session is never
// mutated: when it is poisoned the Fetcher hands back a replacement with a
// higher generation and the caller continues with that one.
type Session struct {
	client     *http.Client
	generation int
}

// NewSession wraps an existing client as a generation-zero session.
func NewSession(client *http.Client) *Session {
	return &Session{client: client}
}

// Client returns the underlying HTTP client.
func (s *Session) Client() *http.Client {
	return s.client
}

// Generation counts how many times the session has been replaced.
func (s *Session) Generation() int {
	return s.generation
}
