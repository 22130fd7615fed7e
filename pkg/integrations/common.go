package integrations

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/matzehuels/planbridge/pkg/errors"
)

const httpTimeout = 30 * time.Second

var (
	// ErrNotFound is returned for 404 responses.
	ErrNotFound = errors.New(errors.ErrCodeNotFound, "resource not found")

	// ErrUnauthorized is returned for 401 and 403 responses.
	ErrUnauthorized = errors.New(errors.ErrCodeUnauthorized, "credentials rejected")

	// ErrConflict is returned for 409 and 412 responses, e.g. a stale work
	// item revision.
	ErrConflict = errors.New(errors.ErrCodeConflict, "conflicting update")

	// ErrBadRequest is returned when the upstream API rejects a request body.
	ErrBadRequest = errors.New(errors.ErrCodeInvalidInput, "request rejected")

	// ErrNetwork is returned for transport failures and 5xx responses.
	ErrNetwork = errors.New(errors.ErrCodeNetwork, "network error")
)

// NewHTTPClient creates an HTTP client with the standard request timeout.
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: httpTimeout}
}

// URLEncode percent-encodes a string for use in query strings.
func URLEncode(s string) string { return url.QueryEscape(s) }

// JoinURL joins a base URL and path segments, escaping each segment.
func JoinURL(base string, segments ...string) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(base, "/"))
	for _, s := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(s))
	}
	return b.String()
}
