package caching

import "errors"

// Sentinel errors returned by the package.
var (
	// ErrInvalidResultType indicates a cached value could not be converted
	// to the type requested by a typed helper.
	ErrInvalidResultType = errors.New("caching: cached value does not match requested type")

	// ErrUnknownOperation indicates a StoreRequest named an operation the
	// dispatcher does not recognize.
	ErrUnknownOperation = errors.New("caching: unknown store operation")

	// ErrNilOrigin indicates a coordinator call was made without an origin.
	ErrNilOrigin = errors.New("caching: origin must not be nil")
)

// CacheError is the diagnostic record produced when a cache-backend call
// fails. It is accumulated on the response envelope and never surfaced as a
// returned error: a cache failure must stay invisible to the caller's
// control flow.
type CacheError struct {
	Message   string         `json:"message"`
	Operation string         `json:"operation"`
	Context   map[string]any `json:"context,omitempty"`
}

// Error implements the error interface so records can feed straight into
// loggers.
func (e *CacheError) Error() string {
	return e.Operation + ": " + e.Message
}
