package caching

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// HeaderWriter receives the diagnostic headers the coordinator emits when a
// transport response is reachable. http.Header satisfies it.
type HeaderWriter interface {
	Set(key, value string)
}

// Options control a single read-through call.
type Options struct {
	// TTL is handed to the backend on a miss write. Zero means no expiry
	// beyond the backend's own policy.
	TTL time.Duration

	// KeyTemplate, when non-empty, replaces the default key layout.
	// Placeholders like {tenant}, {user}, {locale}, {target}, {method},
	// {path}, {event}, and {hash} are substituted; unknown placeholders
	// resolve to an empty string.
	KeyTemplate string

	// Tags classifies the cached result for later bulk invalidation.
	Tags TagSpec

	// Headers, when non-nil, receives the cache key and hit/miss outcome of
	// the call. Purely observational.
	Headers HeaderWriter
}

// Validate checks the option values. A nil receiver is valid: callers may
// pass nil options to get defaults.
func (o *Options) Validate() error {
	if o == nil {
		return nil
	}
	return validation.ValidateStruct(o,
		validation.Field(&o.TTL, validation.Min(time.Duration(0))),
	)
}

// ResolveOptions applies defaults to per-call options. A nil o yields plain
// defaults; a zero TTL inherits defaultTTL.
func ResolveOptions(o *Options, defaultTTL time.Duration) Options {
	if o == nil {
		return Options{TTL: defaultTTL}
	}
	out := *o
	if out.TTL == 0 {
		out.TTL = defaultTTL
	}
	return out
}
