package readthrough

import (
	"time"

	"github.com/uxkjaer/cds-caching/caching"
)

// Diagnostic headers set when a call supplies a HeaderWriter.
const (
	// HeaderCacheKey carries the derived cache key.
	HeaderCacheKey = "x-sap-cap-cache-key"

	// HeaderCacheStatus carries "hit" or "miss".
	HeaderCacheStatus = "x-sap-cap-cache"
)

// Metadata is the per-call outcome attached to every envelope.
type Metadata struct {
	Hit     bool          `json:"hit"`
	Latency time.Duration `json:"latency"`
}

// Result is the response envelope every coordinator call returns. CacheKey
// is empty when caching was bypassed. CacheErrors lists the backend failures
// the call absorbed; it never includes statistics failures and is never a
// reason for the call itself to fail.
type Result struct {
	Value       any                  `json:"result"`
	CacheKey    string               `json:"cacheKey,omitempty"`
	Metadata    Metadata             `json:"metadata"`
	CacheErrors []caching.CacheError `json:"cacheErrors,omitempty"`
}

// applyHeaders writes the diagnostic headers. A nil writer means no
// transport response is reachable for this call.
func applyHeaders(w caching.HeaderWriter, key string, hit bool) {
	if w == nil {
		return
	}
	status := "miss"
	if hit {
		status = "hit"
	}
	w.Set(HeaderCacheKey, key)
	w.Set(HeaderCacheStatus, status)
}
