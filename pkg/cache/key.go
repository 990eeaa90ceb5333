package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Key identifies a cached DIP response: the endpoint name plus the query
// parameters of the logical request, cursor included (each page caches
// separately). The authentication key is part of the transport encoding,
// not the key, so rotating credentials does not invalidate the cache.
type Key struct {
	// Endpoint is the DIP resource path (e.g., "person", "drucksache-text")
	Endpoint string

	// Params are the query parameters (e.g., {"f.wahlperiode": ["20"]})
	Params url.Values
}

// canonical generates a deterministic string form of the key.
// Format: dip:endpoint:param1=val1:param2=val2
//
// Parameter keys are sorted, and so are the values of repeated keys, so the
// result is independent of insertion order.
func (k Key) canonical() string {
	parts := []string{"dip", strings.Trim(k.Endpoint, "/")}

	if len(k.Params) > 0 {
		keys := make([]string, 0, len(k.Params))
		for key := range k.Params {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			values := append([]string(nil), k.Params[key]...)
			sort.Strings(values)
			for _, value := range values {
				parts = append(parts, fmt.Sprintf("%s=%s", key, value))
			}
		}
	}

	return strings.Join(parts, ":")
}

// Fingerprint returns the SHA-256 hex digest of the canonical key.
// Used as cache filename and Redis key suffix. A cryptographic hash keeps
// distinct logical requests from colliding.
func (k Key) Fingerprint() string {
	sum := sha256.Sum256([]byte(k.canonical()))
	return hex.EncodeToString(sum[:])
}
