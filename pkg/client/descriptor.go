package client

import (
	"net/url"
	"strings"

	"github.com/bundesdata/go-dip/pkg/cache"
)

// Descriptor is the logical request prior to transport encoding: a DIP
// resource endpoint plus its query parameters. Immutable once built; the
// constructor copies the parameter map so later mutation of the input
// cannot leak into an in-flight request.
//
// The authentication key is not part of a descriptor. The executor appends
// it at transport time, so descriptors (and the cache fingerprints derived
// from them) never carry credentials.
type Descriptor struct {
	endpoint string
	params   url.Values
}

// NewDescriptor builds a descriptor for the given endpoint and parameters.
// The endpoint is normalized by trimming surrounding slashes.
func NewDescriptor(endpoint string, params url.Values) Descriptor {
	return Descriptor{
		endpoint: strings.Trim(endpoint, "/"),
		params:   cloneValues(params),
	}
}

// Endpoint returns the resource path (e.g. "person", "drucksache-text").
func (d Descriptor) Endpoint() string {
	return d.endpoint
}

// Params returns a copy of the query parameters.
func (d Descriptor) Params() url.Values {
	return cloneValues(d.params)
}

// WithParam returns a new descriptor with the given parameter replaced.
// Used by the pagination engine to advance the cursor between pages.
func (d Descriptor) WithParam(key string, values ...string) Descriptor {
	params := cloneValues(d.params)
	params[key] = values
	return Descriptor{endpoint: d.endpoint, params: params}
}

// cacheKey derives the cache key for this descriptor.
func (d Descriptor) cacheKey() cache.Key {
	return cache.Key{Endpoint: d.endpoint, Params: d.params}
}

func cloneValues(src url.Values) url.Values {
	dst := make(url.Values, len(src))
	for key, values := range src {
		dst[key] = append([]string(nil), values...)
	}
	return dst
}
