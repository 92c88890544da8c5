// Package cache memoizes computed API responses for a short window so
// identical requests don't refetch upstream feeds. Losing an entry is
// always safe: the response is recomputed on the next miss.
package cache

import (
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// TTL applies uniformly to every endpoint.
const TTL = 300 * time.Second

// ResponseCache holds serialized response payloads behind a TTL'd LRU.
// Entries are replayed byte for byte on a hit.
type ResponseCache struct {
	lru *expirable.LRU[string, []byte]
}

func New(size int, ttl time.Duration) *ResponseCache {
	return &ResponseCache{
		lru: expirable.NewLRU[string, []byte](size, nil, ttl),
	}
}

func (c *ResponseCache) Get(key string) ([]byte, bool) {
	return c.lru.Get(key)
}

func (c *ResponseCache) Set(key string, payload []byte) {
	c.lru.Add(key, payload)
}

// Key builds a deterministic cache key from the endpoint name and its
// relevant query parameters: params are sorted so identical requests map to
// the same entry regardless of argument order.
func Key(endpoint string, params map[string]string) string {
	if len(params) == 0 {
		return endpoint
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(endpoint)
	b.WriteByte('?')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
	}

	return b.String()
}
