// Package proxy implements the Proxy & Record/Replay Layer (spec.md
// §4.6): a stable request-key hash for replay lookup, and an HTTP
// passthrough forwarder for upstream integration.
package proxy

import (
	"encoding/base64"
	"sort"
	"strings"

	"github.com/minio/highwayhash"
)

var requestKeyHashKey = [32]byte{}

// RequestKey computes the stable, query-order-independent hash spec.md
// §4.6 requires for replay lookup: method, normalized path, and the
// sorted multiset of query key=value pairs. Two requests differing
// only in query parameter order produce the same key.
func RequestKey(method, path string, query map[string][]string) string {
	var b strings.Builder
	b.WriteString(strings.ToUpper(method))
	b.WriteByte('\n')
	b.WriteString(normalizePath(path))
	b.WriteByte('\n')
	b.WriteString(sortedQueryMultiset(query))

	sum := highwayhash.Sum64([]byte(b.String()), requestKeyHashKey[:])
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(sum >> (8 * i))
	}
	return base64.URLEncoding.EncodeToString(buf[:])
}

func normalizePath(path string) string {
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		return "/" + path
	}
	return path
}

// sortedQueryMultiset renders query as "k=v&k=v&..." with keys sorted,
// and each key's values sorted among themselves, so {"a":["2","1"]}
// and {"a":["1","2"]} collapse to the same multiset representation
// (order within a repeated key does not change its meaning as a set of
// query values for replay-matching purposes).
func sortedQueryMultiset(query map[string][]string) string {
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		values := append([]string(nil), query[k]...)
		sort.Strings(values)
		for j, v := range values {
			if j > 0 {
				b.WriteByte('&')
			}
			b.WriteString(k)
			b.WriteByte('=')
			b.WriteString(v)
		}
	}
	return b.String()
}
