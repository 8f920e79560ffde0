package client

import (
	"net/http"

	"github.com/cloakhttp/cloak/profile"
)

// HeaderEntry is a single header key/value pair with its original casing.
type HeaderEntry struct {
	Key   string
	Value string
}

// OrderedHeader is a drop-in companion to http.Header that preserves the
// exact capitalisation and insertion order of HTTP headers.
//
// Unlike http.Header (a map[string][]string, therefore unordered),
// OrderedHeader stores entries in a slice so iteration always returns them
// in the order they were added.  Servers that profile client fingerprints
// inspect both the capitalisation (e.g. "sec-ch-ua-platform" vs
// "Sec-Ch-Ua-Platform") and the relative ordering of headers, so both are
// load-bearing here.
//
// OrderedHeader is NOT safe for concurrent use without external
// synchronisation; each request builds and owns its own instance.
type OrderedHeader struct {
	entries []HeaderEntry
}

// Add appends key/value, preserving the exact casing of key.  Multiple calls
// with the same key produce multiple entries (equivalent to
// http.Header.Add).
func (h *OrderedHeader) Add(key, value string) {
	h.entries = append(h.entries, HeaderEntry{Key: key, Value: value})
}

// Set replaces the first entry whose key matches key (case-insensitively)
// with the new value and removes any subsequent duplicates.  If no entry
// with that key exists, Set behaves like Add.  The surviving entry takes
// key's casing, so Set can change capitalisation as well as value.
func (h *OrderedHeader) Set(key, value string) {
	canonKey := http.CanonicalHeaderKey(key)
	replaced := false
	out := h.entries[:0]
	for _, e := range h.entries {
		if http.CanonicalHeaderKey(e.Key) == canonKey {
			if !replaced {
				out = append(out, HeaderEntry{Key: key, Value: value})
				replaced = true
			}
			// Skip duplicates.
		} else {
			out = append(out, e)
		}
	}
	if !replaced {
		out = append(out, HeaderEntry{Key: key, Value: value})
	}
	h.entries = out
}

// Del removes all entries whose key matches key (case-insensitively).
func (h *OrderedHeader) Del(key string) {
	canonKey := http.CanonicalHeaderKey(key)
	out := h.entries[:0]
	for _, e := range h.entries {
		if http.CanonicalHeaderKey(e.Key) != canonKey {
			out = append(out, e)
		}
	}
	h.entries = out
}

// Get returns the value of the first entry whose key matches key
// (case-insensitively), or "" if no such entry exists.
func (h *OrderedHeader) Get(key string) string {
	canonKey := http.CanonicalHeaderKey(key)
	for _, e := range h.entries {
		if http.CanonicalHeaderKey(e.Key) == canonKey {
			return e.Value
		}
	}
	return ""
}

// Has reports whether any entry matches key case-insensitively.
func (h *OrderedHeader) Has(key string) bool {
	return h.Get(key) != "" || h.hasEmpty(key)
}

func (h *OrderedHeader) hasEmpty(key string) bool {
	canonKey := http.CanonicalHeaderKey(key)
	for _, e := range h.entries {
		if http.CanonicalHeaderKey(e.Key) == canonKey {
			return true
		}
	}
	return false
}

// Len returns the number of entries (including duplicates).
func (h *OrderedHeader) Len() int { return len(h.entries) }

// Entries returns the entry slice in order.  Callers must not mutate it.
func (h *OrderedHeader) Entries() []HeaderEntry { return h.entries }

// Clone returns a copy of the receiver.
func (h *OrderedHeader) Clone() *OrderedHeader {
	c := &OrderedHeader{entries: make([]HeaderEntry, len(h.entries))}
	copy(c.entries, h.entries)
	return c
}

// ApplyToRequest writes every entry into req.Header, preserving the exact
// key casing by writing directly into the underlying map instead of going
// through the canonicalising Add/Set methods.  This carries casing through
// both HTTP/1 (written verbatim by our writer) and HTTP/2 (HPACK-encoded
// with the key string we supply).  Any headers already present are replaced.
func (h *OrderedHeader) ApplyToRequest(req *http.Request) {
	req.Header = make(http.Header, len(h.entries))
	for _, e := range h.entries {
		req.Header[e.Key] = append(req.Header[e.Key], e.Value)
	}
}

// FromHTTPHeader builds an OrderedHeader from a standard header map.  Map
// iteration order is unspecified, so this is only a casing-preserving
// fallback for callers that never authored an order.
func FromHTTPHeader(hdr http.Header) *OrderedHeader {
	out := &OrderedHeader{}
	for k, vals := range hdr {
		for _, v := range vals {
			out.Add(k, v)
		}
	}
	return out
}

// FromProfileHeaders builds an OrderedHeader from a profile's default
// header pairs, keeping the authored order and casing.
func FromProfileHeaders(defaults []profile.Header) *OrderedHeader {
	out := &OrderedHeader{}
	for _, d := range defaults {
		out.Add(d.Name, d.Value)
	}
	return out
}

// OrderHeaders is the header ordering engine: it reorders h according to the
// profile's template in two phases.
//
// Phase one emits headers named in the template, in template order, cased as
// the template spells them (unless the template preserves caller casing).
// Phase two appends everything else in original insertion order with the
// caller's casing.  Unknown headers are therefore never dropped, only placed
// after the fingerprinted prefix.  Duplicate headers keep their multiplicity
// and relative order within their group.
func OrderHeaders(h *OrderedHeader, tmpl profile.HeaderTemplate) *OrderedHeader {
	if h == nil {
		return &OrderedHeader{}
	}
	out := &OrderedHeader{entries: make([]HeaderEntry, 0, len(h.entries))}
	emitted := make([]bool, len(h.entries))

	for _, name := range tmpl.Order {
		canon := http.CanonicalHeaderKey(name)
		for i, e := range h.entries {
			if emitted[i] || http.CanonicalHeaderKey(e.Key) != canon {
				continue
			}
			key := name
			if tmpl.PreserveCase {
				key = e.Key
			}
			out.entries = append(out.entries, HeaderEntry{Key: key, Value: e.Value})
			emitted[i] = true
		}
	}
	for i, e := range h.entries {
		if !emitted[i] {
			out.entries = append(out.entries, e)
		}
	}
	return out
}
