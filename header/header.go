// Package header provides an ordered, case-insensitive multimap of HTTP
// header fields.
//
// Reference: https://datatracker.ietf.org/doc/html/rfc9110#section-5
package header

// Headers keeps fields keyed by canonical name. Insertion order of names is
// preserved so serialization writes fields on the wire in the order the caller
// added them. A name may carry multiple values (e.g. repeated Set-Cookie).
type Headers struct {
	keys []string // canonical names, first-insertion order
	m    map[string][]string
}

func New() Headers {
	return Headers{m: make(map[string][]string)}
}

func From(fields [][2]string) Headers {
	h := New()
	for _, f := range fields {
		h.Add(f[0], f[1])
	}
	return h
}

// Get assumes the field is a singleton field. Even if the name has multiple
// values, only the first is returned. For list-based fields use
// [Headers.Values].
func (h *Headers) Get(name string) (value string, ok bool) {
	v, ok := h.m[canonical(name)]
	if !ok || len(v) == 0 {
		return "", false
	}
	return v[0], true
}

func (h *Headers) Values(name string) (values []string, ok bool) {
	values, ok = h.m[canonical(name)]
	return
}

func (h *Headers) Has(name string) bool {
	_, ok := h.m[canonical(name)]
	return ok
}

// Set overwrites any existing values of name. For list-based fields use
// [Headers.Add].
func (h *Headers) Set(name, value string) {
	key := canonical(name)
	if _, ok := h.m[key]; !ok {
		h.keys = append(h.keys, key)
	}
	h.m[key] = []string{value}
}

func (h *Headers) Add(name, value string) {
	key := canonical(name)
	if _, ok := h.m[key]; !ok {
		h.keys = append(h.keys, key)
	}
	h.m[key] = append(h.m[key], value)
}

func (h *Headers) Del(name string) {
	key := canonical(name)
	if _, ok := h.m[key]; !ok {
		return
	}
	delete(h.m, key)
	for i, k := range h.keys {
		if k == key {
			h.keys = append(h.keys[:i], h.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the canonical names in first-insertion order.
func (h *Headers) Keys() []string {
	keys := make([]string, len(h.keys))
	copy(keys, h.keys)
	return keys
}

func (h *Headers) Len() int { return len(h.keys) }

// Fields flattens the map into (name, value) pairs, one pair per value,
// names in insertion order.
func (h *Headers) Fields() [][2]string {
	fields := make([][2]string, 0, len(h.keys))
	for _, k := range h.keys {
		for _, v := range h.m[k] {
			fields = append(fields, [2]string{k, v})
		}
	}
	return fields
}

func (h *Headers) Clone() Headers {
	clone := Headers{
		keys: make([]string, len(h.keys)),
		m:    make(map[string][]string, len(h.m)),
	}
	copy(clone.keys, h.keys)
	for k, v := range h.m {
		values := make([]string, len(v))
		copy(values, v)
		clone.m[k] = values
	}
	return clone
}

func canonical(s string) string {
	if isValidToken(s) {
		s = toCanonicalFieldName(s)
	}
	return s
}

// This only works for a valid token.
func toCanonicalFieldName(s string) string {
	const capitalDiff = 'a' - 'A'
	b := []byte(s)
	upper := true
	for i, c := range b {
		if upper && 'a' <= c && c <= 'z' {
			c -= capitalDiff
		} else if !upper && 'A' <= c && c <= 'Z' {
			c += capitalDiff
		}
		b[i] = c
		upper = c == '-'
	}
	return string(b)
}

// Reference: https://datatracker.ietf.org/doc/html/rfc9110#section-5.6.2-2
func isValidToken(s string) bool {
	if len(s) == 0 {
		return false
	}
	for _, c := range s {
		// ALPHA
		if ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') {
			continue
		}
		// DIGIT
		if '0' <= c && c <= '9' {
			continue
		}

		switch c {
		case '!', '#', '$', '%', '&', '\'', '*', '+',
			'-', '.', '^', '_', '`', '|', '~':
			continue
		}

		return false
	}

	return true
}
