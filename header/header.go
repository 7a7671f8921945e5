// Package header is the ordered, case-insensitive header map shared by
// requests and responses. Keys compare case-insensitively; on a map the
// framer assembles, last writer wins (spec.md §3 invariant). Order of
// insertion is preserved for deterministic wire output.
package header

import "strings"

type entry struct {
	key   string // casing of the most recent Set
	value string
}

// Map is an ordered, case-insensitive header collection. The zero value
// is ready to use.
type Map struct {
	order []string // lowercased keys, insertion order
	data  map[string]*entry
}

func New() *Map {
	return &Map{data: make(map[string]*entry)}
}

func key(k string) string { return strings.ToLower(k) }

// Set replaces any existing value for k (last-write-wins), preserving
// the original insertion position.
func (m *Map) Set(k, v string) {
	if m.data == nil {
		m.data = make(map[string]*entry)
	}
	lk := key(k)
	if e, ok := m.data[lk]; ok {
		e.key, e.value = k, v
		return
	}
	m.data[lk] = &entry{key: k, value: v}
	m.order = append(m.order, lk)
}

// Get looks up k case-insensitively, returning its value and whether it
// was present at all.
func (m *Map) Get(k string) (string, bool) {
	if m.data == nil {
		return "", false
	}
	e, ok := m.data[key(k)]
	if !ok {
		return "", false
	}
	return e.value, true
}

func (m *Map) Del(k string) {
	if m.data == nil {
		return
	}
	lk := key(k)
	if _, ok := m.data[lk]; !ok {
		return
	}
	delete(m.data, lk)
	for i, ok := range m.order {
		if ok == lk {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

func (m *Map) Has(k string) bool {
	_, ok := m.Get(k)
	return ok
}

// Keys returns the canonical-cased keys in insertion order.
func (m *Map) Keys() []string {
	out := make([]string, 0, len(m.order))
	for _, lk := range m.order {
		out = append(out, m.data[lk].key)
	}
	return out
}

// Clone deep-copies the map.
func (m *Map) Clone() *Map {
	c := New()
	for _, lk := range m.order {
		e := m.data[lk]
		c.Set(e.key, e.value)
	}
	return c
}

// Overlay writes every entry of other into m (last-writer-wins),
// preserving m's pre-existing order for keys other also sets and
// appending genuinely new keys — this is how the framer layers the
// permanent map over the base map, then the temporary map over that.
func (m *Map) Overlay(other *Map) {
	if other == nil {
		return
	}
	for _, lk := range other.order {
		e := other.data[lk]
		m.Set(e.key, e.value)
	}
}
