package structmap

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// Map is a schema-less structured mapping: arbitrary string keys to
// JSON-compatible values. Contexts, decisions, pattern signatures, and
// problem signatures are all Maps; the engine never interprets the
// content beyond keys and structural equality.
type Map map[string]any

// Canonical returns the canonical JSON serialization of the map.
// encoding/json sorts object keys at every nesting level, so two maps
// with equal content always serialize to identical bytes.
func (m Map) Canonical() ([]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("canonicalize map: %w", err)
	}
	return b, nil
}

// Hash returns the hex SHA-256 digest of the canonical serialization.
// It is a content fingerprint, not a uniqueness constraint; collisions
// are tolerated downstream.
func (m Map) Hash() (string, error) {
	b, err := m.Canonical()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// Keys returns the map's keys in sorted order.
func (m Map) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Jaccard returns the Jaccard similarity between the key sets of m and
// other: |intersection| / |union|. Values are ignored; this is a shallow
// structural measure. The second return is false when both key sets are
// empty, where the ratio is undefined.
func (m Map) Jaccard(other Map) (float64, bool) {
	intersection := 0
	for k := range m {
		if _, ok := other[k]; ok {
			intersection++
		}
	}
	union := len(m) + len(other) - intersection
	if union == 0 {
		return 0, false
	}
	return float64(intersection) / float64(union), true
}

// SharesKey reports whether m and other have at least one key in common.
func (m Map) SharesKey(other Map) bool {
	for k := range m {
		if _, ok := other[k]; ok {
			return true
		}
	}
	return false
}

// Subset reports whether every key/value pair in m is present and equal
// in outer. The empty map is a subset of everything.
func (m Map) Subset(outer Map) bool {
	for k, v := range m {
		ov, ok := outer[k]
		if !ok || !valueEqual(v, ov) {
			return false
		}
	}
	return true
}

// Equal reports structural equality of two maps via their canonical
// serializations.
func (m Map) Equal(other Map) bool {
	a, err := m.Canonical()
	if err != nil {
		return false
	}
	b, err := other.Canonical()
	if err != nil {
		return false
	}
	return bytes.Equal(a, b)
}

// valueEqual compares two values by canonical JSON. This neutralizes
// representation differences (int vs float64 after a decode round-trip)
// that reflect.DeepEqual would treat as inequality.
func valueEqual(a, b any) bool {
	ab, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}
