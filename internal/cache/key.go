// internal/cache/key.go
package cache

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Key addresses one cached query: a resource name followed by its
// parameters. Elements must be strings, integers, floats or booleans.
type Key []interface{}

// NewKey builds a Key from its parts.
func NewKey(parts ...interface{}) Key {
	return Key(parts)
}

// Hash returns the canonical form of k. Structurally equal keys hash the
// same regardless of the concrete integer type used for a parameter.
func (k Key) Hash() string {
	parts := make([]string, len(k))
	for i, v := range k {
		parts[i] = canonical(v)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// HasPrefix reports whether the leading elements of k equal prefix.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i := range prefix {
		if canonical(k[i]) != canonical(prefix[i]) {
			return false
		}
	}
	return true
}

func (k Key) Equal(other Key) bool {
	return len(k) == len(other) && k.HasPrefix(other)
}

func (k Key) String() string {
	return k.Hash()
}

func canonical(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%q", fmt.Sprint(v))
	}
	return string(data)
}
