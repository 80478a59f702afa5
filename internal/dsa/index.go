// Package dsa provides the section-title index used for partial-title
// lookup. Uses go-radix for a compressed prefix tree (radix tree).
package dsa

import (
	"github.com/armon/go-radix"
)

// Index maps normalized section titles to values via a radix tree,
// supporting exact and prefix lookups in O(k) of the key length.
type Index[V any] struct {
	tree *radix.Tree
	size int
}

// NewIndex creates a new empty index.
func NewIndex[V any]() *Index[V] {
	return &Index[V]{
		tree: radix.New(),
	}
}

// Insert adds a key-value pair to the index.
func (t *Index[V]) Insert(key string, value V) {
	_, updated := t.tree.Insert(key, value)
	if !updated {
		t.size++
	}
}

// Lookup returns the value stored under exactly key.
func (t *Index[V]) Lookup(key string) (V, bool) {
	val, found := t.tree.Get(key)
	if !found {
		var zero V
		return zero, false
	}
	v, ok := val.(V)
	if !ok {
		var zero V
		return zero, false
	}
	return v, true
}

// FirstWithPrefix returns the value of the lexicographically first key
// starting with prefix.
func (t *Index[V]) FirstWithPrefix(prefix string) (V, bool) {
	var (
		result V
		found  bool
	)
	t.tree.WalkPrefix(prefix, func(k string, v interface{}) bool {
		if val, ok := v.(V); ok {
			result = val
			found = true
		}
		return true // stop after first match
	})
	return result, found
}

// KeysWithPrefix returns all keys that start with the given prefix.
func (t *Index[V]) KeysWithPrefix(prefix string) []string {
	var results []string
	t.tree.WalkPrefix(prefix, func(k string, v interface{}) bool {
		results = append(results, k)
		return false // continue walking
	})
	return results
}

// ForEach calls fn for each key-value pair in lexicographic key order.
func (t *Index[V]) ForEach(fn func(key string, value V)) {
	t.tree.Walk(func(k string, v interface{}) bool {
		if val, ok := v.(V); ok {
			fn(k, val)
		}
		return false // continue walking
	})
}

// Size returns the number of keys in the index.
func (t *Index[V]) Size() int {
	return t.size
}
