// Package flight deduplicates concurrent fetches of the same key.
//
// The first request for a key performs the fetch; concurrent requests for
// the same key wait for it and share the result, so an eager agent calling
// the same tool repeatedly costs one upstream call.
package flight

import (
	"golang.org/x/sync/singleflight"
)

// Group deduplicates in-flight calls by key. The zero value is ready to use.
type Group[V any] struct {
	sf singleflight.Group
}

// Do executes fn for key, or waits for an identical in-flight call and
// returns its result. The shared return reports whether the result was
// served from another caller's fetch.
func (g *Group[V]) Do(key string, fn func() (V, error)) (V, bool, error) {
	v, err, shared := g.sf.Do(key, func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		var zero V
		return zero, shared, err
	}
	return v.(V), shared, nil
}
