package store

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Constructor opens a backing. location is the part of the URI after
// "scheme://".
type Constructor func(location string) (Store, error)

var (
	backingsMu sync.RWMutex
	backings   = make(map[string]Constructor)
)

// Register makes a backing available under scheme. It panics when scheme is
// empty, contains "://", or is already registered.
func Register(scheme string, constructor Constructor) {
	backingsMu.Lock()
	defer backingsMu.Unlock()

	if scheme == "" || strings.Contains(scheme, "://") {
		panic(fmt.Sprintf("store: invalid scheme %q", scheme))
	}
	if constructor == nil {
		panic("store: Register constructor is nil")
	}
	if _, dup := backings[scheme]; dup {
		panic("store: Register called twice for scheme " + scheme)
	}
	backings[scheme] = constructor
}

// Schemes returns the registered schemes in sorted order.
func Schemes() []string {
	backingsMu.RLock()
	defer backingsMu.RUnlock()

	schemes := make([]string, 0, len(backings))
	for scheme := range backings {
		schemes = append(schemes, scheme)
	}
	sort.Strings(schemes)
	return schemes
}

// Open returns a store from the backing registered for the scheme of uri,
// e.g. "memory://" or "dir:///var/lib/bundlecfg".
func Open(uri string) (Store, error) {
	scheme, location, ok := strings.Cut(uri, "://")
	if !ok {
		return nil, fmt.Errorf("%w: %q has no scheme", ErrBackingNotFound, uri)
	}

	backingsMu.RLock()
	constructor, ok := backings[scheme]
	backingsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (registered: %s)", ErrBackingNotFound, scheme, strings.Join(Schemes(), ", "))
	}
	return constructor(location)
}
