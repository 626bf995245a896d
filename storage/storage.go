/*
	Package storage provides a unified interface to the object stores that
	hold chunked-array hierarchies.  Stores are read-oriented: the library
	never writes metadata or chunks, so the Store interface only exposes
	retrieval.  Each backend registers a storage engine keyed by URL scheme,
	and storage.Open dispatches on the scheme of the store URL.
*/
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/blang/semver"

	"github.com/clbarnes/multiscale-read/msread"
)

// ErrKeyNotFound is returned when a requested key is absent from a store.
var ErrKeyNotFound = errors.New("key not found in store")

// Store is a read-only view onto a flat key space of byte values.  Keys are
// logical "/"-separated paths relative to the store root.
type Store interface {
	// ReadAll returns the full value for a key, or an error wrapping
	// ErrKeyNotFound if the key is absent.
	ReadAll(ctx context.Context, key string) ([]byte, error)

	// Exists checks for key presence without retrieving the value.
	Exists(ctx context.Context, key string) (bool, error)

	// List returns all keys with the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)

	// Close releases any resources held by the store.
	Close() error

	fmt.Stringer
}

// Engine is something that can create a Store from a store URL.
type Engine interface {
	// GetName returns the URL scheme handled by this engine, e.g., "file".
	GetName() string

	// GetDescription returns a simple description of the engine.
	GetDescription() string

	// GetSemVer returns the engine version.
	GetSemVer() semver.Version

	// NewStore opens a store at the given URL.
	NewStore(ctx context.Context, url string) (Store, error)
}

var (
	enginesMu sync.RWMutex
	engines   = map[string]Engine{}
)

// RegisterEngine registers an engine for the URL scheme given by its name.
// Duplicate registration for a scheme panics since it signals conflicting
// backends compiled into the same binary.
func RegisterEngine(e Engine) {
	enginesMu.Lock()
	defer enginesMu.Unlock()
	name := e.GetName()
	if _, found := engines[name]; found {
		panic(fmt.Sprintf("storage engine %q registered twice", name))
	}
	msread.Debugf("Registered storage engine %q [%s]\n", name, e.GetSemVer())
	engines[name] = e
}

// GetEngine returns the engine registered for a URL scheme, or nil.
func GetEngine(name string) Engine {
	enginesMu.RLock()
	defer enginesMu.RUnlock()
	return engines[name]
}

// EnginesAvailable returns a description of the registered storage engines.
func EnginesAvailable() string {
	var descriptions []string
	enginesMu.RLock()
	for _, e := range engines {
		descriptions = append(descriptions, fmt.Sprintf("%s [%s]", e.GetDescription(), e.GetSemVer()))
	}
	enginesMu.RUnlock()
	return strings.Join(descriptions, "; ")
}

// Open opens the store identified by a URL like "file:///data/my.n5" or
// "gs://bucket/volume".  A bare path with no scheme is treated as a local
// directory.
func Open(ctx context.Context, url string) (Store, error) {
	scheme := "file"
	if i := strings.Index(url, "://"); i >= 0 {
		scheme = url[:i]
	}
	e := GetEngine(scheme)
	if e == nil {
		return nil, fmt.Errorf("no storage engine for scheme %q (have %s)", scheme, EnginesAvailable())
	}
	return e.NewStore(ctx, url)
}

// Join assembles a store key from path elements, skipping empty ones.
// The empty result addresses the store root.
func Join(elems ...string) string {
	var parts []string
	for _, e := range elems {
		e = strings.Trim(e, "/")
		if e != "" {
			parts = append(parts, e)
		}
	}
	return strings.Join(parts, "/")
}
