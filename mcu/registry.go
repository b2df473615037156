package mcu

import (
	"fmt"
	"sync"

	"github.com/arloliu/mcusync/errs"
	"github.com/arloliu/mcusync/internal/hash"
)

// Handler receives one decoded response. Handlers are invoked serially by
// the connection's dispatch goroutine; they must not block.
type Handler func(Params)

// registryKey scopes a handler to one (response name, oid) pair. Names are
// stored as xxHash64 identifiers so dispatch is a single map probe with no
// string allocation on the hot path.
type registryKey struct {
	nameID uint64
	oid    uint8
}

// Registry routes named, oid-scoped responses to their handlers.
//
// Registration happens during sensor construction; dispatch happens on the
// connection reader. At most one handler may be registered per (name, oid)
// pair, and two distinct names hashing to the same identifier are rejected
// outright: with the handful of response names a device dictionary carries
// this never happens in practice, but silently merging two responses would
// be unrecoverable.
type Registry struct {
	mu       sync.Mutex
	handlers map[registryKey]Handler
	names    map[uint64]string
}

// NewRegistry creates an empty response registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[registryKey]Handler),
		names:    make(map[uint64]string),
	}
}

// Register routes responses with the given name and oid to h.
func (r *Registry) Register(name string, oid uint8, h Handler) error {
	nameID := hash.ID(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.names[nameID]; ok && existing != name {
		return fmt.Errorf("response %q vs %q: %w", name, existing, errs.ErrHashCollision)
	}

	key := registryKey{nameID: nameID, oid: oid}
	if _, ok := r.handlers[key]; ok {
		return fmt.Errorf("response %q oid %d: %w", name, oid, errs.ErrHandlerExists)
	}

	r.names[nameID] = name
	r.handlers[key] = h

	return nil
}

// Unregister removes the handler for the given name and oid, if any.
func (r *Registry) Unregister(name string, oid uint8) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.handlers, registryKey{nameID: hash.ID(name), oid: oid})
}

// Dispatch delivers one response to its registered handler. It returns
// false when no handler is registered; unsolicited responses are dropped,
// not queued.
func (r *Registry) Dispatch(name string, oid uint8, params Params) bool {
	r.mu.Lock()
	h, ok := r.handlers[registryKey{nameID: hash.ID(name), oid: oid}]
	r.mu.Unlock()

	if !ok {
		return false
	}
	h(params)

	return true
}
