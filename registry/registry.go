// Package registry is the single source of truth for who is online: live
// sessions, client records, and the display-name index. Every multi-step
// mutation happens under one registry-wide lock so no caller ever observes
// the name index and the records out of sync.
package registry

import (
	"sync"

	"pqrelay/contract"
	"pqrelay/errors"
)

// Client is the registered view of a connection. The zero Name means the
// connection is still anonymous; the zero PubKey means no key published yet.
type Client struct {
	Handle string
	Name   string
	PubKey string
}

type Registry struct {
	mu       sync.RWMutex
	sessions map[string]contract.EventSink // handle -> live connection
	clients  map[string]Client             // handle -> record
	names    map[string]string             // display name -> handle
}

func New() *Registry {
	return &Registry{
		sessions: make(map[string]contract.EventSink),
		clients:  make(map[string]Client),
		names:    make(map[string]string),
	}
}

// Connect installs the session for a fresh connection. No client record
// exists until the first register or key-publication event.
func (r *Registry) Connect(handle string, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[handle] = sink
}

// Register binds name to handle first-come. Registering the same name on
// the same handle again is an idempotent success; a handle switching names
// releases its old binding atomically.
func (r *Registry) Register(handle, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.names[name]; ok && current != handle {
		return errors.ErrNameTaken
	}

	record := r.clients[handle]
	if record.Name != "" && record.Name != name {
		delete(r.names, record.Name)
	}
	record.Handle = handle
	record.Name = name
	r.clients[handle] = record
	r.names[name] = handle
	return nil
}

// UpsertKey stores a public key for handle, creating the record (and name
// binding) when none exists. Accepting a key before registration is a
// deliberately permissive path kept from the original protocol; clients
// may publish their key first and claim a name later.
func (r *Registry) UpsertKey(handle, name, key string) Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.clients[handle]
	if !ok {
		record = Client{Handle: handle, Name: name}
		if name != "" {
			if _, taken := r.names[name]; !taken {
				r.names[name] = handle
			} else {
				record.Name = ""
			}
		}
	}
	record.PubKey = key
	r.clients[handle] = record
	return record
}

func (r *Registry) Get(handle string) (Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[handle]
	return c, ok
}

func (r *Registry) LookupName(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handle, ok := r.names[name]
	return handle, ok
}

// Remove drops the session, the record, and the name binding in one
// critical section. It returns the released name so the caller can notify
// peers, and reports whether the connection ever completed registration.
func (r *Registry) Remove(handle string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, handle)
	record, ok := r.clients[handle]
	if !ok {
		return "", false
	}
	delete(r.clients, handle)
	if record.Name == "" {
		return "", false
	}
	delete(r.names, record.Name)
	return record.Name, true
}

// Snapshot returns name -> handle for every fully registered client, as a
// point-in-time copy safe to broadcast while connections churn.
func (r *Registry) Snapshot() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.names))
	for name, handle := range r.names {
		out[name] = handle
	}
	return out
}

// PeerKeys returns handle -> public key for every keyed client other than
// exclude, so a newly keyed client can encapsulate to all existing peers
// without one request per peer.
func (r *Registry) PeerKeys(exclude string) map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string)
	for handle, c := range r.clients {
		if handle != exclude && c.PubKey != "" {
			out[handle] = c.PubKey
		}
	}
	return out
}

func (r *Registry) Sink(handle string) (contract.EventSink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sink, ok := r.sessions[handle]
	return sink, ok
}

// Sinks returns a point-in-time copy of every live session, registered or
// not; presence broadcasts address every open connection.
func (r *Registry) Sinks() map[string]contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]contract.EventSink, len(r.sessions))
	for handle, sink := range r.sessions {
		out[handle] = sink
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
