package state

import (
	"sort"
	"sync"
	"time"

	"github.com/ChileCris2011/Walkie-Server/internal/types"
)

// Registry owns the connection records. It keeps a secondary index from
// userId to connectionId so identity-addressed signaling resolves in O(1)
// instead of scanning every session.
type Registry struct {
	mu     sync.RWMutex
	conns  map[string]*types.Connection
	byUser map[string]string
}

func NewRegistry() *Registry {
	return &Registry{
		conns:  make(map[string]*types.Connection),
		byUser: make(map[string]string),
	}
}

// Register creates a session record for a newly accepted transport link.
// The transport guarantees fresh ids; a duplicate is a caller bug.
func (r *Registry) Register(connID string, client *types.Client) (*types.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.conns[connID]; exists {
		return nil, ErrConnectionExists
	}
	conn := &types.Connection{
		ID:          connID,
		ConnectedAt: time.Now(),
		Client:      client,
	}
	r.conns[connID] = conn
	return conn, nil
}

func (r *Registry) Lookup(connID string) (*types.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[connID]
	return conn, ok
}

// LookupByUserID resolves a connection by identity. When several live
// connections share a userId the most recently identified one wins; callers
// must tolerate that.
func (r *Registry) LookupByUserID(userID string) (*types.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	connID, ok := r.byUser[userID]
	if !ok {
		return nil, false
	}
	conn, ok := r.conns[connID]
	return conn, ok
}

// SetIdentity assigns the display/routing identity. Idempotent; called on
// every join.
func (r *Registry) SetIdentity(connID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[connID]
	if !ok {
		return ErrConnectionNotFound
	}
	if conn.UserID != "" && conn.UserID != userID {
		if r.byUser[conn.UserID] == connID {
			delete(r.byUser, conn.UserID)
		}
	}
	conn.UserID = userID
	r.byUser[userID] = connID
	return nil
}

func (r *Registry) SetChannel(connID, channelID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if conn, ok := r.conns[connID]; ok {
		conn.Channel = channelID
	}
}

func (r *Registry) ClearChannel(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if conn, ok := r.conns[connID]; ok {
		conn.Channel = ""
	}
}

// Remove deletes the record and its identity index entry. Channel-leave
// cleanup must happen before this (the hub does it on disconnect). Removing
// an unknown connection is a no-op.
func (r *Registry) Remove(connID string) (*types.Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[connID]
	if !ok {
		return nil, false
	}
	if conn.UserID != "" && r.byUser[conn.UserID] == connID {
		delete(r.byUser, conn.UserID)
	}
	delete(r.conns, connID)
	return conn, true
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// All returns every live connection sorted by id for consistent ordering.
func (r *Registry) All() []*types.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]*types.Connection, 0, len(r.conns))
	for _, conn := range r.conns {
		conns = append(conns, conn)
	}
	sort.Slice(conns, func(i, j int) bool {
		return conns[i].ID < conns[j].ID
	})
	return conns
}
