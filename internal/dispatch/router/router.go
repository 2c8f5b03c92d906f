// Package router maps logical identities (driver ids, rider ids) to live
// connections and fans messages out to every device a party has open.
package router

import (
	"sync"

	"ride-dispatch/internal/shared/observability"
	"ride-dispatch/internal/shared/util"
)

// Conn is one live delivery endpoint. Send must be safe to call from
// multiple goroutines.
type Conn interface {
	Send(v interface{}) error
	Close() error
}

type Role string

const (
	RoleDriver Role = "driver"
	RoleRider  Role = "rider"
)

type member struct {
	role  Role
	conns map[Conn]struct{}
}

// Router is the in-memory connection table. One identity can hold several
// connections at once; delivery goes to all of them.
type Router struct {
	mu      sync.RWMutex
	members map[string]*member

	log *util.Logger

	// OnDriverGone fires after a driver's last connection leaves.
	OnDriverGone func(driverID string)
}

func New(log *util.Logger) *Router {
	return &Router{
		members: make(map[string]*member),
		log:     log,
	}
}

// Join registers a connection under an identity.
func (r *Router) Join(id string, role Role, c Conn) {
	r.mu.Lock()
	m, ok := r.members[id]
	if !ok {
		m = &member{role: role, conns: make(map[Conn]struct{})}
		r.members[id] = m
	}
	m.conns[c] = struct{}{}
	r.mu.Unlock()

	observability.WSConnections.Inc()
	r.log.Info("Router", string(role)+" "+id+" joined")
}

// Leave drops one connection. When it was the identity's last one the
// identity is removed and, for drivers, OnDriverGone fires.
func (r *Router) Leave(id string, c Conn) {
	var gone bool
	var role Role

	r.mu.Lock()
	m, ok := r.members[id]
	if ok {
		if _, had := m.conns[c]; had {
			delete(m.conns, c)
			observability.WSConnections.Dec()
		}
		if len(m.conns) == 0 {
			delete(r.members, id)
			gone = true
			role = m.role
		}
	}
	r.mu.Unlock()

	if gone && role == RoleDriver && r.OnDriverGone != nil {
		r.OnDriverGone(id)
	}
}

// Connected reports whether the identity has at least one live connection.
func (r *Router) Connected(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.members[id]
	return ok && len(m.conns) > 0
}

// SendTo delivers v to every connection of the identity. Returns false when
// the identity has no connections at all; a failing connection is dropped
// without affecting siblings.
func (r *Router) SendTo(id string, v interface{}) bool {
	r.mu.RLock()
	m, ok := r.members[id]
	if !ok || len(m.conns) == 0 {
		r.mu.RUnlock()
		return false
	}
	conns := make([]Conn, 0, len(m.conns))
	for c := range m.conns {
		conns = append(conns, c)
	}
	r.mu.RUnlock()

	delivered := false
	for _, c := range conns {
		if err := c.Send(v); err != nil {
			r.log.Error("Router", "dropping dead connection for "+id, err)
			c.Close()
			r.Leave(id, c)
			continue
		}
		delivered = true
	}
	return delivered
}
