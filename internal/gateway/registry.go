// Package gateway tracks authenticated real-time connections and routes
// notification traffic to them.  Connections live in two role-partitioned
// queues (admin tier and public tier); the registry is authoritative only
// for sockets local to this process — cross-instance delivery is the
// broker's job.
package gateway

import (
	"sync"

	"github.com/memflow/lowcode-backend/internal/model"
)

// Class identifies which queue a connection belongs to.
type Class int

const (
	ClassPublic Class = iota
	ClassAdmin
)

// ClassFor maps a role tier onto a queue class: admin tier is role >= admin.
func ClassFor(role model.Role) Class {
	if role.AtLeast(model.RoleAdmin) {
		return ClassAdmin
	}
	return ClassPublic
}

// Conn is the transport handle the registry writes to.  The concrete
// implementation serializes writes so per-connection message ordering is
// preserved.
type Conn interface {
	WriteJSON(v any) error
	Close() error
}

type entry struct {
	connID string
	conn   Conn
}

// Registry is the in-memory mapping of live connections, keyed by username
// within each queue.  All mutations are serialized by one mutex; two
// registrations for the same username racing resolve to last-writer-wins
// rather than a data race.
type Registry struct {
	mu     sync.Mutex
	admin  map[string]entry
	public map[string]entry
}

func NewRegistry() *Registry {
	return &Registry{
		admin:  make(map[string]entry),
		public: make(map[string]entry),
	}
}

// Admit inserts the connection into the queue for its class.  A new
// handshake for a username already present overwrites the prior entry:
// last handshake wins, so there is never more than one live entry per
// username per queue.
func (r *Registry) Admit(connID, username string, class Class, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queue(class)[username] = entry{connID: connID, conn: conn}
}

// Evict removes whatever entry holds the given connection id, scanning the
// admin queue first (it is expected to be the smaller one).  It returns the
// username that was removed, if any.  Evicting an id that was already
// overwritten by a newer handshake is a no-op.
func (r *Registry) Evict(connID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, q := range []map[string]entry{r.admin, r.public} {
		for username, e := range q {
			if e.connID == connID {
				delete(q, username)
				return username, true
			}
		}
	}
	return "", false
}

// Lookup resolves a connection id to its username and queue class, for
// attributing inbound messages.
func (r *Registry) Lookup(connID string) (string, Class, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for username, e := range r.admin {
		if e.connID == connID {
			return username, ClassAdmin, true
		}
	}
	for username, e := range r.public {
		if e.connID == connID {
			return username, ClassPublic, true
		}
	}
	return "", ClassPublic, false
}

// Broadcast writes the payload to every connection in the queue.  Fan-out
// is best-effort: a failed write on one handle never aborts the rest.
func (r *Registry) Broadcast(class Class, payload any) {
	for _, e := range r.snapshot(class) {
		_ = e.conn.WriteJSON(payload)
	}
}

// Unicast writes the payload to the single queue entry for username.  An
// offline recipient is a silent no-op, not an error.
func (r *Registry) Unicast(username string, class Class, payload any) {
	r.mu.Lock()
	e, ok := r.queue(class)[username]
	r.mu.Unlock()
	if ok {
		_ = e.conn.WriteJSON(payload)
	}
}

func (r *Registry) queue(class Class) map[string]entry {
	if class == ClassAdmin {
		return r.admin
	}
	return r.public
}

// snapshot copies the queue under the lock so slow writes never block
// admissions and evictions.
func (r *Registry) snapshot(class Class) []entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	q := r.queue(class)
	out := make([]entry, 0, len(q))
	for _, e := range q {
		out = append(out, e)
	}
	return out
}
