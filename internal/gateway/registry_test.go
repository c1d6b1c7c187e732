package gateway

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/memflow/lowcode-backend/internal/model"
)

// fakeConn records every payload written to it and can be told to fail.
type fakeConn struct {
	payloads []any
	fail     bool
	closed   bool
}

func (f *fakeConn) WriteJSON(v any) error {
	if f.fail {
		return errors.New("write failed")
	}
	f.payloads = append(f.payloads, v)
	return nil
}

func (f *fakeConn) Close() error {
	f.closed = true
	return nil
}

func TestAdmitAndLookup(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Admit("c1", "alice", ClassPublic, &fakeConn{})
	r.Admit("c2", "bob", ClassAdmin, &fakeConn{})

	username, class, ok := r.Lookup("c1")
	require.True(t, ok)
	require.Equal(t, "alice", username)
	require.Equal(t, ClassPublic, class)

	username, class, ok = r.Lookup("c2")
	require.True(t, ok)
	require.Equal(t, "bob", username)
	require.Equal(t, ClassAdmin, class)

	_, _, ok = r.Lookup("unknown")
	require.False(t, ok)
}

func TestEvictRemovesEverywhere(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Admit("c1", "alice", ClassPublic, &fakeConn{})
	r.Admit("c2", "bob", ClassAdmin, &fakeConn{})

	username, ok := r.Evict("c2")
	require.True(t, ok)
	require.Equal(t, "bob", username)

	_, _, ok = r.Lookup("c2")
	require.False(t, ok, "no entry may reference an evicted connection id")

	_, ok = r.Evict("c2")
	require.False(t, ok, "double evict is a no-op")
}

func TestReadmitOverwritesPriorEntry(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	old := &fakeConn{}
	r.Admit("c1", "alice", ClassPublic, old)
	fresh := &fakeConn{}
	r.Admit("c2", "alice", ClassPublic, fresh)

	// The old connection id no longer resolves; the new one does.
	_, _, ok := r.Lookup("c1")
	require.False(t, ok)
	username, _, ok := r.Lookup("c2")
	require.True(t, ok)
	require.Equal(t, "alice", username)

	// Unicast goes to the newest handshake only.
	r.Unicast("alice", ClassPublic, "hello")
	require.Empty(t, old.payloads)
	require.Equal(t, []any{"hello"}, fresh.payloads)

	// Evicting the stale id must not disturb the fresh entry.
	_, ok = r.Evict("c1")
	require.False(t, ok)
	_, _, ok = r.Lookup("c2")
	require.True(t, ok)
}

func TestBroadcastIsBestEffort(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	broken := &fakeConn{fail: true}
	healthy := &fakeConn{}
	r.Admit("c1", "alice", ClassPublic, broken)
	r.Admit("c2", "carol", ClassPublic, healthy)
	r.Admit("c3", "bob", ClassAdmin, &fakeConn{})

	r.Broadcast(ClassPublic, "ping")

	require.Equal(t, []any{"ping"}, healthy.payloads, "failure on one handle must not abort the rest")
}

func TestUnicastOfflineIsNoOp(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Unicast("ghost", ClassAdmin, "anyone there?")

	// Same username in the other queue must not receive either.
	pub := &fakeConn{}
	r.Admit("c1", "dave", ClassPublic, pub)
	r.Unicast("dave", ClassAdmin, "wrong queue")
	require.Empty(t, pub.payloads)
}

func TestClassFor(t *testing.T) {
	t.Parallel()

	require.Equal(t, ClassPublic, ClassFor(model.RolePublic))
	require.Equal(t, ClassAdmin, ClassFor(model.RoleAdmin))
	require.Equal(t, ClassAdmin, ClassFor(model.RoleSuper))
}
