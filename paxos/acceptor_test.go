package paxos

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcceptor_RecvPrepareBuffersUntilPersisted(t *testing.T) {
	m := newFakeMessenger()
	a := NewAcceptor("X", m)

	pid := ProposalID{Number: 1, UID: "A"}
	mutated := a.RecvPrepare("A", pid)
	assert.True(t, mutated)
	assert.True(t, a.PersistenceRequired())
	assert.Empty(t, m.promises)

	a.Persisted()
	require.Len(t, m.promises, 1)
	assert.Equal(t, "A", m.promises[0].toUID)
	assert.False(t, a.PersistenceRequired())
}

func TestAcceptor_RecvPrepareDuplicateRepliesImmediately(t *testing.T) {
	m := newFakeMessenger()
	a := NewAcceptor("X", m)
	pid := ProposalID{Number: 1, UID: "A"}
	a.RecvPrepare("A", pid)
	a.Persisted()

	mutated := a.RecvPrepare("A", pid)
	assert.False(t, mutated)
	assert.Len(t, m.promises, 2)
}

func TestAcceptor_RecvPrepareLowerIsNacked(t *testing.T) {
	m := newFakeMessenger()
	a := NewAcceptor("X", m)
	a.RecvPrepare("A", ProposalID{Number: 5, UID: "A"})
	a.Persisted()

	mutated := a.RecvPrepare("B", ProposalID{Number: 3, UID: "B"})
	assert.False(t, mutated)
	require.Len(t, m.prepNacks, 1)
	assert.Equal(t, "B", m.prepNacks[0].toUID)
	assert.Equal(t, uint64(5), m.prepNacks[0].promisedID.Number)
}

func TestAcceptor_OverlappingPrepareWhilePendingIsDropped(t *testing.T) {
	m := newFakeMessenger()
	a := NewAcceptor("X", m)

	mutated := a.RecvPrepare("A", ProposalID{Number: 1, UID: "A"})
	require.True(t, mutated)

	mutated = a.RecvPrepare("B", ProposalID{Number: 2, UID: "B"})
	assert.False(t, mutated, "a second prepare arriving while the first is still pending must not mutate state")
	assert.Equal(t, uint64(1), a.PromisedID().Number, "promisedID must not advance past the buffered commit")

	a.Persisted()
	require.Len(t, m.promises, 1, "only the first, buffered promise is released")
	assert.Equal(t, "A", m.promises[0].toUID, "the dropped request gets no reply at all, even after the first commits")
}

func TestAcceptor_RecvAcceptRequestAcceptsAtOrAbovePromise(t *testing.T) {
	m := newFakeMessenger()
	a := NewAcceptor("X", m)
	a.RecvPrepare("A", ProposalID{Number: 2, UID: "A"})
	a.Persisted()

	pid := ProposalID{Number: 2, UID: "A"}
	mutated := a.RecvAcceptRequest("A", pid, []byte("v"))
	assert.True(t, mutated)
	assert.True(t, a.PersistenceRequired())

	a.Persisted()
	require.Len(t, m.accepted, 1)
	assert.Equal(t, []byte("v"), m.accepted[0].value)
}

func TestAcceptor_RecvAcceptRequestBelowPromiseIsNacked(t *testing.T) {
	m := newFakeMessenger()
	a := NewAcceptor("X", m)
	a.RecvPrepare("A", ProposalID{Number: 5, UID: "A"})
	a.Persisted()

	mutated := a.RecvAcceptRequest("B", ProposalID{Number: 3, UID: "B"}, []byte("v"))
	assert.False(t, mutated)
	require.Len(t, m.acceptN, 1)
}

func TestAcceptor_RecoverRestoresStateWithoutPending(t *testing.T) {
	m := newFakeMessenger()
	a := NewAcceptor("X", m)
	promised := ProposalID{Number: 4, UID: "A"}
	accepted := ProposalID{Number: 4, UID: "A"}
	a.Recover(&promised, &accepted, []byte("restored"))

	assert.False(t, a.PersistenceRequired())
	assert.Equal(t, []byte("restored"), a.AcceptedValue())
	assert.Equal(t, uint64(4), a.PromisedID().Number)
}
