package paxos

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProposer_PrepareMintsIncreasingIDs(t *testing.T) {
	m := newFakeMessenger()
	p := NewProposer("A", 2, m)

	mutated := p.Prepare(true)
	require.True(t, mutated)
	require.NotNil(t, p.ProposalID())
	assert.Equal(t, uint64(1), p.ProposalID().Number)
	assert.Equal(t, "A", p.ProposalID().UID)

	mutated = p.Prepare(true)
	require.True(t, mutated)
	assert.Equal(t, uint64(2), p.ProposalID().Number)

	require.Len(t, m.prepares, 2)
}

func TestProposer_ObserveProposalAdvancesCounter(t *testing.T) {
	m := newFakeMessenger()
	p := NewProposer("A", 2, m)

	mutated := p.ObserveProposal("B", ProposalID{Number: 5, UID: "B"})
	assert.True(t, mutated)

	p.Prepare(true)
	assert.Equal(t, uint64(6), p.ProposalID().Number)
}

func TestProposer_ObserveProposalIgnoresSelf(t *testing.T) {
	m := newFakeMessenger()
	p := NewProposer("A", 2, m)

	mutated := p.ObserveProposal("A", ProposalID{Number: 99, UID: "A"})
	assert.False(t, mutated)
	assert.Equal(t, uint64(1), p.nextProposalNum)
}

func TestProposer_RecvPromiseReachesQuorumAndBecomesLeader(t *testing.T) {
	m := newFakeMessenger()
	p := NewProposer("A", 2, m)
	p.SetProposal([]byte("v1"))
	p.Prepare(true)
	pid := *p.ProposalID()

	mutated := p.RecvPromise("B", pid, nil, nil)
	assert.True(t, mutated)
	assert.False(t, p.IsLeader())

	mutated = p.RecvPromise("C", pid, nil, nil)
	assert.True(t, mutated)
	assert.True(t, p.IsLeader())
	assert.Equal(t, 1, m.leadershipAcquired)
	require.Len(t, m.accepts, 1)
	assert.Equal(t, []byte("v1"), m.accepts[0].value)
}

func TestProposer_RecvPromiseDuplicateIsIgnored(t *testing.T) {
	m := newFakeMessenger()
	p := NewProposer("A", 2, m)
	p.Prepare(true)
	pid := *p.ProposalID()

	p.RecvPromise("B", pid, nil, nil)
	mutated := p.RecvPromise("B", pid, nil, nil)
	assert.False(t, mutated)
}

func TestProposer_RecvPromiseAdoptsPriorAcceptedValue(t *testing.T) {
	m := newFakeMessenger()
	p := NewProposer("A", 2, m)
	p.SetProposal([]byte("mine"))
	p.Prepare(true)
	pid := *p.ProposalID()

	priorID := ProposalID{Number: 0, UID: "Z"}
	p.RecvPromise("B", pid, &priorID, []byte("theirs"))
	p.RecvPromise("C", pid, nil, nil)

	require.True(t, p.IsLeader())
	require.Len(t, m.accepts, 1)
	assert.Equal(t, []byte("theirs"), m.accepts[0].value)
}

func TestProposer_SetProposalDoesNotOverwriteOnceSet(t *testing.T) {
	m := newFakeMessenger()
	p := NewProposer("A", 1, m)
	p.SetProposal([]byte("first"))
	p.SetProposal([]byte("second"))
	assert.Equal(t, []byte("first"), p.proposedValue)
}
