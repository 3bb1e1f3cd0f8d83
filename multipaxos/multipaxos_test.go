package multipaxos

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-paxos/paxoslib/paxos"
)

// fakeMessenger is a minimal in-memory paxos.Messenger used to drive
// MultiPaxos without a real transport.
type fakeMessenger struct {
	accepts   []acceptCall
	resolved  []resolveCall
}

type acceptCall struct {
	pid   paxos.ProposalID
	value []byte
}

type resolveCall struct {
	pid   paxos.ProposalID
	value []byte
}

func (f *fakeMessenger) SendPrepare(paxos.ProposalID) {}
func (f *fakeMessenger) SendPromise(string, paxos.ProposalID, *paxos.ProposalID, []byte) {}
func (f *fakeMessenger) SendPrepareNack(string, paxos.ProposalID, paxos.ProposalID) {}
func (f *fakeMessenger) SendAccept(pid paxos.ProposalID, value []byte) {
	f.accepts = append(f.accepts, acceptCall{pid, value})
}
func (f *fakeMessenger) SendAcceptNack(string, paxos.ProposalID, paxos.ProposalID) {}
func (f *fakeMessenger) SendAccepted(paxos.ProposalID, []byte)                     {}
func (f *fakeMessenger) SendHeartbeat(paxos.ProposalID)                            {}
func (f *fakeMessenger) OnLeadershipAcquired()                                     {}
func (f *fakeMessenger) OnLeadershipLost()                                         {}
func (f *fakeMessenger) OnLeadershipChange(string, string)                         {}
func (f *fakeMessenger) OnResolution(pid paxos.ProposalID, value []byte) {
	f.resolved = append(f.resolved, resolveCall{pid, value})
}
func (f *fakeMessenger) Schedule(time.Duration, func()) {}

type fakeObserver struct {
	calls []resolveCall
	instances []uint64
}

func (o *fakeObserver) OnProposalResolution(instanceNum uint64, pid paxos.ProposalID, value []byte) error {
	o.instances = append(o.instances, instanceNum)
	o.calls = append(o.calls, resolveCall{pid, value})
	return nil
}

func newTestMultiPaxos(quorum int) (*MultiPaxos, *fakeMessenger) {
	m := &fakeMessenger{}
	params := Params{QuorumSize: quorum, HeartbeatPeriod: time.Second, LivenessWindow: 2 * time.Second}
	mp := New("A", params, m, 0, nil)
	return mp, m
}

func TestMultiPaxos_SetProposalRejectsWrongInstance(t *testing.T) {
	mp, _ := newTestMultiPaxos(2)
	err := mp.SetProposal(1, []byte("v"))
	assert.Error(t, err)
}

func TestMultiPaxos_RecvPrepareDroppedForMismatchedInstance(t *testing.T) {
	mp, _ := newTestMultiPaxos(2)
	mp.RecvPrepare(99, "B", paxos.ProposalID{Number: 1, UID: "B"})
	assert.Equal(t, uint64(0), mp.InstanceNum())
	assert.Nil(t, mp.Node().Acceptor.PromisedID())
}

func TestMultiPaxos_ResolutionRollsOverInstance(t *testing.T) {
	mp, _ := newTestMultiPaxos(2)
	obs := &fakeObserver{}
	mp.Attach(obs)

	require.NoError(t, mp.SetProposal(0, []byte("value")))
	mp.Prepare(0, true)
	pid := *mp.Node().Proposer.ProposalID()

	mp.RecvPromise(0, "B", pid, nil, nil)
	mp.RecvPromise(0, "C", pid, nil, nil)
	require.True(t, mp.Node().Proposer.IsLeader())

	mp.RecvAccepted(0, "A", pid, []byte("value"))
	mp.RecvAccepted(0, "B", pid, []byte("value"))

	assert.Equal(t, uint64(1), mp.InstanceNum())
	require.Len(t, obs.calls, 1)
	assert.Equal(t, []byte("value"), obs.calls[0].value)
	assert.Equal(t, []uint64{0}, obs.instances)
}

func TestMultiPaxos_NewInstanceCarriesResolverAsLeaderHint(t *testing.T) {
	mp, _ := newTestMultiPaxos(2)

	require.NoError(t, mp.SetProposal(0, []byte("value")))
	mp.Prepare(0, true)
	pid := *mp.Node().Proposer.ProposalID()
	mp.RecvPromise(0, "B", pid, nil, nil)
	mp.RecvPromise(0, "C", pid, nil, nil)
	mp.RecvAccepted(0, "A", pid, []byte("value"))
	mp.RecvAccepted(0, "B", pid, []byte("value"))

	assert.Equal(t, "A", mp.Node().LeaderUID())
}
