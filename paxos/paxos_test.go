package paxos

import (
	"time"
)

// fakeMessenger is an in-memory Messenger recording every outbound
// call for assertion. Schedule only records the call and never runs fn
// (tests drive time explicitly rather than waiting on real timers).
type fakeMessenger struct {
	prepares  []ProposalID
	promises  []promiseCall
	prepNacks []nackCall
	accepts   []acceptCall
	acceptN   []nackCall
	accepted  []acceptCall
	heartbeats []ProposalID

	leadershipAcquired int
	leadershipLost     int
	leadershipChanges  []changeCall
	resolutions        []acceptCall

	scheduled []scheduledCall
}

type promiseCall struct {
	toUID              string
	pid                ProposalID
	prevAcceptedID     *ProposalID
	prevAcceptedValue  []byte
}

type nackCall struct {
	toUID      string
	pid        ProposalID
	promisedID ProposalID
}

type acceptCall struct {
	pid   ProposalID
	value []byte
}

type changeCall struct {
	oldUID, newUID string
}

type scheduledCall struct {
	delay time.Duration
	fn    func()
}

func newFakeMessenger() *fakeMessenger { return &fakeMessenger{} }

func (f *fakeMessenger) SendPrepare(pid ProposalID) { f.prepares = append(f.prepares, pid) }

func (f *fakeMessenger) SendPromise(toUID string, pid ProposalID, prevAcceptedID *ProposalID, prevAcceptedValue []byte) {
	f.promises = append(f.promises, promiseCall{toUID, pid, prevAcceptedID, prevAcceptedValue})
}

func (f *fakeMessenger) SendPrepareNack(toUID string, pid ProposalID, promisedID ProposalID) {
	f.prepNacks = append(f.prepNacks, nackCall{toUID, pid, promisedID})
}

func (f *fakeMessenger) SendAccept(pid ProposalID, value []byte) {
	f.accepts = append(f.accepts, acceptCall{pid, value})
}

func (f *fakeMessenger) SendAcceptNack(toUID string, pid ProposalID, promisedID ProposalID) {
	f.acceptN = append(f.acceptN, nackCall{toUID, pid, promisedID})
}

func (f *fakeMessenger) SendAccepted(pid ProposalID, value []byte) {
	f.accepted = append(f.accepted, acceptCall{pid, value})
}

func (f *fakeMessenger) SendHeartbeat(leaderPID ProposalID) {
	f.heartbeats = append(f.heartbeats, leaderPID)
}

func (f *fakeMessenger) OnLeadershipAcquired() { f.leadershipAcquired++ }
func (f *fakeMessenger) OnLeadershipLost()     { f.leadershipLost++ }

func (f *fakeMessenger) OnLeadershipChange(oldUID, newUID string) {
	f.leadershipChanges = append(f.leadershipChanges, changeCall{oldUID, newUID})
}

func (f *fakeMessenger) OnResolution(pid ProposalID, value []byte) {
	f.resolutions = append(f.resolutions, acceptCall{pid, value})
}

func (f *fakeMessenger) Schedule(delay time.Duration, fn func()) {
	f.scheduled = append(f.scheduled, scheduledCall{delay, fn})
}
