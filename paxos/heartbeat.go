package paxos

import "time"

// HeartbeatNode embeds a Node and adds the liveness layer: periodic
// heartbeats from the leader, a follower-side liveness timer, and
// NACK-driven loss of leadership. It overrides the Node methods that
// need to additionally track leader identity and timers; everything
// else falls through to the embedded Node unchanged.
type HeartbeatNode struct {
	*Node

	leaderUID        string
	leaderProposalID *ProposalID

	tLastHeartbeat       time.Time
	tLastPrepareObserved time.Time

	acquiring bool
	nacks     map[string]struct{}

	hbPeriod       time.Duration
	livenessWindow time.Duration

	now func() time.Time
}

// NewHeartbeatNode builds a HeartbeatNode. If leaderUID equals uid, this
// node starts already believing itself leader, minting its first
// proposal id immediately (matching the "leader_uid == self" initial
// condition).
func NewHeartbeatNode(uid string, quorumSize int, messenger Messenger, leaderUID string, hbPeriod, livenessWindow time.Duration) *HeartbeatNode {
	hn := &HeartbeatNode{
		Node:           NewNode(uid, quorumSize, messenger),
		leaderUID:      leaderUID,
		hbPeriod:       hbPeriod,
		livenessWindow: livenessWindow,
		now:            time.Now,
	}
	if leaderUID == uid {
		hn.Node.Proposer.proposalID = &ProposalID{Number: hn.Node.Proposer.nextProposalNum, UID: uid}
		hn.Node.Proposer.nextProposalNum++
		hn.Node.Proposer.leader = true
		hn.leaderProposalID = copyID(hn.Node.Proposer.proposalID)
	}
	return hn
}

// RestoreHeartbeatNode rebuilds a HeartbeatNode from a snapshot
// previously produced by (*Node).Snapshot, re-binding it to messenger.
// The leader/timer fields a HeartbeatNode adds on top of Node are not
// part of the durable record — SPEC_FULL.md's save/recover hook covers
// only Node's invariant-bearing fields — so this node comes back up as
// a plain follower and must rediscover the leader through the normal
// liveness machinery.
func RestoreHeartbeatNode(snap NodeSnapshot, messenger Messenger, hbPeriod, livenessWindow time.Duration) *HeartbeatNode {
	hn := &HeartbeatNode{
		Node:           RestoreNode(snap, messenger),
		hbPeriod:       hbPeriod,
		livenessWindow: livenessWindow,
		now:            time.Now,
	}
	hn.Node.Proposer.leader = false
	return hn
}

// LeaderUID returns the uid this node currently believes is leader, or
// "" if none is known.
func (hn *HeartbeatNode) LeaderUID() string { return hn.leaderUID }

// LeaderProposalID returns the proposal id of the currently known
// leader, or nil.
func (hn *HeartbeatNode) LeaderProposalID() *ProposalID { return copyID(hn.leaderProposalID) }

// LeaderIsAlive reports whether a heartbeat has been seen within the
// last livenessWindow.
func (hn *HeartbeatNode) LeaderIsAlive() bool {
	return hn.now().Sub(hn.tLastHeartbeat) <= hn.livenessWindow
}

// ObservedRecentPrepare reports whether any other node's prepare was
// seen within the last 1.5 × livenessWindow, used to suppress a
// competing acquisition attempt while someone else is already trying.
func (hn *HeartbeatNode) ObservedRecentPrepare() bool {
	window := hn.livenessWindow + hn.livenessWindow/2
	return hn.now().Sub(hn.tLastPrepareObserved) <= window
}

// PollLiveness must be called roughly every livenessWindow. If the
// leader appears dead and no one else was recently seen attempting
// acquisition, this node either retries its own in-flight acquisition
// or starts a new one.
func (hn *HeartbeatNode) PollLiveness() {
	if hn.LeaderIsAlive() || hn.ObservedRecentPrepare() {
		return
	}
	if hn.acquiring {
		hn.Prepare(false)
		return
	}
	hn.AcquireLeadership()
}

// AcquireLeadership begins a new phase-1 attempt if the leader still
// appears dead at the moment of the call.
func (hn *HeartbeatNode) AcquireLeadership() {
	if hn.LeaderIsAlive() {
		return
	}
	hn.acquiring = true
	hn.Prepare(true)
}

// Prepare clears any accumulated NACKs before delegating to the base
// Proposer.
func (hn *HeartbeatNode) Prepare(increment bool) bool {
	hn.nacks = nil
	return hn.Node.Prepare(increment)
}

// RecvHeartbeat processes a liveness beacon. A strictly newer leader
// proposal id displaces the currently known leader (stepping this node
// down if it was leader and the new leader is someone else); a beacon
// matching the known leader id simply refreshes the liveness timer.
func (hn *HeartbeatNode) RecvHeartbeat(fromUID string, pid ProposalID) {
	if idGreater(&pid, hn.leaderProposalID) {
		old := hn.leaderUID
		hn.acquiring = false
		if hn.Node.Proposer.leader && fromUID != hn.uidSelf() {
			hn.Node.Proposer.leader = false
			hn.messenger().OnLeadershipLost()
		}
		hn.leaderUID = fromUID
		hn.leaderProposalID = copyID(&pid)
		hn.messenger().OnLeadershipChange(old, fromUID)
		hn.tLastHeartbeat = hn.now()
		return
	}
	if idEqual(&pid, hn.leaderProposalID) {
		hn.tLastHeartbeat = hn.now()
	}
}

// RecvPrepare delegates to the base Node, then, for prepares from any
// other node, refreshes the recent-prepare timer used to suppress
// competing acquisition attempts.
func (hn *HeartbeatNode) RecvPrepare(fromUID string, pid ProposalID) bool {
	mutated := hn.Node.RecvPrepare(fromUID, pid)
	if fromUID != hn.uidSelf() {
		hn.tLastPrepareObserved = hn.now()
	}
	return mutated
}

// RecvPromise delegates to the base Proposer; on the transition to
// leadership it additionally records this node as the known leader,
// clears any in-flight acquisition, and starts the heartbeat pulse.
func (hn *HeartbeatNode) RecvPromise(fromUID string, pid ProposalID, prevAcceptedID *ProposalID, prevAcceptedValue []byte) bool {
	wasLeader := hn.Node.Proposer.leader
	mutated := hn.Node.RecvPromise(fromUID, pid, prevAcceptedID, prevAcceptedValue)
	if !wasLeader && hn.Node.Proposer.leader {
		old := hn.leaderUID
		hn.leaderUID = hn.uidSelf()
		hn.leaderProposalID = hn.Node.Proposer.ProposalID()
		hn.acquiring = false
		hn.Pulse()
		hn.messenger().OnLeadershipChange(old, hn.uidSelf())
	}
	return mutated
}

// RecvPrepareNack retries the current acquisition attempt (with the
// now-higher next proposal number observed from the rejection) when
// this node is actively trying to acquire leadership.
func (hn *HeartbeatNode) RecvPrepareNack(fromUID string, pid ProposalID, promisedID ProposalID) bool {
	mutated := hn.Node.RecvPrepareNack(fromUID, pid, promisedID)
	if hn.acquiring {
		hn.Prepare(true)
	}
	return mutated
}

// RecvAcceptNack tracks rejections of the current accept request;
// reaching a quorum of NACKs relinquishes leadership outright rather
// than waiting for a competing heartbeat to arrive.
func (hn *HeartbeatNode) RecvAcceptNack(fromUID string, pid ProposalID, promisedID ProposalID) bool {
	if hn.Node.Proposer.proposalID != nil && pid.Equal(*hn.Node.Proposer.proposalID) {
		if hn.nacks == nil {
			hn.nacks = make(map[string]struct{})
		}
		hn.nacks[fromUID] = struct{}{}
	}

	if hn.Node.Proposer.leader && len(hn.nacks) >= hn.Node.Proposer.QuorumSize() {
		hn.Node.Proposer.leader = false
		hn.Node.Proposer.promisesReceived = make(map[string]struct{})
		old := hn.leaderUID
		hn.leaderUID = ""
		hn.leaderProposalID = nil
		hn.messenger().OnLeadershipLost()
		hn.messenger().OnLeadershipChange(old, "")
	}

	return hn.Node.Proposer.ObserveProposal(fromUID, promisedID)
}

// Pulse is the recurring heartbeat callback. If this node is no longer
// leader by the time a scheduled Pulse fires, it is a no-op — there is
// no timer cancellation, so staleness is handled by this guard instead.
func (hn *HeartbeatNode) Pulse() {
	if !hn.Node.Proposer.leader {
		return
	}
	hn.tLastHeartbeat = hn.now()
	hn.messenger().SendHeartbeat(*hn.Node.Proposer.ProposalID())
	hn.messenger().Schedule(hn.hbPeriod, hn.Pulse)
}

func (hn *HeartbeatNode) uidSelf() string    { return hn.Node.uid }
func (hn *HeartbeatNode) messenger() Messenger { return hn.Node.messenger }
