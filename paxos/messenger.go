package paxos

import "time"

// Messenger is the sole collaborator a role object talks to. Every
// outbound effect of a Node or HeartbeatNode goes through one of these
// calls; the library never touches a socket or a clock directly. An
// implementation is free to be a thin wrapper around any transport.
type Messenger interface {
	// SendPrepare broadcasts a phase-1a request to all acceptors.
	SendPrepare(pid ProposalID)

	// SendPromise replies to a phase-1a request. prevAcceptedID and
	// prevAcceptedValue are nil when the acceptor has never accepted
	// anything for this instance.
	SendPromise(toUID string, pid ProposalID, prevAcceptedID *ProposalID, prevAcceptedValue []byte)

	// SendPrepareNack rejects a phase-1a request, carrying the
	// acceptor's current highest promised id.
	SendPrepareNack(toUID string, pid ProposalID, promisedID ProposalID)

	// SendAccept broadcasts a phase-2a request.
	SendAccept(pid ProposalID, value []byte)

	// SendAcceptNack rejects a phase-2a request, carrying the
	// acceptor's current highest promised id.
	SendAcceptNack(toUID string, pid ProposalID, promisedID ProposalID)

	// SendAccepted broadcasts a phase-2b acceptance.
	SendAccepted(pid ProposalID, value []byte)

	// SendHeartbeat broadcasts a liveness beacon carrying the leader's
	// current proposal id.
	SendHeartbeat(leaderPID ProposalID)

	// OnLeadershipAcquired fires when this node's proposer becomes
	// leader.
	OnLeadershipAcquired()

	// OnLeadershipLost fires when a HeartbeatNode loses leadership to a
	// heartbeat from a higher id or to a NACK quorum. Prepare(true)
	// clears the leader flag without firing it.
	OnLeadershipLost()

	// OnLeadershipChange fires whenever the known leader changes.
	// oldUID/newUID are "" when there was/is no known leader.
	OnLeadershipChange(oldUID, newUID string)

	// OnResolution fires exactly once, the instant the learner observes
	// quorum agreement on a single value.
	OnResolution(pid ProposalID, value []byte)

	// Schedule registers a one-shot timer; fn runs after delay. The
	// scheduler need not support cancellation — callbacks that fire
	// after becoming stale are expected to be no-ops (see HeartbeatNode
	// Pulse).
	Schedule(delay time.Duration, fn func())
}
