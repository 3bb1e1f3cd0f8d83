/*
Package paxos, proposer role.

# Prepare(n)

A proposer chooses a new proposal number n strictly higher than any it has
used before and sends a prepare request to every acceptor, asking each to
respond with:

	(a) a promise never again to accept a proposal numbered less than n;
	(b) the highest-numbered proposal (if any) that it has already
	    accepted.

# Accept(n, v)

If the proposer receives promises from a quorum of acceptors, it may issue
an accept request numbered n with value v, where v is the value carried by
the highest-numbered promise received, or any value of the proposer's
choosing if every promise carried none.
*/
package paxos

// Proposer drives phases 1 and 2 of single-decree Paxos and tracks
// whether it currently holds leadership (a quorum of outstanding
// promises for its current proposal id).
type Proposer struct {
	uid        string
	quorumSize int
	messenger  Messenger

	proposedValue    []byte
	proposalID       *ProposalID
	lastAcceptedID   *ProposalID
	nextProposalNum  uint64
	promisesReceived map[string]struct{}
	leader           bool
	active           bool
}

// NewProposer builds a Proposer identified by uid, requiring quorumSize
// distinct promises to become leader.
func NewProposer(uid string, quorumSize int, messenger Messenger) *Proposer {
	return &Proposer{
		uid:              uid,
		quorumSize:       quorumSize,
		messenger:        messenger,
		nextProposalNum:  1,
		promisesReceived: make(map[string]struct{}),
		active:           true,
	}
}

// UID returns the proposer's own node identity.
func (p *Proposer) UID() string { return p.uid }

// IsLeader reports whether this proposer currently believes it holds
// leadership.
func (p *Proposer) IsLeader() bool { return p.leader }

// Active reports whether outbound sends are currently enabled.
func (p *Proposer) Active() bool { return p.active }

// SetActive enables or suppresses this proposer's outbound Messenger
// calls without touching any other state.
func (p *Proposer) SetActive(active bool) { p.active = active }

// ProposalID returns the id of the current attempt, or nil if none has
// been prepared yet.
func (p *Proposer) ProposalID() *ProposalID { return copyID(p.proposalID) }

// QuorumSize returns the number of distinct promises required for
// leadership.
func (p *Proposer) QuorumSize() int { return p.quorumSize }

// SetQuorumSize updates the number of distinct promises required for
// leadership, used by Node.ChangeQuorumSize.
func (p *Proposer) SetQuorumSize(n int) { p.quorumSize = n }

// SetProposal records the value this proposer will try to get chosen.
// Once set, the value is never silently overwritten except by adoption
// of a prior-accepted value observed during phase 1 (RecvPromise). If
// this proposer is already leader and active, the value is immediately
// broadcast as an accept request under the current proposal id.
func (p *Proposer) SetProposal(value []byte) {
	if p.proposedValue != nil {
		return
	}
	p.proposedValue = value

	if p.leader && p.active && p.proposalID != nil {
		p.messenger.SendAccept(*p.proposalID, p.proposedValue)
	}
}

// Prepare starts (or restarts) phase 1. When increment is true, a fresh
// proposal id strictly higher than any used before is minted and
// leadership/promises tracked so far are cleared. When increment is
// false, the current proposal id is reused verbatim (used by callers
// that want to resend a prepare already in flight).
func (p *Proposer) Prepare(increment bool) bool {
	mutated := false
	if increment {
		p.leader = false
		p.promisesReceived = make(map[string]struct{})
		p.proposalID = &ProposalID{Number: p.nextProposalNum, UID: p.uid}
		p.nextProposalNum++
		mutated = true
	}
	if p.active && p.proposalID != nil {
		p.messenger.SendPrepare(*p.proposalID)
	}
	return mutated
}

// ObserveProposal records any proposal id seen on the wire from another
// proposer, so that this proposer's next attempt is guaranteed not to
// collide with (and be NACKed by) an id already in use.
func (p *Proposer) ObserveProposal(fromUID string, pid ProposalID) bool {
	if fromUID == p.uid {
		return false
	}
	if pid.Number >= p.nextProposalNum {
		p.nextProposalNum = pid.Number + 1
		return true
	}
	return false
}

// RecvPrepareNack handles a rejection of a prepare request; the
// acceptor's currently promised id is folded into future proposal
// numbering via ObserveProposal.
func (p *Proposer) RecvPrepareNack(fromUID string, pid ProposalID, promisedID ProposalID) bool {
	return p.ObserveProposal(fromUID, promisedID)
}

// RecvAcceptNack handles a rejection of an accept request. The base
// Proposer only observes the proposal id; HeartbeatNode overrides this
// behavior to additionally count NACKs toward losing leadership.
func (p *Proposer) RecvAcceptNack(fromUID string, pid ProposalID, promisedID ProposalID) bool {
	return p.ObserveProposal(fromUID, promisedID)
}

// ResendAccept re-broadcasts the current accept request, if this
// proposer is leader, has a value, and is active.
func (p *Proposer) ResendAccept() {
	if p.leader && p.proposedValue != nil && p.active && p.proposalID != nil {
		p.messenger.SendAccept(*p.proposalID, p.proposedValue)
	}
}

// RecvPromise processes a phase-1b response. Leadership is declared the
// instant the quorumSize-th distinct promise for the current proposal id
// arrives; a strictly higher previously-accepted id is always adopted,
// but it only overwrites proposedValue when it carries a non-nil value.
func (p *Proposer) RecvPromise(fromUID string, pid ProposalID, prevAcceptedID *ProposalID, prevAcceptedValue []byte) bool {
	mutated := p.ObserveProposal(fromUID, pid)

	if p.leader {
		return mutated
	}
	if p.proposalID == nil || !pid.Equal(*p.proposalID) {
		return mutated
	}
	if _, seen := p.promisesReceived[fromUID]; seen {
		return mutated
	}

	p.promisesReceived[fromUID] = struct{}{}
	mutated = true

	if idGreater(prevAcceptedID, p.lastAcceptedID) {
		p.lastAcceptedID = copyID(prevAcceptedID)
		if prevAcceptedValue != nil {
			p.proposedValue = prevAcceptedValue
		}
	}

	if len(p.promisesReceived) == p.quorumSize {
		p.leader = true
		p.messenger.OnLeadershipAcquired()
		if p.active && p.proposedValue != nil {
			p.messenger.SendAccept(*p.proposalID, p.proposedValue)
		}
	}

	return mutated
}
