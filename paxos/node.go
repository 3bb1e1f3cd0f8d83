package paxos

// Node sums the three Paxos roles — Proposer, Acceptor, Learner — into a
// single identity sharing one uid, one quorum, and one Messenger. The
// only coupling between the roles lives here: RecvPrepare must let the
// proposer observe the incoming proposal id before the acceptor answers
// it, so that a node running all three roles never NACKs its own next
// prepare attempt.
type Node struct {
	uid        string
	quorumSize int
	messenger  Messenger

	Proposer *Proposer
	Acceptor *Acceptor
	Learner  *Learner
}

// NewNode builds a Node running all three roles under a shared uid,
// quorumSize, and Messenger.
func NewNode(uid string, quorumSize int, messenger Messenger) *Node {
	return &Node{
		uid:        uid,
		quorumSize: quorumSize,
		messenger:  messenger,
		Proposer:   NewProposer(uid, quorumSize, messenger),
		Acceptor:   NewAcceptor(uid, messenger),
		Learner:    NewLearner(quorumSize, messenger),
	}
}

// UID returns this node's identity.
func (n *Node) UID() string { return n.uid }

// QuorumSize returns the quorum size currently shared by all three
// roles.
func (n *Node) QuorumSize() int { return n.quorumSize }

// ChangeQuorumSize updates the quorum size referenced by the proposer,
// acceptor, and learner atomically. The acceptor does not reference a
// quorum size directly, so only the proposer and learner are touched.
func (n *Node) ChangeQuorumSize(quorumSize int) {
	n.quorumSize = quorumSize
	n.Proposer.SetQuorumSize(quorumSize)
	n.Learner.SetQuorumSize(quorumSize)
}

// SetProposal forwards to the proposer.
func (n *Node) SetProposal(value []byte) { n.Proposer.SetProposal(value) }

// Prepare forwards to the proposer.
func (n *Node) Prepare(increment bool) bool { return n.Proposer.Prepare(increment) }

// ResendAccept forwards to the proposer.
func (n *Node) ResendAccept() { n.Proposer.ResendAccept() }

// RecvPrepare is delegated first to the proposer (so it can observe the
// incoming id before composing its own next attempt), then to the
// acceptor, whose reply is what actually answers the wire request.
func (n *Node) RecvPrepare(fromUID string, pid ProposalID) (mutated bool) {
	n.Proposer.ObserveProposal(fromUID, pid)
	return n.Acceptor.RecvPrepare(fromUID, pid)
}

// RecvAcceptRequest forwards to the acceptor.
func (n *Node) RecvAcceptRequest(fromUID string, pid ProposalID, value []byte) (mutated bool) {
	return n.Acceptor.RecvAcceptRequest(fromUID, pid, value)
}

// RecvPromise forwards to the proposer.
func (n *Node) RecvPromise(fromUID string, pid ProposalID, prevAcceptedID *ProposalID, prevAcceptedValue []byte) (mutated bool) {
	return n.Proposer.RecvPromise(fromUID, pid, prevAcceptedID, prevAcceptedValue)
}

// RecvPrepareNack forwards to the proposer.
func (n *Node) RecvPrepareNack(fromUID string, pid ProposalID, promisedID ProposalID) (mutated bool) {
	return n.Proposer.RecvPrepareNack(fromUID, pid, promisedID)
}

// RecvAcceptNack forwards to the proposer.
func (n *Node) RecvAcceptNack(fromUID string, pid ProposalID, promisedID ProposalID) (mutated bool) {
	return n.Proposer.RecvAcceptNack(fromUID, pid, promisedID)
}

// RecvAccepted forwards to the learner.
func (n *Node) RecvAccepted(fromUID string, pid ProposalID, value []byte) {
	n.Learner.RecvAccepted(fromUID, pid, value)
}

// Persisted forwards to the acceptor, releasing any buffered reply.
func (n *Node) Persisted() { n.Acceptor.Persisted() }

// NodeSnapshot is the plain data record serialized by a DurableStore. It
// carries only the invariant-bearing fields of each role — never the
// Messenger, and never the role objects themselves — so that a Node can
// be rebuilt from it after a restart without resurrecting any stale
// callback wiring. See durable.Store and SPEC_FULL.md §9.
type NodeSnapshot struct {
	UID        string
	QuorumSize int

	ProposedValue      []byte
	ProposalID         *ProposalID
	LastAcceptedID     *ProposalID
	NextProposalNumber uint64
	PromisesReceived   []string
	Leader             bool

	PromisedID    *ProposalID
	AcceptedID    *ProposalID
	AcceptedValue []byte
}

// Snapshot captures the invariant-bearing fields of this Node's three
// roles into a value suitable for gob encoding by a DurableStore.
func (n *Node) Snapshot() NodeSnapshot {
	promises := make([]string, 0, len(n.Proposer.promisesReceived))
	for uid := range n.Proposer.promisesReceived {
		promises = append(promises, uid)
	}
	return NodeSnapshot{
		UID:        n.uid,
		QuorumSize: n.quorumSize,

		ProposedValue:      n.Proposer.proposedValue,
		ProposalID:         copyID(n.Proposer.proposalID),
		LastAcceptedID:     copyID(n.Proposer.lastAcceptedID),
		NextProposalNumber: n.Proposer.nextProposalNum,
		PromisesReceived:   promises,
		Leader:             n.Proposer.leader,

		PromisedID:    copyID(n.Acceptor.promisedID),
		AcceptedID:    copyID(n.Acceptor.acceptedID),
		AcceptedValue: n.Acceptor.acceptedValue,
	}
}

// RestoreNode rebuilds a Node from a snapshot previously produced by
// Snapshot, re-binding it to messenger (the Messenger is deliberately
// never serialized, per the pickled-state-migration note in
// SPEC_FULL.md §9). Acceptor state is restored via Recover, bypassing
// the persistence-deferral machinery, since there is nothing in flight
// immediately after a restart.
func RestoreNode(snap NodeSnapshot, messenger Messenger) *Node {
	n := NewNode(snap.UID, snap.QuorumSize, messenger)

	n.Proposer.proposedValue = snap.ProposedValue
	n.Proposer.proposalID = snap.ProposalID
	n.Proposer.lastAcceptedID = snap.LastAcceptedID
	n.Proposer.nextProposalNum = snap.NextProposalNumber
	n.Proposer.leader = snap.Leader
	for _, uid := range snap.PromisesReceived {
		n.Proposer.promisesReceived[uid] = struct{}{}
	}

	n.Acceptor.Recover(snap.PromisedID, snap.AcceptedID, snap.AcceptedValue)

	return n
}
