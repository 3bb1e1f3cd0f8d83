package paxos

// proposalTally tracks, for a single proposal id, which acceptors have
// reported accepting it (accepts) and which acceptors still need this
// entry to stay alive because it is the last id they reported (retain).
// The entry is evicted once retain empties, which happens when every
// acceptor that once pointed at it has since moved its vote elsewhere.
type proposalTally struct {
	accepts map[string]struct{}
	retain  map[string]struct{}
	value   []byte
}

// Learner aggregates phase-2b accepted messages across acceptors and
// declares resolution the instant the same (proposal id, value) has been
// reported by a quorum of distinct acceptors.
type Learner struct {
	quorumSize int
	messenger  Messenger

	proposals map[ProposalID]*proposalTally
	acceptors map[string]ProposalID

	finalValue      []byte
	finalProposalID *ProposalID
	finalAcceptors  map[string]struct{}
}

// NewLearner builds a Learner requiring quorumSize distinct accepts to
// declare resolution.
func NewLearner(quorumSize int, messenger Messenger) *Learner {
	return &Learner{quorumSize: quorumSize, messenger: messenger}
}

// QuorumSize returns the number of distinct accepts required to resolve.
func (l *Learner) QuorumSize() int { return l.quorumSize }

// SetQuorumSize updates the number of distinct accepts required to
// resolve, used by Node.ChangeQuorumSize.
func (l *Learner) SetQuorumSize(n int) { l.quorumSize = n }

// Resolved reports whether this learner has declared a final value.
func (l *Learner) Resolved() bool { return l.finalProposalID != nil }

// FinalValue returns the resolved value, or nil if unresolved.
func (l *Learner) FinalValue() []byte { return l.finalValue }

// FinalProposalID returns the proposal id the value resolved under, or
// nil if unresolved.
func (l *Learner) FinalProposalID() *ProposalID { return copyID(l.finalProposalID) }

// FinalAcceptors returns the set of acceptor uids observed at
// resolution time, or nil if unresolved. The returned map must not be
// mutated by the caller.
func (l *Learner) FinalAcceptors() map[string]struct{} { return l.finalAcceptors }

// RecvAccepted processes a phase-2b message. Once resolved, later
// messages carrying the same value only grow finalAcceptors; messages
// carrying a different value are dropped. Before resolution, an
// acceptor's vote migrating from one proposal id to a higher one moves
// its membership out of the old tally's accept/retain sets and into the
// new one's; the old tally is evicted once no acceptor retains it.
func (l *Learner) RecvAccepted(fromUID string, pid ProposalID, value []byte) {
	if l.Resolved() {
		if bytesEqual(value, l.finalValue) {
			l.finalAcceptors[fromUID] = struct{}{}
		}
		return
	}

	if l.proposals == nil {
		l.proposals = make(map[ProposalID]*proposalTally)
		l.acceptors = make(map[string]ProposalID)
	}

	last, hadLast := l.acceptors[fromUID]
	if hadLast && !last.Less(pid) {
		// pid <= last: old or duplicate report, drop.
		return
	}

	l.acceptors[fromUID] = pid

	if hadLast {
		if oldTally, ok := l.proposals[last]; ok {
			delete(oldTally.accepts, fromUID)
			delete(oldTally.retain, fromUID)
			if len(oldTally.retain) == 0 {
				delete(l.proposals, last)
			}
		}
	}

	tally, ok := l.proposals[pid]
	if !ok {
		tally = &proposalTally{
			accepts: make(map[string]struct{}),
			retain:  make(map[string]struct{}),
			value:   value,
		}
		l.proposals[pid] = tally
	} else if !bytesEqual(tally.value, value) {
		// Two acceptors reported different values for the same proposal
		// id; this can only happen if some upstream component violated
		// the protocol. Drop the message rather than corrupt state.
		return
	}

	tally.accepts[fromUID] = struct{}{}
	tally.retain[fromUID] = struct{}{}

	if len(tally.accepts) == l.quorumSize {
		l.finalValue = tally.value
		idCopy := pid
		l.finalProposalID = &idCopy
		l.finalAcceptors = make(map[string]struct{}, len(tally.accepts))
		for uid := range tally.accepts {
			l.finalAcceptors[uid] = struct{}{}
		}
		l.proposals = nil
		l.acceptors = nil
		l.messenger.OnResolution(pid, tally.value)
	}
}
