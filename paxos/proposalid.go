// Package paxos implements the Paxos single-decree consensus roles:
// Proposer, Acceptor, Learner, their composition into a Node, and the
// heartbeat liveness layer built on top of a Node.
package paxos

// ProposalID is the totally ordered (number, uid) pair used to sequence
// proposals. The zero value is never a valid concrete id; use a nil
// *ProposalID to represent "no proposal id yet" (the null id), which
// compares as strictly less than any concrete id.
type ProposalID struct {
	Number uint64
	UID    string
}

// Less reports whether p sorts strictly before other under the
// lexicographic (number, uid) order.
func (p ProposalID) Less(other ProposalID) bool {
	if p.Number != other.Number {
		return p.Number < other.Number
	}
	return p.UID < other.UID
}

// Equal reports whether p and other identify the same proposal.
func (p ProposalID) Equal(other ProposalID) bool {
	return p.Number == other.Number && p.UID == other.UID
}

// idLess compares two possibly-null proposal ids. A nil id is strictly
// less than any non-nil id; two nil ids are not less than each other.
func idLess(a, b *ProposalID) bool {
	if a == nil {
		return b != nil
	}
	if b == nil {
		return false
	}
	return a.Less(*b)
}

// idEqual reports whether a and b identify the same (possibly null)
// proposal id.
func idEqual(a, b *ProposalID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// idGreater reports whether a sorts strictly after b.
func idGreater(a, b *ProposalID) bool {
	return idLess(b, a)
}

// idGreaterOrEqual reports whether a sorts at or after b.
func idGreaterOrEqual(a, b *ProposalID) bool {
	return !idLess(a, b)
}

func copyID(id *ProposalID) *ProposalID {
	if id == nil {
		return nil
	}
	cp := *id
	return &cp
}
