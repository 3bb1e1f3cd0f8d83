/*
Package paxos, acceptor role.

An acceptor can receive two kinds of requests from proposers: prepare
requests and accept requests. An acceptor can ignore any request without
compromising safety, so we only need to say when it is allowed to respond.

	(1) It can always respond to a prepare request.
	(2) It can accept a proposal numbered n IFF it has not promised not to
	    do so, i.e. it has not responded to a prepare request numbered
	    greater than n.

With this optimization an acceptor needs to remember only the
highest-numbered proposal it has ever accepted and the number of the
highest-numbered prepare request it has responded to. Because this must be
kept invariant across failures, an acceptor must remember this information
even if it crashes and restarts — which is why every state change below
must reach stable storage before the corresponding reply is released.
*/
package paxos

// Acceptor is the stable-memory role. Replies that would reveal a
// promise or acceptance are buffered in the pending* fields until the
// owning Node calls Persisted, confirming the state has reached stable
// media.
type Acceptor struct {
	uid       string
	messenger Messenger
	active    bool

	promisedID    *ProposalID
	acceptedID    *ProposalID
	acceptedValue []byte

	pendingPromise  *string
	pendingAccepted *string
}

// NewAcceptor builds an Acceptor identified by uid.
func NewAcceptor(uid string, messenger Messenger) *Acceptor {
	return &Acceptor{uid: uid, messenger: messenger, active: true}
}

// Active reports whether outbound sends are currently enabled.
func (a *Acceptor) Active() bool { return a.active }

// SetActive enables or suppresses this acceptor's outbound Messenger
// calls without touching any other state.
func (a *Acceptor) SetActive(active bool) { a.active = active }

// PromisedID returns the highest proposal id this acceptor has promised,
// or nil if none.
func (a *Acceptor) PromisedID() *ProposalID { return copyID(a.promisedID) }

// AcceptedID returns the id of the last proposal this acceptor accepted,
// or nil if none.
func (a *Acceptor) AcceptedID() *ProposalID { return copyID(a.acceptedID) }

// AcceptedValue returns the value of the last proposal this acceptor
// accepted, or nil if none.
func (a *Acceptor) AcceptedValue() []byte { return a.acceptedValue }

// PersistenceRequired reports whether a reply is currently being held
// back pending a call to Persisted.
func (a *Acceptor) PersistenceRequired() bool {
	return a.pendingPromise != nil || a.pendingAccepted != nil
}

// RecvPrepare implements the acceptor's behavior on a phase-1a request.
// A duplicate of the currently promised id gets an immediate reply with
// no state change and no persistence, since nothing changed. A strictly
// higher id is promised, and the reply is buffered until Persisted is
// called — unless another promise is already in flight, in which case
// this request is dropped entirely: no state change, no reply, not even
// deferred. A lower id is NACKed immediately.
func (a *Acceptor) RecvPrepare(fromUID string, pid ProposalID) (mutated bool) {
	if idEqual(a.promisedID, &pid) {
		if a.active {
			a.messenger.SendPromise(fromUID, pid, a.acceptedID, a.acceptedValue)
		}
		return false
	}

	if idGreater(&pid, a.promisedID) {
		if a.pendingPromise == nil {
			a.promisedID = copyID(&pid)
			mutated = true
			if a.active {
				uid := fromUID
				a.pendingPromise = &uid
			}
		}
		return mutated
	}

	if a.active {
		a.messenger.SendPrepareNack(fromUID, pid, *a.promisedID)
	}
	return false
}

// RecvAcceptRequest implements the acceptor's behavior on a phase-2a
// request. A duplicate of the currently accepted (id, value) pair gets
// an immediate re-send with no state change. Any id at or above the
// current promise is accepted, buffering the reply until Persisted is
// called — unless another accept is already in flight, in which case
// this request is dropped entirely: no state change, no reply, not even
// deferred. Anything lower is NACKed immediately.
func (a *Acceptor) RecvAcceptRequest(fromUID string, pid ProposalID, value []byte) (mutated bool) {
	if idEqual(a.acceptedID, &pid) && bytesEqual(a.acceptedValue, value) {
		if a.active {
			a.messenger.SendAccepted(pid, value)
		}
		return false
	}

	if idGreaterOrEqual(&pid, a.promisedID) {
		if a.pendingAccepted == nil {
			a.promisedID = copyID(&pid)
			a.acceptedID = copyID(&pid)
			a.acceptedValue = value
			mutated = true
			if a.active {
				uid := fromUID
				a.pendingAccepted = &uid
			}
		}
		return mutated
	}

	if a.active {
		a.messenger.SendAcceptNack(fromUID, pid, *a.promisedID)
	}
	return false
}

// Persisted must be called by the owning application after committing
// (promisedID, acceptedID, acceptedValue) to stable storage. It releases
// any reply buffered by RecvPrepare/RecvAcceptRequest and clears the
// pending slots.
func (a *Acceptor) Persisted() {
	if a.pendingPromise != nil {
		if a.active {
			a.messenger.SendPromise(*a.pendingPromise, *a.promisedID, a.acceptedID, a.acceptedValue)
		}
		a.pendingPromise = nil
	}
	if a.pendingAccepted != nil {
		if a.active {
			a.messenger.SendAccepted(*a.acceptedID, a.acceptedValue)
		}
		a.pendingAccepted = nil
	}
}

// Recover reinstates acceptor state after a restart, bypassing the
// persistence-deferral machinery entirely (there is nothing pending to
// release: this call happens before the Messenger is even wired back
// up).
func (a *Acceptor) Recover(promisedID, acceptedID *ProposalID, acceptedValue []byte) {
	a.promisedID = copyID(promisedID)
	a.acceptedID = copyID(acceptedID)
	a.acceptedValue = acceptedValue
	a.pendingPromise = nil
	a.pendingAccepted = nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
