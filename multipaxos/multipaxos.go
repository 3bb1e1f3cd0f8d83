// Package multipaxos chains a sequence of single-decree Paxos instances
// into a running log, sequencing them by instance number and wiring
// each instance's resolution to a DurableStore commit and to any
// attached observers.
package multipaxos

import (
	"fmt"
	"log"
	"time"

	"github.com/go-paxos/paxoslib/durable"
	"github.com/go-paxos/paxoslib/paxos"
	"github.com/go-paxos/paxoslib/perrors"
)

// ResolutionObserver is notified every time an instance resolves. The
// call is best-effort from MultiPaxos's point of view: an observer
// error is logged and otherwise ignored, never propagated to the
// protocol.
type ResolutionObserver interface {
	OnProposalResolution(instanceNum uint64, pid paxos.ProposalID, value []byte) error
}

// Params carries the per-instance construction parameters every fresh
// HeartbeatNode is built with as instances roll over.
type Params struct {
	QuorumSize      int
	HeartbeatPeriod time.Duration
	LivenessWindow  time.Duration
}

// PersistedState is the gob-encoded record a DurableStore commits on
// every mutating call: the active instance number alongside the full
// snapshot of that instance's Node.
type PersistedState struct {
	InstanceNum uint64
	Node        paxos.NodeSnapshot
}

// MultiPaxos wraps the active instance behind instance-number
// validation: every inbound method is a no-op unless its instance_num
// matches the one currently active.
type MultiPaxos struct {
	uid    string
	params Params

	instanceNum uint64
	node        *paxos.HeartbeatNode

	baseMessenger paxos.Messenger

	store     *durable.Store
	observers []ResolutionObserver
}

// New builds a MultiPaxos starting at instanceNum, under uid, wrapping
// messenger so that every instance's resolution rolls over into a fresh
// HeartbeatNode automatically. If store is non-nil, every mutating call
// persists state to it.
func New(uid string, params Params, messenger paxos.Messenger, instanceNum uint64, store *durable.Store) *MultiPaxos {
	mp := &MultiPaxos{
		uid:           uid,
		params:        params,
		instanceNum:   instanceNum,
		baseMessenger: messenger,
		store:         store,
	}
	mp.node = mp.newInstance("")
	return mp
}

// Recover opens the DurableStore at dir/objectID and, if a prior record
// exists, rebuilds a MultiPaxos from it at the recovered instance
// number and node state; otherwise it behaves like New starting at
// instance 0.
func Recover(uid string, params Params, messenger paxos.Messenger, dir, objectID string) (*MultiPaxos, error) {
	var state PersistedState
	store, recovered, err := durable.Open(dir, objectID, &state)
	if err != nil {
		return nil, fmt.Errorf("multipaxos: recovering %q: %w", objectID, err)
	}

	mp := &MultiPaxos{
		uid:           uid,
		params:        params,
		baseMessenger: messenger,
		store:         store,
	}
	if recovered {
		mp.instanceNum = state.InstanceNum
		wrapped := &resolutionMessenger{Messenger: messenger, mp: mp}
		mp.node = paxos.RestoreHeartbeatNode(state.Node, wrapped, params.HeartbeatPeriod, params.LivenessWindow)
	} else {
		mp.node = mp.newInstance("")
	}
	return mp, nil
}

// Attach registers an observer invoked after each instance resolves.
func (mp *MultiPaxos) Attach(obs ResolutionObserver) {
	mp.observers = append(mp.observers, obs)
}

// InstanceNum returns the currently active instance number.
func (mp *MultiPaxos) InstanceNum() uint64 { return mp.instanceNum }

// Node returns the HeartbeatNode currently handling the active
// instance.
func (mp *MultiPaxos) Node() *paxos.HeartbeatNode { return mp.node }

func (mp *MultiPaxos) newInstance(leaderUID string) *paxos.HeartbeatNode {
	wrapped := &resolutionMessenger{Messenger: mp.baseMessenger, mp: mp}
	return paxos.NewHeartbeatNode(mp.uid, mp.params.QuorumSize, wrapped, leaderUID, mp.params.HeartbeatPeriod, mp.params.LivenessWindow)
}

// SetProposal forwards to the active instance's proposer, returning
// perrors.ErrInvalidInstanceNumber when instanceNum does not match the
// currently active one.
func (mp *MultiPaxos) SetProposal(instanceNum uint64, value []byte) error {
	if instanceNum != mp.instanceNum {
		return fmt.Errorf("multipaxos: instance %d, active %d: %w", instanceNum, mp.instanceNum, perrors.ErrInvalidInstanceNumber)
	}
	mp.node.SetProposal(value)
	return nil
}

// Prepare forwards to the active instance if instanceNum matches,
// persisting afterward if the call mutated state and a store is
// attached.
func (mp *MultiPaxos) Prepare(instanceNum uint64, increment bool) {
	if instanceNum != mp.instanceNum {
		return
	}
	mutated := mp.node.Prepare(increment)
	mp.maybeSave(mutated)
}

// RecvPrepare forwards to the active instance if instanceNum matches;
// mismatches (older or newer instances) are silently dropped.
func (mp *MultiPaxos) RecvPrepare(instanceNum uint64, fromUID string, pid paxos.ProposalID) {
	if instanceNum != mp.instanceNum {
		return
	}
	mutated := mp.node.RecvPrepare(fromUID, pid)
	mp.maybeSave(mutated)
}

// RecvPromise forwards to the active instance if instanceNum matches.
func (mp *MultiPaxos) RecvPromise(instanceNum uint64, fromUID string, pid paxos.ProposalID, prevAcceptedID *paxos.ProposalID, prevAcceptedValue []byte) {
	if instanceNum != mp.instanceNum {
		return
	}
	mutated := mp.node.RecvPromise(fromUID, pid, prevAcceptedID, prevAcceptedValue)
	mp.maybeSave(mutated)
}

// RecvPrepareNack forwards to the active instance if instanceNum
// matches.
func (mp *MultiPaxos) RecvPrepareNack(instanceNum uint64, fromUID string, pid paxos.ProposalID, promisedID paxos.ProposalID) {
	if instanceNum != mp.instanceNum {
		return
	}
	mp.node.RecvPrepareNack(fromUID, pid, promisedID)
}

// RecvAcceptRequest forwards to the active instance if instanceNum
// matches.
func (mp *MultiPaxos) RecvAcceptRequest(instanceNum uint64, fromUID string, pid paxos.ProposalID, value []byte) {
	if instanceNum != mp.instanceNum {
		return
	}
	mutated := mp.node.RecvAcceptRequest(fromUID, pid, value)
	mp.maybeSave(mutated)
}

// RecvAcceptNack forwards to the active instance if instanceNum
// matches.
func (mp *MultiPaxos) RecvAcceptNack(instanceNum uint64, fromUID string, pid paxos.ProposalID, promisedID paxos.ProposalID) {
	if instanceNum != mp.instanceNum {
		return
	}
	mp.node.RecvAcceptNack(fromUID, pid, promisedID)
}

// RecvHeartbeat forwards to the active instance if instanceNum
// matches.
func (mp *MultiPaxos) RecvHeartbeat(instanceNum uint64, fromUID string, pid paxos.ProposalID) {
	if instanceNum != mp.instanceNum {
		return
	}
	mp.node.RecvHeartbeat(fromUID, pid)
}

// RecvAccepted forwards to the active instance's learner if instanceNum
// matches. Resolution, if it occurs, is driven by the learner's own
// OnResolution callback via the resolutionMessenger wrapper below.
func (mp *MultiPaxos) RecvAccepted(instanceNum uint64, fromUID string, pid paxos.ProposalID, value []byte) {
	if instanceNum != mp.instanceNum {
		return
	}
	mp.node.RecvAccepted(fromUID, pid, value)
}

// Persisted forwards to the active instance's acceptor, releasing any
// reply buffered pending a durable commit.
func (mp *MultiPaxos) Persisted(instanceNum uint64) {
	if instanceNum != mp.instanceNum {
		return
	}
	mp.node.Persisted()
}

func (mp *MultiPaxos) maybeSave(mutated bool) {
	if !mutated || mp.store == nil {
		return
	}
	state := PersistedState{InstanceNum: mp.instanceNum, Node: mp.node.Snapshot()}
	if err := mp.store.Save(state); err != nil {
		log.Printf("[MULTIPAXOS] instance %d: %v", mp.instanceNum, err)
	}
}

// onResolved advances to the next instance number, builds a fresh node
// carrying the winning proposer's uid as the new instance's leader
// hint, persists the rollover if a store is attached, and notifies
// every attached observer.
func (mp *MultiPaxos) onResolved(pid paxos.ProposalID, value []byte) {
	resolvedInstance := mp.instanceNum
	mp.instanceNum++
	mp.node = mp.newInstance(pid.UID)

	if mp.store != nil {
		state := PersistedState{InstanceNum: mp.instanceNum, Node: mp.node.Snapshot()}
		if err := mp.store.Save(state); err != nil {
			log.Printf("[MULTIPAXOS] instance %d rollover: %v", resolvedInstance, err)
		}
	}

	for _, obs := range mp.observers {
		if err := obs.OnProposalResolution(resolvedInstance, pid, value); err != nil {
			log.Printf("[MULTIPAXOS] observer error for instance %d: %v", resolvedInstance, err)
		}
	}
}

// resolutionMessenger wraps the caller-supplied Messenger so that the
// MultiPaxos that owns the current instance always hears about
// resolution first, ahead of (and in addition to) whatever the caller
// wants to do with it.
type resolutionMessenger struct {
	paxos.Messenger
	mp *MultiPaxos
}

func (r *resolutionMessenger) OnResolution(pid paxos.ProposalID, value []byte) {
	r.mp.onResolved(pid, value)
	r.Messenger.OnResolution(pid, value)
}
