// Package transport provides a reference, Redis pub/sub-backed
// implementation of paxos.Messenger, wiring the library's
// transport-agnostic core to an actual network for the demo binary.
package transport

import "github.com/go-paxos/paxoslib/paxos"

// wireMessage is the envelope published on every per-recipient channel.
// Type selects which field of Body is meaningful, mirroring the
// teacher's GenericMessage/Body wrapping convention.
type wireMessage struct {
	InstanceNum uint64 `json:"instance_num"`
	Type        string `json:"message_type"`
	From        string `json:"from"`
	Body        body   `json:"body"`
}

type body struct {
	ProposalID     paxos.ProposalID  `json:"proposal_id"`
	PromisedID     *paxos.ProposalID `json:"promised_id,omitempty"`
	PrevAcceptedID *paxos.ProposalID `json:"prev_accepted_id,omitempty"`
	Value          []byte            `json:"value,omitempty"`
}

const (
	msgPrepare     = "prepare"
	msgPromise     = "promise"
	msgPrepareNack = "prepare_nack"
	msgAccept      = "accept"
	msgAcceptNack  = "accept_nack"
	msgAccepted    = "accepted"
	msgHeartbeat   = "heartbeat"
)

func channelFor(uid string) string { return "paxos:" + uid }
