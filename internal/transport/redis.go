package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/go-paxos/paxoslib/paxos"
)

// Receiver is the subset of multipaxos.MultiPaxos's inbound API the
// subscriber goroutine dispatches decoded messages into. multipaxos.MultiPaxos
// satisfies this interface; it is expressed here, rather than imported
// directly, to keep this package's dependency surface to exactly what
// it dispatches into.
type Receiver interface {
	RecvPrepare(instanceNum uint64, fromUID string, pid paxos.ProposalID)
	RecvPromise(instanceNum uint64, fromUID string, pid paxos.ProposalID, prevAcceptedID *paxos.ProposalID, prevAcceptedValue []byte)
	RecvPrepareNack(instanceNum uint64, fromUID string, pid paxos.ProposalID, promisedID paxos.ProposalID)
	RecvAcceptRequest(instanceNum uint64, fromUID string, pid paxos.ProposalID, value []byte)
	RecvAcceptNack(instanceNum uint64, fromUID string, pid paxos.ProposalID, promisedID paxos.ProposalID)
	RecvAccepted(instanceNum uint64, fromUID string, pid paxos.ProposalID, value []byte)
	RecvHeartbeat(instanceNum uint64, fromUID string, pid paxos.ProposalID)
}

// RedisMessenger implements paxos.Messenger over Redis pub/sub: every
// logical Paxos message is JSON-encoded and published either on every
// peer's channel (broadcasts) or on a single recipient's channel
// (directed replies). It is instance-agnostic by construction — the
// instance number embedded in each outgoing message is fetched from
// instanceNum at send time, so the same RedisMessenger keeps working
// across MultiPaxos's instance rollovers.
type RedisMessenger struct {
	client *redis.Client
	uid    string
	peers  []string

	instanceNum func() uint64

	OnSchedule func(delay time.Duration, fn func())
}

// NewRedisMessenger connects to a Redis server at addr and prepares to
// publish as uid, broadcasting to every uid listed in peers (self
// included; SendPrepare et al. fan out to the whole peer list the same
// way the teacher's seeker iterates config.CONF.NODES).
func NewRedisMessenger(addr, uid string, peers []string) (*RedisMessenger, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("transport: connecting to redis at %q: %w", addr, err)
	}
	return &RedisMessenger{client: client, uid: uid, peers: peers}, nil
}

// SetInstanceNumProvider wires the function used to stamp outgoing
// messages with the currently active instance number. It must be
// called once, after the owning multipaxos.MultiPaxos is constructed,
// before this messenger is used.
func (m *RedisMessenger) SetInstanceNumProvider(fn func() uint64) { m.instanceNum = fn }

// Listen starts a subscriber goroutine decoding messages published on
// this node's own channel and dispatching them into recv. It returns
// once the subscription is established; decoding continues in the
// background until ctx is canceled.
func (m *RedisMessenger) Listen(ctx context.Context, recv Receiver) error {
	sub := m.client.Subscribe(ctx, channelFor(m.uid))
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("transport: subscribing to %q: %w", channelFor(m.uid), err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				m.dispatch(msg.Payload, recv)
			}
		}
	}()
	return nil
}

func (m *RedisMessenger) dispatch(payload string, recv Receiver) {
	var wm wireMessage
	if err := json.Unmarshal([]byte(payload), &wm); err != nil {
		log.Printf("[TRANSPORT] decoding message on %s: %v", channelFor(m.uid), err)
		return
	}
	if wm.From == m.uid {
		return
	}

	switch wm.Type {
	case msgPrepare:
		recv.RecvPrepare(wm.InstanceNum, wm.From, wm.Body.ProposalID)
	case msgPromise:
		recv.RecvPromise(wm.InstanceNum, wm.From, wm.Body.ProposalID, wm.Body.PrevAcceptedID, wm.Body.Value)
	case msgPrepareNack:
		if wm.Body.PromisedID == nil {
			log.Printf("[TRANSPORT] %s message on %s missing promised_id", wm.Type, channelFor(m.uid))
			return
		}
		recv.RecvPrepareNack(wm.InstanceNum, wm.From, wm.Body.ProposalID, *wm.Body.PromisedID)
	case msgAccept:
		recv.RecvAcceptRequest(wm.InstanceNum, wm.From, wm.Body.ProposalID, wm.Body.Value)
	case msgAcceptNack:
		if wm.Body.PromisedID == nil {
			log.Printf("[TRANSPORT] %s message on %s missing promised_id", wm.Type, channelFor(m.uid))
			return
		}
		recv.RecvAcceptNack(wm.InstanceNum, wm.From, wm.Body.ProposalID, *wm.Body.PromisedID)
	case msgAccepted:
		recv.RecvAccepted(wm.InstanceNum, wm.From, wm.Body.ProposalID, wm.Body.Value)
	case msgHeartbeat:
		recv.RecvHeartbeat(wm.InstanceNum, wm.From, wm.Body.ProposalID)
	default:
		log.Printf("[TRANSPORT] unknown message type %q on %s", wm.Type, channelFor(m.uid))
	}
}

func (m *RedisMessenger) publish(toUID string, wm wireMessage) {
	data, err := json.Marshal(wm)
	if err != nil {
		log.Printf("[TRANSPORT] encoding %s message: %v", wm.Type, err)
		return
	}
	if err := m.client.Publish(context.Background(), channelFor(toUID), data).Err(); err != nil {
		log.Printf("[TRANSPORT] publishing %s to %s: %v", wm.Type, toUID, err)
	}
}

func (m *RedisMessenger) broadcast(wm wireMessage) {
	for _, peer := range m.peers {
		m.publish(peer, wm)
	}
}

func (m *RedisMessenger) envelope(msgType string, b body) wireMessage {
	return wireMessage{InstanceNum: m.instanceNum(), Type: msgType, From: m.uid, Body: b}
}

// SendPrepare implements paxos.Messenger.
func (m *RedisMessenger) SendPrepare(pid paxos.ProposalID) {
	m.broadcast(m.envelope(msgPrepare, body{ProposalID: pid}))
}

// SendPromise implements paxos.Messenger.
func (m *RedisMessenger) SendPromise(toUID string, pid paxos.ProposalID, prevAcceptedID *paxos.ProposalID, prevAcceptedValue []byte) {
	m.publish(toUID, m.envelope(msgPromise, body{ProposalID: pid, PrevAcceptedID: prevAcceptedID, Value: prevAcceptedValue}))
}

// SendPrepareNack implements paxos.Messenger.
func (m *RedisMessenger) SendPrepareNack(toUID string, pid paxos.ProposalID, promisedID paxos.ProposalID) {
	m.publish(toUID, m.envelope(msgPrepareNack, body{ProposalID: pid, PromisedID: &promisedID}))
}

// SendAccept implements paxos.Messenger.
func (m *RedisMessenger) SendAccept(pid paxos.ProposalID, value []byte) {
	m.broadcast(m.envelope(msgAccept, body{ProposalID: pid, Value: value}))
}

// SendAcceptNack implements paxos.Messenger.
func (m *RedisMessenger) SendAcceptNack(toUID string, pid paxos.ProposalID, promisedID paxos.ProposalID) {
	m.publish(toUID, m.envelope(msgAcceptNack, body{ProposalID: pid, PromisedID: &promisedID}))
}

// SendAccepted implements paxos.Messenger.
func (m *RedisMessenger) SendAccepted(pid paxos.ProposalID, value []byte) {
	m.broadcast(m.envelope(msgAccepted, body{ProposalID: pid, Value: value}))
}

// SendHeartbeat implements paxos.Messenger.
func (m *RedisMessenger) SendHeartbeat(leaderPID paxos.ProposalID) {
	m.broadcast(m.envelope(msgHeartbeat, body{ProposalID: leaderPID}))
}

// OnLeadershipAcquired implements paxos.Messenger as a no-op; callers
// needing the notification should wrap this messenger.
func (m *RedisMessenger) OnLeadershipAcquired() {}

// OnLeadershipLost implements paxos.Messenger as a no-op.
func (m *RedisMessenger) OnLeadershipLost() {}

// OnLeadershipChange implements paxos.Messenger as a no-op.
func (m *RedisMessenger) OnLeadershipChange(oldUID, newUID string) {}

// OnResolution implements paxos.Messenger as a no-op; multipaxos.MultiPaxos
// wraps this messenger to observe resolution itself.
func (m *RedisMessenger) OnResolution(pid paxos.ProposalID, value []byte) {}

// Schedule implements paxos.Messenger by delegating to OnSchedule if
// set, or time.AfterFunc otherwise.
func (m *RedisMessenger) Schedule(delay time.Duration, fn func()) {
	if m.OnSchedule != nil {
		m.OnSchedule(delay, fn)
		return
	}
	time.AfterFunc(delay, fn)
}
