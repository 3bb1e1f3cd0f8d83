// Command demo runs one node of a MultiPaxos deployment over the
// reference Redis transport, recording every resolved instance to a
// local sqlite3 decision log. It replaces the teacher's HTTP-handler
// process with the same responsibilities — load config, open storage,
// serve — expressed against the role-based library API.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/go-paxos/paxoslib/config"
	"github.com/go-paxos/paxoslib/decisionlog"
	"github.com/go-paxos/paxoslib/internal/transport"
	"github.com/go-paxos/paxoslib/multipaxos"
)

func main() {
	cfgPath := flag.String("config", "node.yaml", "path to the node's YAML config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("[DEMO] loading config: %v", err)
	}
	log.Printf("[DEMO] node %s starting, quorum %d of %d peers", cfg.UID, cfg.Quorum, len(cfg.Nodes))

	messenger, err := transport.NewRedisMessenger(cfg.RedisAddr, cfg.UID, cfg.Nodes)
	if err != nil {
		log.Fatalf("[DEMO] connecting to redis: %v", err)
	}

	params := multipaxos.Params{
		QuorumSize:      cfg.Quorum,
		HeartbeatPeriod: cfg.HeartbeatPeriod,
		LivenessWindow:  cfg.LivenessWindow,
	}

	mp, err := multipaxos.Recover(cfg.UID, params, messenger, cfg.StoreDir, cfg.UID)
	if err != nil {
		log.Fatalf("[DEMO] recovering multipaxos state: %v", err)
	}
	if mp.InstanceNum() > 0 {
		log.Printf("[DEMO] recovered prior node state from %s, resuming at instance %d", cfg.StoreDir, mp.InstanceNum())
	}

	messenger.SetInstanceNumProvider(mp.InstanceNum)

	if cfg.DecisionLogPath != "" {
		recorder, err := decisionlog.Open(decisionLogPath(cfg))
		if err != nil {
			log.Fatalf("[DEMO] opening decision log: %v", err)
		}
		defer recorder.Close()
		mp.Attach(recorder)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := messenger.Listen(ctx, mp); err != nil {
		log.Fatalf("[DEMO] listening on redis: %v", err)
	}

	ticker := time.NewTicker(cfg.LivenessWindow)
	defer ticker.Stop()
	go func() {
		for range ticker.C {
			mp.Node().PollLiveness()
		}
	}()

	log.Printf("[DEMO] ready; type a value and press enter to propose it for instance %d", mp.InstanceNum())
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		instanceNum := mp.InstanceNum()
		if err := mp.SetProposal(instanceNum, []byte(line)); err != nil {
			fmt.Fprintf(os.Stderr, "[DEMO] %v\n", err)
			continue
		}
		mp.Prepare(instanceNum, true)
	}
}

func decisionLogPath(cfg *config.NodeConfig) string {
	if filepath.IsAbs(cfg.DecisionLogPath) {
		return cfg.DecisionLogPath
	}
	return filepath.Join(cfg.StoreDir, cfg.DecisionLogPath)
}
