// Package config exposes the configuration loaded through a YAML file
// used to parameterize a Paxos node's runtime: identity, peers, timing,
// and the storage/transport it is wired against.
package config

import (
	"crypto/rand"
	"fmt"
	"io/ioutil"
	"log"
	"time"

	"gopkg.in/yaml.v2"
)

// NodeConfig holds the variables needed to stand up one node of a
// MultiPaxos deployment.
type NodeConfig struct {
	UID string `yaml:"uid"` // UID identifies this node; must be unique across the deployment.

	Nodes  []string `yaml:"nodes"`  // Nodes lists every peer uid in the deployment, including this one.
	Quorum int      `yaml:"quorum"` // Quorum is the number of distinct replies required; computed from Nodes if left unset.

	StoreDir string `yaml:"store_dir"` // StoreDir is the directory holding this node's DurableStore files.

	HeartbeatPeriod time.Duration `yaml:"heartbeat_period"` // HeartbeatPeriod is the leader's beacon cadence.
	LivenessWindow  time.Duration `yaml:"liveness_window"`  // LivenessWindow is the follower's patience before suspecting the leader.

	LeaderUID string `yaml:"leader_uid"` // LeaderUID optionally names the initial leader; "" means none. cmd/demo does not read it.

	DecisionLogPath string `yaml:"decision_log_path"` // DecisionLogPath is the sqlite3 file backing the decision log, if any.

	RedisAddr string `yaml:"redis_addr"` // RedisAddr is the reference RedisMessenger's connection string, if any.
}

// Load reads path as YAML into a NodeConfig and fills in any field left
// blank with a computed default via FillEmptyFields.
func Load(path string) (*NodeConfig, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %q: %w", path, err)
	}
	var c NodeConfig
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("config: parsing %q: %w", path, err)
	}
	c.FillEmptyFields()
	return &c, nil
}

// FillEmptyFields computes defaults for fields the YAML file is
// allowed to leave blank. Any other field keeps what the file gave it,
// or its zero value if the file left it out.
func (c *NodeConfig) FillEmptyFields() {
	if c.UID == "" {
		c.UID = randomUID()
	}

	if c.Quorum == 0 && len(c.Nodes) > 0 {
		c.Quorum = len(c.Nodes)/2 + 1
	}

	if c.HeartbeatPeriod == 0 {
		c.HeartbeatPeriod = 2 * time.Second
	}

	if c.LivenessWindow == 0 {
		c.LivenessWindow = 5 * time.Second
	}

	if c.StoreDir == "" {
		c.StoreDir = "."
	}
}

// randomUID mints an identity for a node whose config left uid blank.
// crypto/rand is used rather than math/rand (the teacher's choice for
// its own PID field) because a uid collision between two nodes breaks
// the quorum-counting invariant outright, not merely a test fixture.
func randomUID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		log.Fatalf("[CONFIG] generating random uid: %v", err)
	}
	return fmt.Sprintf("node-%x", b)
}
