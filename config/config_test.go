package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "node.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoad_FillsQuorumFromNodeCount(t *testing.T) {
	path := writeConfig(t, "uid: A\nnodes: [A, B, C]\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Quorum)
}

func TestLoad_FillsDefaultTimings(t *testing.T) {
	path := writeConfig(t, "uid: A\nnodes: [A, B]\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.HeartbeatPeriod)
	assert.Equal(t, 5*time.Second, cfg.LivenessWindow)
}

func TestLoad_GeneratesUIDWhenBlank(t *testing.T) {
	path := writeConfig(t, "nodes: [A, B]\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.UID)
}

func TestLoad_RespectsExplicitValues(t *testing.T) {
	path := writeConfig(t, "uid: A\nnodes: [A, B, C]\nquorum: 3\nheartbeat_period: 1s\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Quorum)
	assert.Equal(t, time.Second, cfg.HeartbeatPeriod)
}
