package kvhop

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "kvhop.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600), "write config")
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `nodes:
  - 127.0.0.1:7001
  - 127.0.0.1:7002
aliases:
  "node-1:6379": 127.0.0.1:7001
  "node-2:6379": 127.0.0.1:7002
max_hops: 3
transport_retries: 1
command_timeout: 250ms
loose_redirects: true
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err, "LoadConfig")
	assert.Equal(t, []string{"127.0.0.1:7001", "127.0.0.1:7002"}, cfg.Nodes, "nodes")
	assert.Equal(t, "127.0.0.1:7001", cfg.Aliases["node-1:6379"], "alias 1")
	assert.Equal(t, "127.0.0.1:7002", cfg.Aliases["node-2:6379"], "alias 2")
	assert.Equal(t, 3, cfg.MaxHops, "max hops")
	assert.Equal(t, 1, cfg.TransportRetries, "transport retries")
	assert.Equal(t, 250*time.Millisecond, cfg.CommandTimeout, "command timeout")
	assert.True(t, cfg.LooseRedirects, "loose redirects")
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, "nodes:\n  - 127.0.0.1:7001\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err, "LoadConfig")
	assert.Equal(t, DefaultMaxHops, cfg.MaxHops, "default max hops")
	assert.Equal(t, DefaultTransportRetries, cfg.TransportRetries, "default transport retries")
	assert.Equal(t, DefaultCommandTimeout, cfg.CommandTimeout, "default command timeout")
	assert.False(t, cfg.LooseRedirects, "heuristic off unless configured")
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err, "missing file")
}

func TestConfigAliasTableIdentityFallback(t *testing.T) {
	cfg := &Config{Nodes: []string{"127.0.0.1:7001"}}
	addrs, err := cfg.addrs()
	require.NoError(t, err, "addrs")

	table, err := cfg.aliasTable(addrs)
	require.NoError(t, err, "aliasTable")
	assert.Equal(t, AliasTable{"127.0.0.1:7001": {Host: "127.0.0.1", Port: 7001}}, table, "identity aliases")
}

func TestConfigAliasTableBadAddress(t *testing.T) {
	cfg := &Config{Aliases: map[string]string{"node-1:6379": "bogus"}}
	_, err := cfg.aliasTable(nil)
	assert.Error(t, err, "bad alias target")
}
