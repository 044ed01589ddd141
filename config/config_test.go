package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, "ETH", cfg.Bridge.ForeignChain)
	require.Equal(t, "depositaddr", cfg.Bridge.EscrowAccount)
	require.Equal(t, uint64(10), cfg.Bridge.MinStake)
	require.Equal(t, 1, cfg.Channel.LocalIndex())
	require.Equal(t, 10, cfg.Channel.MirrorRetries)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := []byte("bridge:\n  foreign_chain: FAB\n  min_stake: 25\nchannel:\n  local_participant: 1\n")
	require.NoError(t, os.WriteFile(path, body, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "FAB", cfg.Bridge.ForeignChain)
	require.Equal(t, uint64(25), cfg.Bridge.MinStake)
	require.Equal(t, 0, cfg.Channel.LocalIndex())
	// untouched keys keep their defaults
	require.Equal(t, "depositaddr", cfg.Bridge.EscrowAccount)
}

func TestLoadRejectsBadParticipant(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("channel:\n  local_participant: 3\n"), 0o600))

	_, err := Load(path)
	require.ErrorContains(t, err, "local_participant")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
