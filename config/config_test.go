package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, BackendLevelDB, cfg.StorageBackend)
	require.Equal(t, LedgerSimulated, cfg.LedgerMode)
	require.FileExists(t, path)

	// Reloading the generated file parses cleanly.
	again, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, again)
}

func TestLoadExplicitFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
DataDir = "/var/lib/escrowd"
StorageBackend = "bolt"
LedgerMode = "node"
NodeURL = "http://127.0.0.1:8545"
Environment = "staging"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/var/lib/escrowd", cfg.DataDir)
	require.Equal(t, BackendBolt, cfg.StorageBackend)
	require.Equal(t, LedgerNode, cfg.LedgerMode)
	require.Equal(t, "staging", cfg.Environment)
}

func TestValidateRejectsBadSettings(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"unknown backend", Config{StorageBackend: "postgres", LedgerMode: LedgerSimulated}},
		{"unknown ledger mode", Config{StorageBackend: BackendMemory, LedgerMode: "mainnet"}},
		{"node mode without url", Config{StorageBackend: BackendMemory, LedgerMode: LedgerNode}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Error(t, tc.cfg.Validate())
		})
	}
}
