package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Storage backends accepted by StorageBackend.
const (
	BackendMemory  = "memory"
	BackendLevelDB = "leveldb"
	BackendBolt    = "bolt"
)

// Ledger modes accepted by LedgerMode.
const (
	LedgerSimulated = "simulated"
	LedgerNode      = "node"
)

type Config struct {
	DataDir        string `toml:"DataDir"`
	StorageBackend string `toml:"StorageBackend"`
	LedgerMode     string `toml:"LedgerMode"`
	NodeURL        string `toml:"NodeURL"`
	NodeAuthToken  string `toml:"NodeAuthToken"`
	Environment    string `toml:"Environment"`
	LogFile        string `toml:"LogFile"`
	LogMaxSizeMB   int    `toml:"LogMaxSizeMB"`
	LogMaxBackups  int    `toml:"LogMaxBackups"`
}

// Load loads the configuration from the given path, creating a default file
// on first run.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./escrowd-data"
	}
	if strings.TrimSpace(cfg.StorageBackend) == "" {
		cfg.StorageBackend = BackendLevelDB
	}
	if strings.TrimSpace(cfg.LedgerMode) == "" {
		cfg.LedgerMode = LedgerSimulated
	}
}

// Validate checks the configuration for internally inconsistent settings.
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case BackendMemory, BackendLevelDB, BackendBolt:
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.StorageBackend)
	}
	switch c.LedgerMode {
	case LedgerSimulated:
	case LedgerNode:
		if strings.TrimSpace(c.NodeURL) == "" {
			return fmt.Errorf("config: NodeURL is required when LedgerMode is %q", LedgerNode)
		}
	default:
		return fmt.Errorf("config: unknown ledger mode %q", c.LedgerMode)
	}
	return nil
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	applyDefaults(cfg)
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
