// Package config loads node configuration from a JSON file with
// MONCHAIN_* environment overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"

	"github.com/tolelom/monchain/crypto"
)

// Storage backends.
const (
	BackendLevelDB = "leveldb"
	BackendRedis   = "redis"
	BackendSQLite  = "sqlite"
)

// GenesisConfig describes the chain's initial block.
type GenesisConfig struct {
	ChainID string `json:"chain_id" env:"MONCHAIN_CHAIN_ID"`
}

// StorageConfig selects the key-value backend for state and blocks.
type StorageConfig struct {
	Backend        string `json:"backend"         env:"MONCHAIN_STORAGE_BACKEND"`
	RedisAddr      string `json:"redis_addr"      env:"MONCHAIN_REDIS_ADDR"`
	RedisNamespace string `json:"redis_namespace" env:"MONCHAIN_REDIS_NAMESPACE"`
	SQLitePath     string `json:"sqlite_path"     env:"MONCHAIN_SQLITE_PATH"`
}

// Config holds all node configuration.
type Config struct {
	NodeID          string        `json:"node_id"           env:"MONCHAIN_NODE_ID"`
	DataDir         string        `json:"data_dir"          env:"MONCHAIN_DATA_DIR"`
	RPCPort         int           `json:"rpc_port"          env:"MONCHAIN_RPC_PORT"`
	RPCAuthToken    string        `json:"rpc_auth_token"    env:"MONCHAIN_RPC_AUTH_TOKEN"`
	MaxBlockTxs     int           `json:"max_block_txs"     env:"MONCHAIN_MAX_BLOCK_TXS"` // 0 → 500
	BlockIntervalMs int           `json:"block_interval_ms" env:"MONCHAIN_BLOCK_INTERVAL_MS"`
	Validators      []string      `json:"validators"        env:"MONCHAIN_VALIDATORS" envSeparator:","`
	Arbiter         string        `json:"arbiter"           env:"MONCHAIN_ARBITER"` // pubkey hex of the trusted arbiter
	Storage         StorageConfig `json:"storage"`
	Genesis         GenesisConfig `json:"genesis"`
}

// DefaultConfig returns a single-node development configuration.
func DefaultConfig() *Config {
	return &Config{
		NodeID:          "node0",
		DataDir:         "./data",
		RPCPort:         8545,
		MaxBlockTxs:     500,
		BlockIntervalMs: 2000,
		Storage:         StorageConfig{Backend: BackendLevelDB},
		Genesis:         GenesisConfig{ChainID: "monchain-dev"},
	}
}

// Load reads a JSON config file from path on top of the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides cfg with any MONCHAIN_* variables that are set.
func ApplyEnv(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Save writes the config to path as formatted JSON.
func Save(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate reports configuration that would stop the node from starting.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendLevelDB:
	case BackendRedis:
		if c.Storage.RedisAddr == "" {
			return fmt.Errorf("storage: redis backend needs redis_addr")
		}
	case BackendSQLite:
	default:
		return fmt.Errorf("storage: unknown backend %q", c.Storage.Backend)
	}
	if c.Arbiter != "" {
		if _, err := crypto.PubKeyFromHex(c.Arbiter); err != nil {
			return fmt.Errorf("arbiter: %w", err)
		}
	}
	for i, v := range c.Validators {
		if _, err := crypto.PubKeyFromHex(v); err != nil {
			return fmt.Errorf("validators[%d]: %w", i, err)
		}
	}
	if c.Genesis.ChainID == "" {
		return fmt.Errorf("genesis: chain_id is required")
	}
	return nil
}
