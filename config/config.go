// Package config loads the node's TOML configuration file.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Config is the full node configuration.
type Config struct {
	NodeBasic   NodeBasic   `toml:"node_basic"`
	Query       Query       `toml:"query"`
	Storage     Storage     `toml:"storage"`
	BloomFilter BloomFilter `toml:"bloom_filter"`
	Cluster     Cluster     `toml:"cluster"`
	Log         Log         `toml:"log"`
}

// NodeBasic is the node's identity within the cluster.
type NodeBasic struct {
	NodeID uint64 `toml:"node_id"`
}

// Query holds the write path's client-side deadlines.
type Query struct {
	WriteTimeoutMS uint64 `toml:"write_timeout_ms"`
}

// Storage locates the file root for TSM files and downloads.
type Storage struct {
	Path string `toml:"path"`
}

// BloomFilter sizes the per-file series bloom filter.
type BloomFilter struct {
	Bits uint `toml:"bits"`
}

// Cluster holds this node's listen addresses.
type Cluster struct {
	RaftBindAddr    string `toml:"raft_bind_addr"`
	MetricsBindAddr string `toml:"metrics_bind_addr"`
}

// Log selects the minimum emitted level: debug, info, warn, or error.
type Log struct {
	Level string `toml:"level"`
}

// Default returns the configuration used when a key is absent from the
// file.
func Default() Config {
	return Config{
		NodeBasic:   NodeBasic{NodeID: 1},
		Query:       Query{WriteTimeoutMS: 3000},
		Storage:     Storage{Path: "data"},
		BloomFilter: BloomFilter{Bits: 1 << 20},
		Cluster: Cluster{
			RaftBindAddr:    "127.0.0.1:8901",
			MetricsBindAddr: "127.0.0.1:8902",
		},
		Log: Log{Level: "info"},
	}
}

// Load reads path into the default configuration and validates it.
func Load(path string) (Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations a node cannot run with.
func (c *Config) Validate() error {
	if c.NodeBasic.NodeID == 0 {
		return fmt.Errorf("config: node_basic.node_id must be non-zero")
	}
	if c.Storage.Path == "" {
		return fmt.Errorf("config: storage.path must be set")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log.level %q", c.Log.Level)
	}
	return nil
}
