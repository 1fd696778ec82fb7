// Package daemon holds the fleet daemon's configuration: topology size,
// GPU mix, bidding policy, dataset source, and the ambient API/metrics/
// storage surface — loaded from a TOML file the way the teacher loads
// its own daemon config, via github.com/BurntSushi/toml.
package daemon

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/plebiscito-net/plebiscito/internal/domain"
)

// APIConfig controls the HTTP surface (internal/api).
type APIConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// TopologyConfig controls the fleet's size and logical adjacency.
type TopologyConfig struct {
	NumNodes int    `toml:"num_nodes"`
	Kind     string `toml:"kind"` // not read: the controller always builds a complete topology; no matrix topology is loaded
}

// BiddingConfig controls the per-node bidding policy.
type BiddingConfig struct {
	Utility   string  `toml:"utility"` // one of domain.Utility's String() values
	Alpha     float64 `toml:"alpha"`
	Decrement float64 `toml:"decrement"`
	FGD       bool    `toml:"fgd"`
}

// DatasetConfig controls job-template sampling.
type DatasetConfig struct {
	StatsPath string `toml:"stats_path"`
	TotalJobs int    `toml:"total_jobs"`
	MinLayers int    `toml:"min_layers"`
	MaxLayers int    `toml:"max_layers"`
}

// MetricsConfig controls the Prometheus surface.
type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
}

// StorageConfig controls sqlite-backed result persistence.
type StorageConfig struct {
	Path string `toml:"path"`
}

// Config is the fleet daemon's complete configuration.
type Config struct {
	API      APIConfig      `toml:"api"`
	Topology TopologyConfig `toml:"topology"`
	Bidding  BiddingConfig  `toml:"bidding"`
	Dataset  DatasetConfig  `toml:"dataset"`
	Metrics  MetricsConfig  `toml:"metrics"`
	Storage  StorageConfig  `toml:"storage"`
}

// DefaultConfig returns the daemon's defaults: a ten-node complete
// topology, LGF bidding, and no FGD.
func DefaultConfig() Config {
	return Config{
		API:      APIConfig{Host: "127.0.0.1", Port: 9601},
		Topology: TopologyConfig{NumNodes: 10, Kind: "complete"},
		Bidding:  BiddingConfig{Utility: "LGF", Alpha: 0, Decrement: 0.00001, FGD: false},
		Dataset:  DatasetConfig{StatsPath: "dataset_stat.csv", TotalJobs: 100, MinLayers: 3, MaxLayers: 6},
		Metrics:  MetricsConfig{Enabled: true},
		Storage:  StorageConfig{Path: "plebiscito.db"},
	}
}

// Load reads a TOML config file, filling in any field a file omits from
// DefaultConfig.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("daemon: decode config %s: %w", path, err)
	}
	return cfg, nil
}

// ResolveUtility resolves the configured utility name to a domain.Utility,
// defaulting to LGF on an unrecognized name.
func (c BiddingConfig) ResolveUtility() domain.Utility {
	switch c.Utility {
	case "SGF":
		return domain.SGF
	case "SPEEDUP":
		return domain.SPEEDUP
	case "SPEEDUPV2":
		return domain.SPEEDUPV2
	case "UTIL":
		return domain.UTIL
	case "STEFANO":
		return domain.STEFANO
	case "ALPHA_GPU_CPU":
		return domain.ALPHA_GPU_CPU
	case "ALPHA_GPU_BW":
		return domain.ALPHA_GPU_BW
	case "FGD":
		return domain.FGD
	default:
		return domain.LGF
	}
}
