package main

import (
	"os"

	"github.com/sugawarayuuta/sonnet"
)

// Config is the tuning file tablebench loads before building a table —
// capacity is passed to the table constructor and cg_size becomes a
// WithCGSize option; the rest describes where the workload comes from.
type Config struct {
	Mode         string `json:"mode"`          // "map" or "multimap"
	Capacity     int    `json:"capacity"`
	CGSize       int    `json:"cg_size"`
	WorkloadPath string `json:"workload_path"` // sqlite3 file
	Table        string `json:"table"`         // table holding key/value columns
	KeyColumn    string `json:"key_column"`
	ValueColumn  string `json:"value_column"`
}

func loadConfig(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := sonnet.Unmarshal(raw, &cfg); err != nil {
		return Config{}, err
	}
	if cfg.KeyColumn == "" {
		cfg.KeyColumn = "k"
	}
	if cfg.ValueColumn == "" {
		cfg.ValueColumn = "v"
	}
	if cfg.Table == "" {
		cfg.Table = "workload"
	}
	return cfg, nil
}
