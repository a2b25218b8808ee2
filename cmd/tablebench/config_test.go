package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigFillsColumnDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.json")
	body := `{"mode":"multimap","capacity":1000,"cg_size":8,"workload_path":"workload.db"}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Mode != "multimap" || cfg.Capacity != 1000 || cfg.CGSize != 8 {
		t.Fatalf("cfg = %+v, want mode/capacity/cg_size from file", cfg)
	}
	if cfg.Table != "workload" || cfg.KeyColumn != "k" || cfg.ValueColumn != "v" {
		t.Fatalf("cfg = %+v, want default table/key/value column names", cfg)
	}
}

func TestLoadConfigRejectsMissingFile(t *testing.T) {
	if _, err := loadConfig(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("loadConfig on a missing file did not error")
	}
}
