package main

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// loadWorkload reads every (key, value) pair out of cfg's table, the same
// sql.Open("sqlite3", path) driver-registration idiom the arbitrage system
// used to load its trading pairs, repurposed here to supply a benchmark
// key/value stream instead.
func loadWorkload(cfg Config) (keys, values []int64, err error) {
	db, err := sql.Open("sqlite3", cfg.WorkloadPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open workload db: %w", err)
	}
	defer db.Close()

	rows, err := db.Query(fmt.Sprintf("SELECT %s, %s FROM %s", cfg.KeyColumn, cfg.ValueColumn, cfg.Table))
	if err != nil {
		return nil, nil, fmt.Errorf("query workload: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var k, v int64
		if err := rows.Scan(&k, &v); err != nil {
			return nil, nil, fmt.Errorf("scan workload row: %w", err)
		}
		keys = append(keys, k)
		values = append(values, v)
	}
	return keys, values, rows.Err()
}
