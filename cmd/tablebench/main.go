// Command tablebench drives a statictable Map or MultiMap against a
// key/value workload loaded from a SQLite file, logging how long the
// insert and the lookup (or count) took and the resulting size and
// capacity.
package main

import (
	"os"
	"time"

	"github.com/vyasr/statictable/diag"
	"github.com/vyasr/statictable/hashfn"
	"github.com/vyasr/statictable/statictable"
)

func main() {
	if len(os.Args) < 2 {
		diag.DropError("usage", nil)
		diag.DropError("usage: tablebench <config.json>", nil)
		os.Exit(1)
	}

	cfg, err := loadConfig(os.Args[1])
	if err != nil {
		diag.DropError("load config", err)
		os.Exit(1)
	}

	keys, values, err := loadWorkload(cfg)
	if err != nil {
		diag.DropError("load workload", err)
		os.Exit(1)
	}
	diag.DropError("loaded "+itoa(len(keys))+" pairs from "+cfg.WorkloadPath, nil)

	hash := hashfn.Uint64[int64]

	switch cfg.Mode {
	case "multimap":
		err = runMultiMap(cfg, keys, values, hash)
	default:
		err = runMap(cfg, keys, values, hash)
	}
	if err != nil {
		diag.DropError("run", err)
		os.Exit(1)
	}
}

func runMap(cfg Config, keys, values []int64, hash func(int64) uint64) error {
	opts := []statictable.Option[int64, int64]{statictable.WithHash[int64, int64](hash)}
	if cfg.CGSize > 0 {
		opts = append(opts, statictable.WithCGSize[int64, int64](cfg.CGSize))
	}
	m, err := statictable.NewMap[int64, int64](cfg.Capacity, -1, -1, opts...)
	if err != nil {
		return err
	}

	start := time.Now()
	inserted := m.Insert(keys, values)
	insertElapsed := time.Since(start)

	out := make([]int64, len(keys))
	start = time.Now()
	m.Find(keys, out)
	findElapsed := time.Since(start)

	diag.DropError("inserted "+itoa64(inserted)+" in "+insertElapsed.String(), nil)
	diag.DropError("found "+itoa(len(keys))+" keys in "+findElapsed.String(), nil)
	diag.DropError("size="+itoa64(m.Size())+" capacity="+itoa(m.Capacity()), nil)
	return nil
}

func runMultiMap(cfg Config, keys, values []int64, hash func(int64) uint64) error {
	opts := []statictable.Option[int64, int64]{statictable.WithHash[int64, int64](hash)}
	if cfg.CGSize > 0 {
		opts = append(opts, statictable.WithCGSize[int64, int64](cfg.CGSize))
	}
	mm, err := statictable.NewMultiMap[int64, int64](cfg.Capacity, -1, -1, opts...)
	if err != nil {
		return err
	}

	start := time.Now()
	mm.Insert(keys, values)
	insertElapsed := time.Since(start)

	start = time.Now()
	matches := mm.Count(keys)
	countElapsed := time.Since(start)

	diag.DropError("inserted "+itoa(len(keys))+" in "+insertElapsed.String(), nil)
	diag.DropError("counted "+itoa64(matches)+" matches in "+countElapsed.String(), nil)
	diag.DropError("size="+itoa64(mm.GetSize())+" capacity="+itoa(mm.Capacity()), nil)
	return nil
}

func itoa(n int) string { return itoa64(uint64(n)) }

func itoa64(n uint64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
