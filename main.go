// main.go
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"chaosguard/qhash"
)

func main() {
	cfgPath := flag.String("config", "", "JSON config file")
	gen := flag.Bool("generate", false, "Generate a digest for -input")
	in := flag.String("input", "", "Input data to digest")
	trap := flag.String("trap", "", "Seed for a batch of decoy digests")
	count := flag.Int("count", 10, "Number of decoys for -trap")
	challenge := flag.String("challenge", "", "Seed for a challenge bundle")
	run := flag.Duration("run", 0, "Run the worker pool for this long and print statistics")
	bench := flag.Duration("bench", 0, "Benchmark each -bench-workers count for this long")
	benchWorkers := flag.String("bench-workers", "1,8,64", "Comma separated worker counts for -bench")
	graphics := flag.Bool("graphics", false, "Run the worker pool with the live dashboard")
	workers := flag.Int("workers", -1, "Worker count (-1 keeps the config value)")
	cacheCap := flag.Int("cache", -1, "Dynamic cache capacity (-1 keeps the config value)")
	asJSON := flag.Bool("json", false, "Print statistics as JSON")
	flag.Parse()

	cfg := qhash.DefaultConfig()
	if *cfgPath != "" {
		c, err := qhash.LoadConfig(*cfgPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		cfg = c
	}
	if *workers >= 0 {
		cfg.WorkerCount = *workers
	}
	if *cacheCap >= 0 {
		cfg.CacheCapacity = *cacheCap
	}
	if *graphics {
		cfg.DisplayEnabled = true
	}

	if *bench > 0 {
		counts, err := parseCounts(*benchWorkers)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid -bench-workers: %v\n", err)
			os.Exit(1)
		}
		results, err := qhash.BenchmarkEngine(cfg, counts, *bench)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Benchmark failed: %v\n", err)
			os.Exit(1)
		}
		qhash.PrintBenchmarkResults(os.Stdout, results)
		return
	}

	engine, err := qhash.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize engine: %v\n", err)
		os.Exit(1)
	}

	switch {
	case *gen:
		if *in == "" {
			fmt.Fprintf(os.Stderr, "Error: -input required for -generate\n")
			flag.Usage()
			os.Exit(1)
		}
		fmt.Printf("QHASH [%s]\n%s\n", strings.Join(engine.Algorithms(), ","), engine.Generate(*in))

	case *trap != "":
		for _, d := range engine.HashTrap(*trap, *count) {
			fmt.Println(d)
		}

	case *challenge != "":
		labels := []string{"standard", "binary", "sha3", "blake2b", "lorenz"}
		for i, d := range engine.ChallengeMode(*challenge) {
			fmt.Printf("%-8s %s\n", labels[i], d)
		}

	case *graphics:
		engine.Start()
		err := runDashboard(engine)
		engine.Stop()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Graphics error: %v\n", err)
			os.Exit(1)
		}
		printStats(engine.GetStatistics(), *asJSON)

	case *run > 0:
		engine.Start()
		time.Sleep(*run)
		engine.Stop()
		printStats(engine.GetStatistics(), *asJSON)

	default:
		flag.Usage()
	}
}

func parseCounts(s string) ([]int, error) {
	var out []int
	for _, f := range strings.Split(s, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("bad worker count %q: %w", f, err)
		}
		if n < 0 {
			return nil, fmt.Errorf("negative worker count %d", n)
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no worker counts given")
	}
	return out, nil
}

func printStats(s qhash.Statistics, asJSON bool) {
	if asJSON {
		j, err := json.MarshalIndent(s, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "JSON encoding failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(j))
		return
	}
	fmt.Printf("generated: %d\nhits: %d  misses: %d  hit rate: %.4f\nrate: %.0f/s  peak: %.0f/s\nrotations: %d  cache: %d/%d\n",
		s.TotalGenerated, s.Hits, s.Misses, s.HitRate,
		s.RatePerSecond, s.PeakRate, s.Rotations, s.CacheSize, s.CacheCapacity)
}
