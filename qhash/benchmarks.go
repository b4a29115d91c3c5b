// =======================
// qhash/benchmarks.go
// =======================

package qhash

import (
	"fmt"
	"io"
	"time"
)

// BenchmarkInfo holds the throughput of one worker-count run.
type BenchmarkInfo struct {
	Workers        int           `json:"workers"`
	Duration       time.Duration `json:"duration"`
	TotalGenerated uint64        `json:"total_generated"`
	Throughput     float64       `json:"digests_per_second"`
	PeakRate       float64       `json:"peak_rate"`
	HitRate        float64       `json:"hit_rate"`
	Rotations      uint64        `json:"rotations"`
}

// BenchmarkEngine runs a fresh engine per worker count for d and reports
// throughput.
func BenchmarkEngine(base Config, workerCounts []int, d time.Duration) ([]BenchmarkInfo, error) {
	if d <= 0 {
		return nil, fmt.Errorf("benchmark duration must be positive, got %s", d)
	}
	results := make([]BenchmarkInfo, 0, len(workerCounts))

	for _, n := range workerCounts {
		cfg := base
		cfg.WorkerCount = n
		e, err := New(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create engine for %d workers: %w", n, err)
		}

		start := time.Now()
		e.Start()
		time.Sleep(d)
		e.Stop()
		elapsed := time.Since(start)

		s := e.GetStatistics()
		results = append(results, BenchmarkInfo{
			Workers:        n,
			Duration:       elapsed,
			TotalGenerated: s.TotalGenerated,
			Throughput:     float64(s.TotalGenerated) / elapsed.Seconds(),
			PeakRate:       s.PeakRate,
			HitRate:        s.HitRate,
			Rotations:      s.Rotations,
		})
	}

	return results, nil
}

// PrintBenchmarkResults displays benchmark results in a formatted table
func PrintBenchmarkResults(w io.Writer, results []BenchmarkInfo) {
	fmt.Fprintln(w, "QHASH Engine Throughput")
	fmt.Fprintln(w, "=======================")
	fmt.Fprintf(w, "%-8s | %-12s | %-12s | %-14s | %-9s | %-9s\n",
		"Workers", "Duration", "Generated", "Digests/s", "Hit rate", "Rotations")
	fmt.Fprintln(w, "---------|--------------|--------------|----------------|-----------|----------")

	for _, r := range results {
		fmt.Fprintf(w, "%-8d | %-12s | %-12d | %-14.0f | %-9.4f | %-9d\n",
			r.Workers,
			r.Duration.Round(time.Millisecond).String(),
			r.TotalGenerated,
			r.Throughput,
			r.HitRate,
			r.Rotations)
	}
}
