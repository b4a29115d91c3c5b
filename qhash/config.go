// =======================
// qhash/config.go
// =======================

package qhash

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"runtime"
	"time"
)

// Config holds every engine option. The zero value is not usable; start
// from DefaultConfig.
type Config struct {
	CacheCapacity        int    `json:"cache_capacity"`
	WorkerCount          int    `json:"worker_count"`
	RotationInterval     int    `json:"rotation_interval_seconds"`    // 0 disables time-based rotation
	RotationEveryN       int    `json:"rotation_every_n_generations"` // 0 disables count-based rotation
	LayerBounds          [2]int `json:"obfuscation_layer_bounds"`
	RecentBufferCapacity int    `json:"recent_pattern_buffer_capacity"`
	DisplayEnabled       bool   `json:"display_enabled"`

	Algorithms       []string `json:"algorithms"`
	OutputLength     int      `json:"output_length"`
	StopTimeoutMS    int      `json:"stop_timeout_ms"`
	WorkerPauseUS    int      `json:"worker_pause_us"`
	PoolSize         int      `json:"entropy_pool_size"`
	PrecomputedSeeds []string `json:"precomputed_seeds"`

	Logger *log.Logger `json:"-"`
}

// DefaultAlgorithms mixes a 256-bit and 512-bit member of three families.
var DefaultAlgorithms = []string{"sha256", "sha3-256", "sha512", "blake2b-512"}

// DefaultSeeds are the well-known inputs served from the precomputed table.
var DefaultSeeds = []string{
	"admin", "root", "password", "123456", "12345678", "qwerty", "letmein",
	"welcome", "changeme", "administrator", "guest", "test", "default",
	"master", "secret", "passw0rd", "toor", "login", "user", "support",
	"abc123", "iloveyou", "monkey", "dragon", "sunshine", "trustno1",
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		CacheCapacity:        100_000,
		WorkerCount:          runtime.NumCPU(),
		RotationInterval:     30,
		RotationEveryN:       1000,
		LayerBounds:          [2]int{1, 12},
		RecentBufferCapacity: 5000,
		DisplayEnabled:       false,
		Algorithms:           append([]string(nil), DefaultAlgorithms...),
		OutputLength:         64,
		StopTimeoutMS:        5000,
		WorkerPauseUS:        100,
		PoolSize:             DefaultPoolSize,
		PrecomputedSeeds:     append([]string(nil), DefaultSeeds...),
	}
}

// Validate checks option ranges.
func (c *Config) Validate() error {
	if c.CacheCapacity < 0 {
		return fmt.Errorf("cache_capacity must be >= 0, got %d", c.CacheCapacity)
	}
	if c.WorkerCount < 0 || c.WorkerCount > 4096 {
		return fmt.Errorf("worker_count out of range [0,4096]: %d", c.WorkerCount)
	}
	if c.RotationInterval < 0 {
		return fmt.Errorf("rotation_interval_seconds must be >= 0, got %d", c.RotationInterval)
	}
	if c.RotationEveryN < 0 {
		return fmt.Errorf("rotation_every_n_generations must be >= 0, got %d", c.RotationEveryN)
	}
	lo, hi := c.LayerBounds[0], c.LayerBounds[1]
	if lo < 1 || hi < lo || hi > MaxLayers {
		return fmt.Errorf("obfuscation_layer_bounds invalid: [%d,%d] (want 1 <= min <= max <= %d)", lo, hi, MaxLayers)
	}
	if c.RecentBufferCapacity < 1 {
		return fmt.Errorf("recent_pattern_buffer_capacity must be >= 1, got %d", c.RecentBufferCapacity)
	}
	if n := len(c.Algorithms); n != 0 && (n < MinAlgorithms || n > MaxAlgorithms) {
		return fmt.Errorf("algorithms: need %d..%d entries, got %d", MinAlgorithms, MaxAlgorithms, n)
	}
	if c.OutputLength < 16 || c.OutputLength > 512 {
		return fmt.Errorf("output_length out of range [16,512]: %d", c.OutputLength)
	}
	if c.StopTimeoutMS < 1 {
		return fmt.Errorf("stop_timeout_ms must be >= 1, got %d", c.StopTimeoutMS)
	}
	if c.WorkerPauseUS < 0 {
		return fmt.Errorf("worker_pause_us must be >= 0, got %d", c.WorkerPauseUS)
	}
	if c.PoolSize < MinPoolSize {
		return fmt.Errorf("entropy_pool_size must be >= %d, got %d", MinPoolSize, c.PoolSize)
	}
	return nil
}

func (c *Config) stopTimeout() time.Duration {
	return time.Duration(c.StopTimeoutMS) * time.Millisecond
}

func (c *Config) workerPause() time.Duration {
	return time.Duration(c.WorkerPauseUS) * time.Microsecond
}

func (c *Config) rotationInterval() time.Duration {
	return time.Duration(c.RotationInterval) * time.Second
}

// LoadConfig reads a JSON config file on top of DefaultConfig.
// A missing file yields the defaults.
func LoadConfig(filename string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file '%s': %w", filename, err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file '%s': %w", filename, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config file '%s': %w", filename, err)
	}
	return cfg, nil
}
