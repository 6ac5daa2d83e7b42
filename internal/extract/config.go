package extract

import (
	"fmt"
	"time"

	"github.com/rcliao/convo-memory/internal/chunker"
	"github.com/rcliao/convo-memory/internal/model"
	"github.com/rcliao/convo-memory/internal/schema"
)

// Config is the immutable configuration for one extraction run. It is passed
// explicitly to every stage so concurrent runs with different settings can
// share a process.
type Config struct {
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float64 // 0 for reproducible runs

	ChunkSize       int
	ConfidenceFloor float64
	Timeout         time.Duration // per oracle call
	Workers         int           // concurrent oracle calls

	// BestEffort records failed chunks in the run report and proceeds with
	// the rest instead of aborting on the first chunk error.
	BestEffort bool
}

// DefaultWorkers bounds concurrent oracle calls to stay under rate limits.
const DefaultWorkers = 2

// DefaultConfig returns the standard extraction configuration.
func DefaultConfig() Config {
	return Config{
		ChunkSize:       chunker.DefaultSize,
		ConfidenceFloor: schema.DefaultConfidenceFloor,
		Workers:         DefaultWorkers,
	}
}

func (c Config) validate() error {
	if c.ChunkSize <= 0 {
		return &model.ConfigError{Reason: fmt.Sprintf("chunk size must be positive, got %d", c.ChunkSize)}
	}
	if c.ConfidenceFloor < 0 || c.ConfidenceFloor > 1 {
		return &model.ConfigError{Reason: fmt.Sprintf("confidence floor must be in [0,1], got %v", c.ConfidenceFloor)}
	}
	if c.Workers < 0 {
		return &model.ConfigError{Reason: fmt.Sprintf("workers must be non-negative, got %d", c.Workers)}
	}
	return nil
}
