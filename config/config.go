package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/bmeg/kgload/log"
	"sigs.k8s.io/yaml"
)

// Neo4jConfig describes the connection to the target graph store.
type Neo4jConfig struct {
	URI      string
	User     string
	Password string
	Database string
	// Timeout is the per-request bound on store calls, in seconds.
	Timeout int
}

// Config describes the configuration for a kgload run.
type Config struct {
	Neo4j Neo4jConfig

	// SampleSize caps the number of distinct subjects admitted from a
	// source. Zero or negative means no sampling.
	SampleSize int

	// RandomSample switches the sampler from first-N to a seeded
	// reservoir.
	RandomSample bool

	// Seed for the reservoir sampler. Fixed by default so reruns with
	// identical parameters select the same statements.
	Seed int64

	// ChunkSize is the number of statements resolved and flushed as one
	// batch.
	ChunkSize int

	// BatchSize is the number of node/relationship rows sent to the
	// store per request.
	BatchSize int

	// MaxRetries bounds retry attempts for a failed store batch.
	MaxRetries int

	// OutputDir receives converted bulk-import files.
	OutputDir string

	// OverwriteOutput reuses plain filenames instead of suffixing each
	// run. Off by default; colliding runs silently clobber each other's
	// output when enabled.
	OverwriteOutput bool

	// MaxParseFailureRate is the fraction of malformed statements above
	// which the run exits non-zero.
	MaxParseFailureRate float64

	// MultiValueKeys lists property keys that accumulate values in
	// order instead of last-write-wins.
	MultiValueKeys []string

	Logger log.Logger
}

// DefaultConfig returns an instance of the default configuration.
func DefaultConfig() *Config {
	c := &Config{}
	c.Neo4j.URI = "bolt://localhost:7687"
	c.Neo4j.User = "neo4j"
	c.Neo4j.Password = "password"
	c.Neo4j.Database = "neo4j"
	c.Neo4j.Timeout = 120
	c.SampleSize = 0
	c.Seed = 42
	c.ChunkSize = 500
	c.BatchSize = 5000
	c.MaxRetries = 3
	c.OutputDir = "samples"
	c.MaxParseFailureRate = 0.5
	c.Logger = log.DefaultLoggerConfig()
	return c
}

// Timeout returns the store timeout as a duration.
func (c Neo4jConfig) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// Validate checks run parameters. Invalid sample/chunk settings are
// fatal at startup.
func (c *Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.ChunkSize)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries must not be negative, got %d", c.MaxRetries)
	}
	if c.MaxParseFailureRate < 0 || c.MaxParseFailureRate > 1 {
		return fmt.Errorf("max parse failure rate must be within [0,1], got %f", c.MaxParseFailureRate)
	}
	if c.Neo4j.URI == "" {
		return fmt.Errorf("store URI must not be empty")
	}
	return nil
}

// ParseConfig parses a YAML doc into the given Config instance.
func ParseConfig(raw []byte, conf *Config) error {
	return yaml.UnmarshalStrict(raw, conf)
}

// ParseConfigFile parses a config file, which is formatted in YAML,
// and returns a Config struct.
func ParseConfigFile(relpath string, conf *Config) error {
	if relpath == "" {
		return fmt.Errorf("config path is empty")
	}

	path, err := filepath.Abs(relpath)
	if err != nil {
		return err
	}

	source, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return ParseConfig(source, conf)
}

// LoadEnv overrides store connection settings from the environment,
// matching the variables the original workflow used.
func (c *Config) LoadEnv() {
	if v := os.Getenv("KGLOAD_NEO4J_URI"); v != "" {
		c.Neo4j.URI = v
	}
	if v := os.Getenv("KGLOAD_NEO4J_USER"); v != "" {
		c.Neo4j.User = v
	}
	if v := os.Getenv("KGLOAD_NEO4J_PASSWORD"); v != "" {
		c.Neo4j.Password = v
	}
	if v := os.Getenv("KGLOAD_NEO4J_DATABASE"); v != "" {
		c.Neo4j.Database = v
	}
	if v := os.Getenv("KGLOAD_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.BatchSize = n
		} else {
			log.Warningf("Ignoring KGLOAD_BATCH_SIZE=%q: %v", v, err)
		}
	}
}
