package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValid(t *testing.T) {
	conf := DefaultConfig()
	assert.NoError(t, conf.Validate())
	assert.Equal(t, "bolt://localhost:7687", conf.Neo4j.URI)
	assert.Equal(t, 500, conf.ChunkSize)
	assert.Equal(t, 120*time.Second, conf.Neo4j.TimeoutDuration())
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name  string
		edit  func(*Config)
		valid bool
	}{
		{"zero chunk size", func(c *Config) { c.ChunkSize = 0 }, false},
		{"zero batch size", func(c *Config) { c.BatchSize = 0 }, false},
		{"negative retries", func(c *Config) { c.MaxRetries = -1 }, false},
		{"zero retries", func(c *Config) { c.MaxRetries = 0 }, true},
		{"failure rate above one", func(c *Config) { c.MaxParseFailureRate = 1.5 }, false},
		{"empty uri", func(c *Config) { c.Neo4j.URI = "" }, false},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			conf := DefaultConfig()
			tt.edit(conf)
			err := conf.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestParseConfig(t *testing.T) {
	conf := DefaultConfig()
	raw := []byte(`
Neo4j:
  URI: bolt://db.internal:7687
  User: loader
ChunkSize: 100
MultiValueKeys:
  - tag
  - alias
`)
	require.NoError(t, ParseConfig(raw, conf))
	assert.Equal(t, "bolt://db.internal:7687", conf.Neo4j.URI)
	assert.Equal(t, "loader", conf.Neo4j.User)
	assert.Equal(t, 100, conf.ChunkSize)
	assert.Equal(t, []string{"tag", "alias"}, conf.MultiValueKeys)
	// Untouched keys keep their defaults.
	assert.Equal(t, 5000, conf.BatchSize)
}

func TestParseConfigRejectsUnknownKeys(t *testing.T) {
	conf := DefaultConfig()
	err := ParseConfig([]byte("ChunkSze: 100\n"), conf)
	assert.Error(t, err, "misspelled keys fail instead of being ignored")
}

func TestParseConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kgload.yml")
	require.NoError(t, os.WriteFile(path, []byte("ChunkSize: 7\n"), 0644))

	conf := DefaultConfig()
	require.NoError(t, ParseConfigFile(path, conf))
	assert.Equal(t, 7, conf.ChunkSize)

	assert.Error(t, ParseConfigFile("", conf))
	assert.Error(t, ParseConfigFile(filepath.Join(t.TempDir(), "missing.yml"), conf))
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("KGLOAD_NEO4J_URI", "bolt://env:7687")
	t.Setenv("KGLOAD_NEO4J_PASSWORD", "hunter2")
	t.Setenv("KGLOAD_BATCH_SIZE", "250")

	conf := DefaultConfig()
	conf.LoadEnv()
	assert.Equal(t, "bolt://env:7687", conf.Neo4j.URI)
	assert.Equal(t, "hunter2", conf.Neo4j.Password)
	assert.Equal(t, 250, conf.BatchSize)
	assert.Equal(t, "neo4j", conf.Neo4j.User, "unset variables leave defaults alone")
}

func TestLoadEnvBadNumber(t *testing.T) {
	t.Setenv("KGLOAD_BATCH_SIZE", "lots")
	conf := DefaultConfig()
	conf.LoadEnv()
	assert.Equal(t, 5000, conf.BatchSize)
}
