// Package config loads the yaml configuration file. Every setting has a
// default; the file and individual keys are optional, and CLI flags
// override whatever is loaded.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/harmon-data/harmon/internal/remote"
)

// Config is the full configuration surface.
type Config struct {
	// DatabasePath locates the SQLite database file.
	DatabasePath string `yaml:"database_path"`

	// Remote bounds adapter traffic.
	Remote RemoteConfig `yaml:"remote"`

	// Cluster tunes the disambiguation engine.
	Cluster ClusterConfig `yaml:"cluster"`
}

// RemoteConfig bounds outbound calls to store platforms.
type RemoteConfig struct {
	// TimeoutSeconds caps each HTTP request.
	TimeoutSeconds int `yaml:"timeout_seconds"`

	// RequestsPerSecond limits each adapter's sustained call rate.
	RequestsPerSecond float64 `yaml:"requests_per_second"`

	// Burst is the rate limiter's burst budget.
	Burst int `yaml:"burst"`
}

// ClusterConfig tunes fuzzy clustering.
type ClusterConfig struct {
	// TopN caps how many variations one group may hold.
	TopN int `yaml:"top_n"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		DatabasePath: "harmon.db",
		Remote: RemoteConfig{
			TimeoutSeconds:    int(remote.DefaultTimeout / time.Second),
			RequestsPerSecond: remote.DefaultRequestsPerSecond,
			Burst:             remote.DefaultBurst,
		},
		Cluster: ClusterConfig{
			TopN: 50,
		},
	}
}

// Load reads a yaml config file over the defaults. A missing file is not
// an error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.DatabasePath == "" {
		return errors.New("database_path must not be empty")
	}
	if c.Remote.TimeoutSeconds < 0 {
		return errors.New("remote.timeout_seconds must not be negative")
	}
	if c.Remote.RequestsPerSecond < 0 {
		return errors.New("remote.requests_per_second must not be negative")
	}
	if c.Cluster.TopN < 0 {
		return errors.New("cluster.top_n must not be negative")
	}
	return nil
}

// RemoteOptions translates the remote section into adapter options.
func (c Config) RemoteOptions() remote.Options {
	return remote.Options{
		Timeout:           time.Duration(c.Remote.TimeoutSeconds) * time.Second,
		RequestsPerSecond: c.Remote.RequestsPerSecond,
		Burst:             c.Remote.Burst,
	}
}
