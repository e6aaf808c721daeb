package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	NodeID     string `yaml:"node_id"`
	RaftAddr   string `yaml:"raft_addr"`
	RaftData   string `yaml:"raft_data"`
	RaftLeader bool   `yaml:"raft_leader"`
	GRPCAddr   string `yaml:"grpc_addr"`
	HTTPAddr   string `yaml:"http_addr"`
	MandiAddr  string `yaml:"mandi_addr"`
	LogLevel   string `yaml:"log_level"`

	Autocomplete Autocomplete `yaml:"autocomplete"`
}

// Autocomplete tunes the indexes served by a node.
type Autocomplete struct {
	RecentSize  int           `yaml:"recent_size"`
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
}

func DefaultAutocomplete() Autocomplete {
	return Autocomplete{
		RecentSize:  100,
		MaxAttempts: 64,
		BaseDelay:   time.Millisecond,
		MaxDelay:    50 * time.Millisecond,
	}
}

// RetryAttempts converts MaxAttempts to a retry bound; a negative value
// means retry until the request context ends.
func (a Autocomplete) RetryAttempts() int {
	if a.MaxAttempts < 0 {
		return 0
	}
	return a.MaxAttempts
}

// LoadConfig loads configuration from a YAML file if path is provided,
// otherwise it falls back to environment variables.
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	// If path is provided and file exists, load from YAML
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			// If path was explicitly provided but file doesn't exist, return error
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Environment variables override the file
	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.RaftData == "" {
		cfg.RaftData = fmt.Sprintf("./pyaz/%s", cfg.NodeID)
	}
	if cfg.MandiAddr == "" {
		cfg.MandiAddr = "http://127.0.0.1:7000"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	defaults := DefaultAutocomplete()
	if cfg.Autocomplete.RecentSize == 0 {
		cfg.Autocomplete.RecentSize = defaults.RecentSize
	}
	if cfg.Autocomplete.MaxAttempts == 0 {
		cfg.Autocomplete.MaxAttempts = defaults.MaxAttempts
	}
	if cfg.Autocomplete.BaseDelay == 0 {
		cfg.Autocomplete.BaseDelay = defaults.BaseDelay
	}
	if cfg.Autocomplete.MaxDelay == 0 {
		cfg.Autocomplete.MaxDelay = defaults.MaxDelay
	}
}

// Validate checks the fields a node cannot start without.
func (cfg *Config) Validate() error {
	if cfg.NodeID == "" {
		return fmt.Errorf("NODE_ID is required (set via environment or config file)")
	}
	if cfg.RaftAddr == "" {
		return fmt.Errorf("RAFT_ADDR is required (set via environment or config file)")
	}
	if cfg.GRPCAddr == "" {
		return fmt.Errorf("GRPC_ADDR is required (set via environment or config file)")
	}
	if cfg.HTTPAddr == "" {
		return fmt.Errorf("HTTP_ADDR is required (set via environment or config file)")
	}
	if cfg.Autocomplete.RecentSize < 0 {
		return fmt.Errorf("autocomplete.recent_size must not be negative")
	}
	return nil
}

// applyEnvOverrides allows environment variables to override YAML config values
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("NODE_ID"); v != "" {
		cfg.NodeID = v
	}
	if v := os.Getenv("RAFT_ADDR"); v != "" {
		cfg.RaftAddr = v
	}
	if v := os.Getenv("RAFT_DATA"); v != "" {
		cfg.RaftData = v
	}
	if v := os.Getenv("GRPC_ADDR"); v != "" {
		cfg.GRPCAddr = v
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("MANDI_ADDR"); v != "" {
		cfg.MandiAddr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("RAFT_LEADER"); v != "" {
		leader, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid RAFT_LEADER value: %w", err)
		}
		cfg.RaftLeader = leader
	}
	if v := os.Getenv("AC_RECENT_SIZE"); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid AC_RECENT_SIZE value: %w", err)
		}
		cfg.Autocomplete.RecentSize = size
	}
	if v := os.Getenv("AC_MAX_ATTEMPTS"); v != "" {
		attempts, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid AC_MAX_ATTEMPTS value: %w", err)
		}
		cfg.Autocomplete.MaxAttempts = attempts
	}
	return nil
}
