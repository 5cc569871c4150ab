package config

import (
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/cuemby/catena/pkg/types"
	"gopkg.in/yaml.v3"
)

// Store engines
const (
	EngineBolt   = "bolt"
	EngineBadger = "badger"
)

// Config holds the settings of a Catena server process.
// It is built once at startup and passed to the components that need it.
type Config struct {
	// EncryptionKey is the passphrase protecting stored SSH keys
	EncryptionKey string `yaml:"encryption_key"`
	// BaseImage is the VM image used for nodes unless a cloud overrides it
	BaseImage string `yaml:"base_image"`

	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	DataDir     string `yaml:"data_dir"`
	StoreEngine string `yaml:"store_engine"`

	PlaybookDir string `yaml:"playbook_dir"`
	SSHUser     string `yaml:"ssh_user"`

	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`

	NATSURL string `yaml:"nats_url"`
	Trace   bool   `yaml:"trace"`

	CompensateOnFailure bool   `yaml:"compensate_on_failure"`
	Owner               string `yaml:"owner"`
}

// Default returns a configuration populated with default values
func Default() *Config {
	return &Config{
		BaseImage:   "Catena",
		Host:        "0.0.0.0",
		Port:        1989,
		DataDir:     "./catena-data",
		StoreEngine: EngineBolt,
		PlaybookDir: "./playbooks",
		SSHUser:     "ubuntu",
		LogLevel:    "info",
		Owner:       "admin",
	}
}

// Load reads a YAML configuration file on top of the defaults.
// An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// Validate checks that required settings are present
func (c *Config) Validate() error {
	if len(c.EncryptionKey) < 4 {
		return fmt.Errorf("%w: encryption_key must be at least 4 characters", types.ErrConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port %d", types.ErrConfig, c.Port)
	}
	switch c.StoreEngine {
	case EngineBolt, EngineBadger:
	default:
		return fmt.Errorf("%w: unknown store engine %q", types.ErrConfig, c.StoreEngine)
	}
	if c.DataDir == "" {
		return fmt.Errorf("%w: data_dir is required", types.ErrConfig)
	}
	return nil
}

// Addr returns the API listen address
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
