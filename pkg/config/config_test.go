package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/cuemby/catena/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "Catena", cfg.BaseImage)
	assert.Equal(t, 1989, cfg.Port)
	assert.Equal(t, EngineBolt, cfg.StoreEngine)
	assert.Equal(t, "0.0.0.0:1989", cfg.Addr())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catena.yaml")
	content := `encryption_key: s3cret
base_image: ubuntu-22.04
port: 8080
store_engine: badger
compensate_on_failure: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.EncryptionKey)
	assert.Equal(t, "ubuntu-22.04", cfg.BaseImage)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, EngineBadger, cfg.StoreEngine)
	assert.True(t, cfg.CompensateOnFailure)
	// untouched keys keep their defaults
	assert.Equal(t, "ubuntu", cfg.SSHUser)
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		valid  bool
	}{
		{"valid", func(c *Config) {}, true},
		{"short key", func(c *Config) { c.EncryptionKey = "abc" }, false},
		{"bad port", func(c *Config) { c.Port = 0 }, false},
		{"unknown engine", func(c *Config) { c.StoreEngine = "sqlite" }, false},
		{"no data dir", func(c *Config) { c.DataDir = "" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.EncryptionKey = "passphrase"
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.Is(err, types.ErrConfig))
			}
		})
	}
}
