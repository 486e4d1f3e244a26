package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "json", cfg.Codec)
	assert.Equal(t, 4*1024*1024, cfg.Limits.MaxMessageSize)
	assert.Equal(t, 30*time.Second, cfg.Timeouts.Invoke)
}

func TestLoadFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "croupier.yaml")
	yaml := `
service_id: inventory-service
game_id: game42
env: staging
agent_addr: 10.0.0.5:19001
codec: cbor
timeouts:
  invoke: 10s
limits:
  max_concurrent_messages: 128
log:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "inventory-service", cfg.ServiceID)
	assert.Equal(t, "game42", cfg.GameID)
	assert.Equal(t, "staging", cfg.Env)
	assert.Equal(t, "10.0.0.5:19001", cfg.AgentAddr)
	assert.Equal(t, "cbor", cfg.Codec)
	assert.Equal(t, 10*time.Second, cfg.Timeouts.Invoke)
	assert.Equal(t, 128, cfg.Limits.MaxConcurrentMessages)
	assert.Equal(t, "debug", cfg.Log.Level)

	// Untouched fields keep their defaults.
	assert.Equal(t, 5*time.Second, cfg.Timeouts.Dial)
	assert.Equal(t, 4*1024*1024, cfg.Limits.MaxMessageSize)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().ServiceID, cfg.ServiceID)
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty service id", func(c *Config) { c.ServiceID = "" }},
		{"unknown codec", func(c *Config) { c.Codec = "msgpack" }},
		{"non-positive message size", func(c *Config) { c.Limits.MaxMessageSize = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestTLSClientConfigDisabledWhenNoCert(t *testing.T) {
	cfg := Default()
	tlsCfg, err := cfg.TLSClientConfig()
	require.NoError(t, err)
	assert.Nil(t, tlsCfg)
}

func TestTLSClientConfigMissingFiles(t *testing.T) {
	cfg := Default()
	cfg.TLS.CertFile = filepath.Join(t.TempDir(), "absent.crt")
	cfg.TLS.KeyFile = filepath.Join(t.TempDir(), "absent.key")
	_, err := cfg.TLSClientConfig()
	assert.Error(t, err)
}
