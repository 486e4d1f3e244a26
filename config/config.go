// Package config provides YAML + environment configuration loading for
// the SDK.
package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root SDK configuration.
type Config struct {
	// ServiceID is the logical name of this process, sent in
	// register/heartbeat envelopes.
	ServiceID string `mapstructure:"service_id"`
	// GameID and Env identify the tenant this process serves.
	GameID string `mapstructure:"game_id"`
	Env    string `mapstructure:"env"`

	// AgentAddr is the remote agent endpoint for outbound calls.
	AgentAddr string `mapstructure:"agent_addr"`
	// ListenAddr is the local bind address for inbound calls.
	ListenAddr string `mapstructure:"listen_addr"`

	// Codec selects the envelope serialization: "json" or "cbor".
	Codec string `mapstructure:"codec"`

	TLS      TLSConfig      `mapstructure:"tls"`
	Timeouts TimeoutConfig  `mapstructure:"timeouts"`
	Limits   LimitConfig    `mapstructure:"limits"`
	Registry RegistryConfig `mapstructure:"registry"`
	Log      LogConfig      `mapstructure:"log"`
}

// TLSConfig names the TLS material on disk. Empty CertFile disables TLS.
type TLSConfig struct {
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
	CAFile   string `mapstructure:"ca_file"`
}

type TimeoutConfig struct {
	Dial      time.Duration `mapstructure:"dial"`
	Invoke    time.Duration `mapstructure:"invoke"`
	Heartbeat time.Duration `mapstructure:"heartbeat"` // 0 disables heartbeats
	Reconnect time.Duration `mapstructure:"reconnect"`
	Shutdown  time.Duration `mapstructure:"shutdown"`
}

type LimitConfig struct {
	// MaxConcurrentMessages bounds in-flight inbound dispatches.
	MaxConcurrentMessages int `mapstructure:"max_concurrent_messages"`
	// MaxMessageSize bounds a single wire message in bytes.
	MaxMessageSize int `mapstructure:"max_message_size"`
}

// RegistryConfig configures the optional etcd function registry.
// Empty endpoints disable announcements and discovery.
type RegistryConfig struct {
	Endpoints []string `mapstructure:"endpoints"`
	TTL       int64    `mapstructure:"ttl"`
}

// LogConfig defines logger settings, consumed by the observability
// package.
type LogConfig struct {
	Level   string   `mapstructure:"level"`   // debug, info, warn, error
	Format  string   `mapstructure:"format"`  // console or json
	Outputs []string `mapstructure:"outputs"` // stdout, stderr, or file paths

	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig controls log file rotation for file outputs.
type RotationConfig struct {
	Enable     bool `mapstructure:"enable"`
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	Compress   bool `mapstructure:"compress"`
}

// Default returns a Config populated with the documented defaults.
func Default() *Config {
	return &Config{
		ServiceID:  "croupier-service",
		GameID:     "default",
		Env:        "dev",
		AgentAddr:  "127.0.0.1:19001",
		ListenAddr: "127.0.0.1:19002",
		Codec:      "json",
		Timeouts: TimeoutConfig{
			Dial:      5 * time.Second,
			Invoke:    30 * time.Second,
			Heartbeat: 30 * time.Second,
			Reconnect: 5 * time.Second,
			Shutdown:  5 * time.Second,
		},
		Limits: LimitConfig{
			MaxConcurrentMessages: 64,
			MaxMessageSize:        4 * 1024 * 1024,
		},
		Registry: RegistryConfig{
			TTL: 10,
		},
		Log: LogConfig{
			Level:   "info",
			Format:  "console",
			Outputs: []string{"stdout"},
		},
	}
}

// Load reads a YAML config file, applies CROUPIER_* environment
// overrides, and fills unset fields from Default. path may be empty to
// use defaults + environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CROUPIER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := Default()
	setDefaults(v, cfg)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the SDK cannot run with.
func (c *Config) Validate() error {
	if c.ServiceID == "" {
		return fmt.Errorf("config: service_id is required")
	}
	if c.Codec != "json" && c.Codec != "cbor" {
		return fmt.Errorf("config: unknown codec %q", c.Codec)
	}
	if c.Limits.MaxMessageSize <= 0 {
		return fmt.Errorf("config: max_message_size must be positive")
	}
	return nil
}

// TLSClientConfig builds a *tls.Config from the configured material,
// or nil when TLS is not configured.
func (c *Config) TLSClientConfig() (*tls.Config, error) {
	if c.TLS.CertFile == "" {
		return nil, nil
	}
	cert, err := tls.LoadX509KeyPair(c.TLS.CertFile, c.TLS.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("config: load tls keypair: %w", err)
	}
	tlsCfg := &tls.Config{Certificates: []tls.Certificate{cert}}
	if c.TLS.CAFile != "" {
		ca, err := os.ReadFile(c.TLS.CAFile)
		if err != nil {
			return nil, fmt.Errorf("config: read ca file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(ca) {
			return nil, fmt.Errorf("config: no certificates in %s", c.TLS.CAFile)
		}
		tlsCfg.RootCAs = pool
	}
	return tlsCfg, nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("service_id", cfg.ServiceID)
	v.SetDefault("game_id", cfg.GameID)
	v.SetDefault("env", cfg.Env)
	v.SetDefault("agent_addr", cfg.AgentAddr)
	v.SetDefault("listen_addr", cfg.ListenAddr)
	v.SetDefault("codec", cfg.Codec)
	v.SetDefault("timeouts.dial", cfg.Timeouts.Dial)
	v.SetDefault("timeouts.invoke", cfg.Timeouts.Invoke)
	v.SetDefault("timeouts.heartbeat", cfg.Timeouts.Heartbeat)
	v.SetDefault("timeouts.reconnect", cfg.Timeouts.Reconnect)
	v.SetDefault("timeouts.shutdown", cfg.Timeouts.Shutdown)
	v.SetDefault("limits.max_concurrent_messages", cfg.Limits.MaxConcurrentMessages)
	v.SetDefault("limits.max_message_size", cfg.Limits.MaxMessageSize)
	v.SetDefault("registry.ttl", cfg.Registry.TTL)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.outputs", cfg.Log.Outputs)
}
