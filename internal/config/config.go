// Package config assembles runtime settings from defaults, a .env file, an
// optional JSON file, CELERIX_* environment variables and command-line
// flags, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"

	"github.com/celerix-dev/celerix-hr/internal/index"
	"github.com/celerix-dev/celerix-hr/internal/logging"
	"github.com/celerix-dev/celerix-hr/internal/vault"
	"github.com/celerix-dev/celerix-hr/pkg/sdk"
)

// Config holds runtime settings for the daemon and the CLI.
type Config struct {
	Backend      string `json:"backend"`
	DataDir      string `json:"data_dir"`
	SQLitePath   string `json:"sqlite_path"`
	DatabaseDSN  string `json:"database_dsn"`
	RemoteAddr   string `json:"remote_addr"`
	TCPPort      string `json:"tcp_port"`
	HTTPPort     string `json:"http_port"`
	TLS          bool   `json:"tls"`
	Layout       string `json:"layout"`
	MaxGroupSize int    `json:"max_group_size"`
	// VaultKey is a hex-encoded 32-byte AES key sealing biometric data.
	VaultKey  string `json:"vault_key"`
	LogLevel  string `json:"log_level"`
	LogFormat string `json:"log_format"`
}

// LoadDefaults populates Config with development defaults.
func (c *Config) LoadDefaults() {
	c.Backend = sdk.BackendMemory
	c.DataDir = "./data"
	c.RemoteAddr = "localhost:7001"
	c.TCPPort = "7001"
	c.HTTPPort = "7002"
	c.TLS = true
	c.Layout = index.LayoutNamespaced
	c.MaxGroupSize = index.DefaultMaxGroupSize
	c.LogLevel = "info"
	c.LogFormat = "text"
}

// LoadConfig builds a Config from args (normally os.Args[1:]). envFiles
// default to ".env"; missing files are ignored.
func LoadConfig(args []string, envFiles ...string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := loadDotEnv(envFiles...); err != nil {
		return nil, err
	}
	if err := parseJSON(cfg, args); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports settings that cannot work together.
func (c *Config) Validate() error {
	var errs []error
	switch c.Backend {
	case sdk.BackendMemory, sdk.BackendSQLite:
	case sdk.BackendPostgres:
		if c.DatabaseDSN == "" {
			errs = append(errs, errors.New("postgres backend needs a database DSN"))
		}
	case sdk.BackendRemote:
		if c.RemoteAddr == "" {
			errs = append(errs, errors.New("remote backend needs a remote address"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown backend %q", c.Backend))
	}
	if _, err := index.ParseLayout(c.Layout); err != nil {
		errs = append(errs, err)
	}
	if c.MaxGroupSize < 0 {
		errs = append(errs, fmt.Errorf("max group size must not be negative, got %d", c.MaxGroupSize))
	}
	if c.VaultKey != "" {
		if _, err := vault.ParseKey(c.VaultKey); err != nil {
			errs = append(errs, fmt.Errorf("vault key: %w", err))
		}
	}
	return errors.Join(errs...)
}

// StoreOptions maps the backend settings for sdk.Open.
func (c *Config) StoreOptions(log logging.Logger) sdk.StoreOptions {
	return sdk.StoreOptions{
		Backend:    c.Backend,
		DataDir:    c.DataDir,
		SQLitePath: c.SQLitePath,
		DSN:        c.DatabaseDSN,
		RemoteAddr: c.RemoteAddr,
		TLS:        c.TLS,
		Log:        log,
	}
}

// Cipher returns the biometric cipher, or nil when no vault key is set.
func (c *Config) Cipher() (*vault.Cipher, error) {
	if c.VaultKey == "" {
		return nil, nil
	}
	key, err := vault.ParseKey(c.VaultKey)
	if err != nil {
		return nil, err
	}
	return vault.NewCipher(key)
}
