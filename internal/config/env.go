package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment variables read by parseEnv.
const (
	EnvBackend      = "CELERIX_BACKEND"
	EnvDataDir      = "CELERIX_DATA_DIR"
	EnvSQLitePath   = "CELERIX_SQLITE_PATH"
	EnvDatabaseDSN  = "CELERIX_DATABASE_DSN"
	EnvRemoteAddr   = "CELERIX_STORE_ADDR"
	EnvTCPPort      = "CELERIX_PORT"
	EnvHTTPPort     = "CELERIX_HTTP_PORT"
	EnvDisableTLS   = "CELERIX_DISABLE_TLS"
	EnvLayout       = "CELERIX_LAYOUT"
	EnvMaxGroupSize = "CELERIX_MAX_GROUP_SIZE"
	EnvVaultKey     = "CELERIX_VAULT_KEY"
	EnvLogLevel     = "CELERIX_LOG_LEVEL"
	EnvLogFormat    = "CELERIX_LOG_FORMAT"
)

// loadDotEnv copies variables from the files into the process environment
// without overriding variables that are already set.
func loadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func parseEnv(c *Config) error {
	setString(&c.Backend, EnvBackend)
	setString(&c.DataDir, EnvDataDir)
	setString(&c.SQLitePath, EnvSQLitePath)
	setString(&c.DatabaseDSN, EnvDatabaseDSN)
	setString(&c.RemoteAddr, EnvRemoteAddr)
	setString(&c.TCPPort, EnvTCPPort)
	setString(&c.HTTPPort, EnvHTTPPort)
	setString(&c.Layout, EnvLayout)
	setString(&c.VaultKey, EnvVaultKey)
	setString(&c.LogLevel, EnvLogLevel)
	setString(&c.LogFormat, EnvLogFormat)

	if v := os.Getenv(EnvDisableTLS); v != "" {
		off, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvDisableTLS, err)
		}
		c.TLS = !off
	}
	if v := os.Getenv(EnvMaxGroupSize); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMaxGroupSize, err)
		}
		c.MaxGroupSize = n
	}
	return nil
}
