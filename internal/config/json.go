package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/celerix-dev/celerix-hr/internal/flagx"
)

// parseJSON overlays the file named by -c or -config onto c. Fields absent
// from the file keep their current values.
func parseJSON(c *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}
