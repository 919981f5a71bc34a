package bootstrap

import (
	"os"

	"github.com/turtacn/DataMention-Intelligence/internal/config"
)

// ConfigEnv names the variable consulted when no config path is given.
const ConfigEnv = "DMI_CONFIG"

// LoadConfig resolves the config file for a long-running process: path, then
// $DMI_CONFIG. When neither names an existing file the config comes from
// DMI_* variables and defaults alone.
func LoadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = os.Getenv(ConfigEnv)
	}
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return config.Load(path)
		}
	}
	return config.LoadFromEnv()
}
