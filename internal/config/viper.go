package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// configPathEnvVar is the env var that can be used to override the default config file path.
const configPathEnvVar = "SIGNON_CONFIG"

// defaultConfigPath is used when no config path override is provided.
const defaultConfigPath = "configs/config.yaml"

// loadWithViper reads the config file and env overrides into the Config model.
// It panics on failure as the application cannot run without configs.
func loadWithViper() Config {
	vpr := viper.New()

	// Env vars take precedence over the config file.
	// Example: SIGNON_SESSION_SECRET overrides session.secret.
	vpr.SetEnvPrefix("signon")
	vpr.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vpr.AutomaticEnv()

	path := os.Getenv(configPathEnvVar)
	if path == "" {
		path = defaultConfigPath
	}
	vpr.SetConfigFile(path)

	if err := vpr.ReadInConfig(); err != nil {
		panic("failed to read config file: " + err.Error())
	}

	var cfg Config
	if err := vpr.Unmarshal(&cfg); err != nil {
		panic("failed to unmarshal configs: " + err.Error())
	}

	return cfg
}
