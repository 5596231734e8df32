package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// MemoryConfig holds in-memory/JSON storage backend settings.
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// StorageConfig selects and configures the telemetry storage backend.
type StorageConfig struct {
	Type   string       `json:"type" mapstructure:"type"` // "database" or "memory"
	Memory MemoryConfig `json:"memory" mapstructure:"memory"`
}

// LiveConfig holds the websocket live-telemetry settings.
type LiveConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	URL     string `json:"url" mapstructure:"url"`
	Secret  string `json:"secret" mapstructure:"secret"`
}

// Load reads configuration from the JSON file in configDir and sets default
// values for everything it does not mention.
func Load(configDir string) error {
	// Set default values
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./drivesimlogs")

	viper.SetDefault("sim.tickSeconds", 1.0/60.0)
	viper.SetDefault("sim.sampleEvery", 1)
	viper.SetDefault("sim.defaultScenario", "full-throttle")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "drivesim")

	viper.SetDefault("influx.enabled", true)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "drivesim-metrics")

	viper.SetDefault("metrics.enabled", false)

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("live.enabled", false)
	viper.SetDefault("live.url", "ws://localhost:5000/telemetry")
	viper.SetDefault("live.secret", "")

	viper.SetDefault("geo.anchorLongitude", 0.0)
	viper.SetDefault("geo.anchorLatitude", 0.0)

	viper.SetDefault("storage.type", "database")
	viper.SetDefault("storage.memory.outputDir", ".")
	viper.SetDefault("storage.memory.compressOutput", true)

	viper.SetConfigName("drivesim.cfg.json")
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// GetStorageConfig returns the storage backend settings.
func GetStorageConfig() StorageConfig {
	var cfg StorageConfig
	if err := viper.UnmarshalKey("storage", &cfg); err != nil {
		return StorageConfig{Type: "database"}
	}
	if cfg.Type == "" {
		cfg.Type = "database"
	}
	return cfg
}

// GetLiveConfig returns the websocket live-telemetry settings.
func GetLiveConfig() LiveConfig {
	return LiveConfig{
		Enabled: viper.GetBool("live.enabled"),
		URL:     viper.GetString("live.url"),
		Secret:  viper.GetString("live.secret"),
	}
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetFloat returns a float config value.
func GetFloat(key string) float64 {
	return viper.GetFloat64(key)
}
