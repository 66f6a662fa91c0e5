package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// DefaultConfig returns a configuration built purely from defaults,
// without touching the filesystem or environment.
func DefaultConfig() *Config {
	v := viper.New()
	setDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		// Defaults are static; an unmarshal failure is a programming error.
		panic(fmt.Sprintf("error unmarshaling default config: %v", err))
	}

	return &config
}

// Load loads the configuration from the config file, environment
// variables and defaults, then configures logging accordingly.
func Load(configFile string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	setupViperConfig(v, configFile)

	config, err := readAndUnmarshalConfig(v)
	if err != nil {
		return nil, err
	}

	if err := setupLogging(config); err != nil {
		return nil, err
	}

	return config, nil
}

// loadEnvFile loads the .env file if it exists
func loadEnvFile() {
	if err := gotenv.Load(); err != nil {
		// .env file not found, that's okay - continue with other sources
		if !os.IsNotExist(err) {
			fmt.Printf("Warning: Error loading .env file: %v\n", err)
		}
	}
}

// setupViperConfig configures viper with file paths and defaults
func setupViperConfig(v *viper.Viper, configFile string) {
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/agendly")

	if home := os.Getenv("HOME"); len(home) > 0 {
		v.AddConfigPath(filepath.Join(home, ".config", "agendly"))
	}

	if len(configFile) > 0 {
		v.SetConfigFile(configFile)
	}

	setDefaults(v)

	v.SetEnvPrefix("AGENDLY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.AllowEmptyEnv(true)
}

// readAndUnmarshalConfig reads the configuration file and unmarshals it
func readAndUnmarshalConfig(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file found; defaults and env vars apply.
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

func setupLogging(config *Config) error {
	level, err := logrus.ParseLevel(config.Logging.Level)
	if err != nil {
		return fmt.Errorf("invalid logging level %q: %w", config.Logging.Level, err)
	}
	logrus.SetLevel(level)

	switch strings.ToLower(config.Logging.Format) {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.limits.read_timeout", "10s")
	v.SetDefault("server.limits.write_timeout", "30s")
	v.SetDefault("server.limits.idle_timeout", "60s")
	v.SetDefault("server.cors.allowed_origins", []string{"*"})
	v.SetDefault("server.rate_limit.rate", 5.0)
	v.SetDefault("server.rate_limit.burst", 10)
	v.SetDefault("server.health.enabled", true)
	v.SetDefault("server.health.path", "/health")
	v.SetDefault("server.metrics.enabled", true)
	v.SetDefault("server.metrics.path", "/metrics")

	// WhatsApp session manager
	v.SetDefault("whatsapp.enabled", true)
	v.SetDefault("whatsapp.store_dir", "./data/whatsapp-auth")
	v.SetDefault("whatsapp.country_code", "55")
	v.SetDefault("whatsapp.reconnect_delay", "5s")
	v.SetDefault("whatsapp.restart_delay", "2s")
	v.SetDefault("whatsapp.init_timeout", "8s")
	v.SetDefault("whatsapp.send_timeout", "15s")
	v.SetDefault("whatsapp.heartbeat_interval", "30s")

	// Notifications
	v.SetDefault("notifications.salon_name", "")
	v.SetDefault("notifications.salon_address", "")
	v.SetDefault("notifications.salon_phone", "")
	v.SetDefault("notifications.templates.confirmation", "")
	v.SetDefault("notifications.templates.reminder", "")
	v.SetDefault("notifications.templates.cancellation", "")

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}
