package config

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"
)

// ErrSecretInConfig is returned when a config file carries database credentials.
var ErrSecretInConfig = errors.New("database passwords not allowed in config files (use TP_DATABASE_URL environment variable)")

// LoadConfig loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence; flags are
// applied by the caller on the returned value.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	def := Default()
	v.SetDefault("detection.significance", def.Detection.Significance)
	v.SetDefault("detection.window", def.Detection.Window)
	v.SetDefault("detection.min_event_support", def.Detection.MinEventSupport)
	v.SetDefault("detection.min_pair_support", def.Detection.MinPairSupport)
	v.SetDefault("detection.max_rounds", def.Detection.MaxRounds)
	v.SetDefault("detection.max_synthesis_rounds", def.Detection.MaxSynthesisRounds)
	v.SetDefault("detection.time_unit", def.Detection.TimeUnit.String())
	v.SetDefault("server.host", def.Server.Host)
	v.SetDefault("server.port", def.Server.Port)
	v.SetDefault("server.request_timeout", def.Server.RequestTimeout.String())
	v.SetDefault("server.max_events", def.Server.MaxEvents)
	v.SetDefault("database.url", "")

	// Load config file if provided; secrets are checked before the
	// environment is bound so only file values are inspected.
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, "failed to read config file")
		}
		if err := validateNoSecretsInConfig(v); err != nil {
			return nil, err
		}
	}

	// Bind environment variables with TP_ prefix
	v.SetEnvPrefix("TP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		Detection: DetectionConfig{
			Significance:       v.GetFloat64("detection.significance"),
			Window:             v.GetInt64("detection.window"),
			MinEventSupport:    v.GetInt("detection.min_event_support"),
			MinPairSupport:     v.GetInt("detection.min_pair_support"),
			MaxRounds:          v.GetInt("detection.max_rounds"),
			MaxSynthesisRounds: v.GetInt("detection.max_synthesis_rounds"),
			TimeUnit:           v.GetDuration("detection.time_unit"),
		},
		Server: ServerConfig{
			Host:           v.GetString("server.host"),
			Port:           v.GetInt("server.port"),
			RequestTimeout: v.GetDuration("server.request_timeout"),
			MaxEvents:      v.GetInt("server.max_events"),
		},
		DatabaseURL: v.GetString("database.url"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateNoSecretsInConfig keeps database credentials environment-only.
func validateNoSecretsInConfig(v *viper.Viper) error {
	if v.InConfig("database.url") && hasPassword(v.GetString("database.url")) {
		return ErrSecretInConfig
	}
	return nil
}
