package commands

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/openfroyo/qlikcloud/pkg/telemetry"
)

// envPrefix prefixes every environment variable the CLI reads, e.g.
// QLIKCLOUD_API_KEY for --api-key.
const envPrefix = "QLIKCLOUD"

// Settings are the global options, merged from flags, environment and the
// optional config file in that order of precedence.
type Settings struct {
	Tenant       string `mapstructure:"tenant" validate:"omitempty,url"`
	APIKey       string `mapstructure:"api-key"`
	ClientID     string `mapstructure:"client-id"`
	ClientSecret string `mapstructure:"client-secret"`

	// Context names an inventory host whose connection vars are used when
	// no tenant is given.
	Context   string `mapstructure:"context"`
	Inventory string `mapstructure:"inventory"`

	Journal     string   `mapstructure:"journal"`
	Policies    []string `mapstructure:"policy"`
	MetricsFile string   `mapstructure:"metrics-file"`

	Tracing         string `mapstructure:"tracing" validate:"oneof=none stdout otlp"`
	TracingEndpoint string `mapstructure:"tracing-endpoint" validate:"required_if=Tracing otlp"`

	LogLevel  string `mapstructure:"log-level" validate:"oneof=trace debug info warn error"`
	LogFormat string `mapstructure:"log-format" validate:"oneof=console json"`

	JSON    bool          `mapstructure:"json"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gte=0"`
}

var settingsValidator = validator.New(validator.WithRequiredStructEnabled())

func bindGlobalFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.StringP("config", "c", "", "config file (yaml, json or toml)")
	flags.String("tenant", "", "tenant URI, e.g. https://example.eu.qlikcloud.com")
	flags.String("api-key", "", "API key for the tenant")
	flags.String("client-id", "", "OAuth client id, used when no API key is set")
	flags.String("client-secret", "", "OAuth client secret")
	flags.String("context", "", "inventory host to take the tenant connection from")
	flags.StringP("inventory", "i", "", "contexts inventory file")
	flags.String("journal", "", "SQLite journal recording runs and task results")
	flags.StringSlice("policy", nil, "Rego policy files or directories")
	flags.String("metrics-file", "", "write Prometheus metrics to this textfile on exit")
	flags.String("tracing", "none", "trace exporter: none, stdout or otlp")
	flags.String("tracing-endpoint", "", "OTLP gRPC collector endpoint")
	flags.String("log-level", envOr("LOG_LEVEL", "info"), "log level")
	flags.String("log-format", "console", "log format: console or json")
	flags.Bool("json", false, "output in JSON format")
	flags.Duration("timeout", 60*time.Second, "timeout of each tenant API request")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindPFlags(flags)
}

// loadSettings reads the config file, if any, and decodes and validates the
// merged settings.
func loadSettings(v *viper.Viper) (*Settings, error) {
	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var s Settings
	err := v.Unmarshal(&s, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	if err := settingsValidator.Struct(&s); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return &s, nil
}

// telemetryConfig maps the settings onto the telemetry configuration.
func (s *Settings) telemetryConfig(version string) *telemetry.Config {
	cfg := telemetry.DefaultConfig()
	cfg.ServiceVersion = version
	cfg.Logging.Level = s.LogLevel
	cfg.Logging.Format = s.LogFormat
	cfg.Tracing.Enabled = s.Tracing != "none"
	cfg.Tracing.Exporter = s.Tracing
	cfg.Tracing.Endpoint = s.TracingEndpoint
	cfg.Metrics.TextfilePath = s.MetricsFile
	if s.Tenant != "" {
		cfg.ResourceAttributes["tenant"] = s.Tenant
	}
	return cfg
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
