package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override, e.g. POLYLOAD_BATCH_SIZE.
const EnvPrefix = "POLYLOAD"

// Load builds a configuration from Default, an optional YAML file and
// POLYLOAD_* environment variables, in increasing order of precedence.
// ${VAR_NAME} references inside the file are expanded before parsing.
// The result is not validated; callers decide when to call Validate.
func Load(filePath string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindDefaults(v, cfg)

	if filePath != "" {
		data, err := os.ReadFile(filePath) //nolint:gosec // G304: path comes from the operator
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := v.ReadConfig(strings.NewReader(substituteEnvVars(string(data)))); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}

	// a sinks list in the file replaces the defaults instead of merging element-wise
	if v.IsSet("sinks") {
		cfg.Sinks = nil
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	return cfg, nil
}

// bindDefaults registers every scalar key so AutomaticEnv can see it.
// Sinks are left out on purpose: viper reports a key with a default as set.
func bindDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("download_dir", cfg.DownloadDir)
	v.SetDefault("batch_size", cfg.BatchSize)
	v.SetDefault("concurrency", cfg.Concurrency)
	v.SetDefault("sink_timeout", cfg.SinkTimeout)
	v.SetDefault("on_parse_error", cfg.OnParseError)

	v.SetDefault("source.delimiter", cfg.Source.Delimiter)
	v.SetDefault("source.infer_types", cfg.Source.InferTypes)
	v.SetDefault("source.null_values", cfg.Source.NullValues)
	v.SetDefault("source.patterns", cfg.Source.Patterns)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.encoding", cfg.Logging.Encoding)
	v.SetDefault("logging.development", cfg.Logging.Development)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.listen", cfg.Metrics.Listen)

	v.SetDefault("tracing.enabled", cfg.Tracing.Enabled)
	v.SetDefault("tracing.service_name", cfg.Tracing.ServiceName)
	v.SetDefault("tracing.sample_rate", cfg.Tracing.SampleRate)

	v.SetDefault("dataset.ref", cfg.Dataset.Ref)
	v.SetDefault("dataset.url", cfg.Dataset.URL)

	v.SetDefault("query.listen", cfg.Query.Listen)
	v.SetDefault("query.postgres_uri", cfg.Query.PostgresURI)
}

// Save saves a configuration to a YAML file
func Save(filePath string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values.
// Substituted values are not scanned again.
func substituteEnvVars(content string) string {
	var b strings.Builder
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		b.WriteString(content[:start])
		b.WriteString(os.Getenv(content[start+2 : end]))
		content = content[end+1:]
	}
	b.WriteString(content)
	return b.String()
}
