// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DefaultProcessID      = "sme-assessment"
	DefaultBenchmarkIndex = "assessment-benchmarks"
	DefaultSessionPrefix  = "assessment:session:"
)

func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	// base config, then the environment overlay
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}
	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // overlay is optional

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	// Enable ENV override like DATABASE_REDIS_ADDRESS
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("http.api_enabled", true)
	return v
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadEnvFile loads the first .env found walking up from the working directory.
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// expandEnvVars replaces ${VAR} placeholders in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

// envFallbacks fill secrets that are still empty after ${VAR} expansion.
func envFallbacks(cfg *Config) []struct {
	env    string
	target *string
} {
	return []struct {
		env    string
		target *string
	}{
		{"DB_USER", &cfg.Database.Postgres.User},
		{"DB_PASSWORD", &cfg.Database.Postgres.Password},
		{"REDIS_PASSWORD", &cfg.Database.Redis.Password},
		{"SMTP_PASSWORD", &cfg.Integrations.SMTP.Password},
		{"SNS_ALERT_TOPIC_ARN", &cfg.Integrations.AWS.SNS.AlertTopicARN},
	}
}

func overrideEmptyConfig(cfg *Config) {
	for _, f := range envFallbacks(cfg) {
		if *f.target != "" {
			continue
		}
		if val := os.Getenv(f.env); val != "" {
			*f.target = val
		}
	}
}

func setDefault[T comparable](field *T, value T) {
	var zero T
	if *field == zero {
		*field = value
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	setDefault(&cfg.App.Name, "sme-cyber-assessment")

	setDefault(&cfg.HTTP.Address, ":8080")
	setDefault(&cfg.HTTP.ReadTimeout, 10000)
	setDefault(&cfg.HTTP.WriteTimeout, 10000)
	setDefault(&cfg.HTTP.ShutdownTimeout, 5000)

	setDefault(&cfg.Camunda.ProcessID, DefaultProcessID)
	setDefault(&cfg.Camunda.MaxJobsActive, 10)
	setDefault(&cfg.Camunda.Timeout, 30000)
	setDefault(&cfg.Camunda.RequestTimeout, 30000)

	pg := &cfg.Database.Postgres
	setDefault(&pg.Port, 5432)
	setDefault(&pg.MaxConnections, 25)
	setDefault(&pg.MaxIdle, 5)
	setDefault(&pg.SSLMode, "disable")

	es := &cfg.Database.Elasticsearch
	if es.URL == "" && len(es.Addresses) > 0 {
		es.URL = es.Addresses[0]
	}
	setDefault(&es.BenchmarkIndex, DefaultBenchmarkIndex)

	setDefault(&cfg.Session.TTL, 86400)
	setDefault(&cfg.Session.KeyPrefix, DefaultSessionPrefix)

	setDefault(&cfg.Integrations.AWS.Region, "eu-west-1")
	setDefault(&cfg.Integrations.SMTP.Port, 587)

	setDefault(&cfg.Logging.Level, "info")
	setDefault(&cfg.Logging.Format, "json")
	setDefault(&cfg.Logging.Output, "stdout")

	for key, w := range cfg.Workers {
		setDefault(&w.MaxJobsActive, 5)
		setDefault(&w.Timeout, 30000)
		setDefault(&w.MaxRetries, 3)
		cfg.Workers[key] = w
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required")
	}

	if cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required")
	}

	if IsWorkerEnabled(cfg, "record-assessment") {
		if cfg.Database.Postgres.Host == "" {
			return fmt.Errorf("database.postgres.host is required")
		}
		if cfg.Database.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.database is required")
		}
		if cfg.Database.Postgres.User == "" {
			return fmt.Errorf("database.postgres.user is required")
		}
	}

	if IsWorkerEnabled(cfg, "index-assessment") && cfg.Database.Elasticsearch.GetURL() == "" {
		return fmt.Errorf("database.elasticsearch.addresses or url is required")
	}

	if cfg.Integrations.AWS.SNS.Enabled && cfg.Integrations.AWS.SNS.AlertTopicARN == "" {
		return fmt.Errorf("integrations.aws.sns.alert_topic_arn is required when sns is enabled")
	}

	if cfg.Session.TTL < 0 {
		return fmt.Errorf("session.ttl cannot be negative")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// SessionTTL returns the session lifetime as a duration.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Session.TTL) * time.Second
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}

	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30000,
		MaxRetries:    3,
	}
}

// IsWorkerEnabled checks if a specific worker is enabled
func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return true
}
