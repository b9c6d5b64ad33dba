package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Load loads configuration with priority order:
// 1. Environment variables
// 2. Configuration file (config.yaml)
// 3. Default values
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/smart-alerting/")
	v.AddConfigPath("./configs/")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("ALERTING")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - continue with env vars and defaults
	}

	overrideWithEnvVars(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("environment", "development")
	v.SetDefault("port", 8000)
	v.SetDefault("log_level", "info")

	// Cache defaults
	v.SetDefault("cache.addr", "localhost:6379")
	v.SetDefault("cache.db", 0)

	// Correlation defaults
	v.SetDefault("correlation.time_window", 300) // 5 minutes
	v.SetDefault("correlation.recent_groups_limit", 100)

	// Suppression defaults
	v.SetDefault("suppression.rules_dir", "rules/")
	v.SetDefault("suppression.flapping_threshold", 3)
	v.SetDefault("suppression.flapping_window", 600) // 10 minutes
	v.SetDefault("suppression.watch_rules", true)

	// Routing defaults
	v.SetDefault("routing.backstage_url", "http://backstage.fawkes.svc:7007")
	v.SetDefault("routing.escalation_timeout", 900) // 15 minutes
	v.SetDefault("routing.pagerduty.events_url", "https://events.pagerduty.com/v2/enqueue")

	// CORS defaults
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Content-Type", "Authorization"})
	v.SetDefault("cors.allow_credentials", true)
	v.SetDefault("cors.max_age", 3600)

	// Monitoring defaults
	v.SetDefault("monitoring.enabled", true)
	v.SetDefault("monitoring.metrics_path", "/metrics")
}

// overrideWithEnvVars handles the flat environment names the deployment
// charts already export.
func overrideWithEnvVars(v *viper.Viper) {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			v.Set("port", p)
		}
	}

	if env := os.Getenv("ENVIRONMENT"); env != "" {
		v.Set("environment", env)
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		v.Set("log_level", logLevel)
	}

	// Redis connection
	if host := os.Getenv("REDIS_HOST"); host != "" {
		port := os.Getenv("REDIS_PORT")
		if port == "" {
			port = "6379"
		}
		v.Set("cache.addr", host+":"+port)
	}
	if db := os.Getenv("REDIS_DB"); db != "" {
		if d, err := strconv.Atoi(db); err == nil {
			v.Set("cache.db", d)
		}
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		v.Set("cache.password", password)
	}

	// Pipeline tuning
	if window := os.Getenv("CORRELATION_TIME_WINDOW"); window != "" {
		if w, err := strconv.Atoi(window); err == nil {
			v.Set("correlation.time_window", w)
		}
	}
	if threshold := os.Getenv("FLAPPING_THRESHOLD"); threshold != "" {
		if t, err := strconv.Atoi(threshold); err == nil {
			v.Set("suppression.flapping_threshold", t)
		}
	}
	if window := os.Getenv("FLAPPING_WINDOW"); window != "" {
		if w, err := strconv.Atoi(window); err == nil {
			v.Set("suppression.flapping_window", w)
		}
	}
	if timeout := os.Getenv("ESCALATION_TIMEOUT"); timeout != "" {
		if t, err := strconv.Atoi(timeout); err == nil {
			v.Set("routing.escalation_timeout", t)
		}
	}
	if rulesDir := os.Getenv("RULES_DIR"); rulesDir != "" {
		v.Set("suppression.rules_dir", rulesDir)
	}

	// External collaborators
	if backstage := os.Getenv("BACKSTAGE_URL"); backstage != "" {
		v.Set("routing.backstage_url", backstage)
	}
	if webhook := os.Getenv("SLACK_WEBHOOK_URL"); webhook != "" {
		v.Set("routing.slack.webhook_url", webhook)
	}
	if webhook := os.Getenv("MATTERMOST_WEBHOOK_URL"); webhook != "" {
		v.Set("routing.mattermost.webhook_url", webhook)
	}
	if key := os.Getenv("PAGERDUTY_ROUTING_KEY"); key != "" {
		v.Set("routing.pagerduty.routing_key", key)
	}
}

func validateConfig(config *Config) error {
	if config.Cache.Addr == "" {
		return fmt.Errorf("cache address is required")
	}

	if config.Port < 1 || config.Port > 65535 {
		return fmt.Errorf("invalid port number: %d", config.Port)
	}

	validLogLevels := []string{"debug", "info", "warn", "error", "fatal"}
	if !contains(validLogLevels, config.LogLevel) {
		return fmt.Errorf("invalid log level: %s", config.LogLevel)
	}

	validEnvironments := []string{"development", "staging", "production", "test"}
	if !contains(validEnvironments, config.Environment) {
		return fmt.Errorf("invalid environment: %s", config.Environment)
	}

	if config.Correlation.TimeWindow < 1 {
		return fmt.Errorf("correlation time window must be at least 1 second")
	}

	if config.Suppression.FlappingThreshold < 1 {
		return fmt.Errorf("flapping threshold must be at least 1")
	}

	if config.Suppression.FlappingWindow < 1 {
		return fmt.Errorf("flapping window must be at least 1 second")
	}

	return nil
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
