package config

import "time"

type Config struct {
	Environment string `mapstructure:"environment" yaml:"environment"`
	Port        int    `mapstructure:"port" yaml:"port"`
	LogLevel    string `mapstructure:"log_level" yaml:"log_level"`

	Cache       CacheConfig       `mapstructure:"cache" yaml:"cache"`
	Correlation CorrelationConfig `mapstructure:"correlation" yaml:"correlation"`
	Suppression SuppressionConfig `mapstructure:"suppression" yaml:"suppression"`
	Routing     RoutingConfig     `mapstructure:"routing" yaml:"routing"`
	CORS        CORSConfig        `mapstructure:"cors" yaml:"cors"`
	Monitoring  MonitoringConfig  `mapstructure:"monitoring" yaml:"monitoring"`
}

// CacheConfig holds the Redis/Valkey connection for group state and counters.
type CacheConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr"`
	DB       int    `mapstructure:"db" yaml:"db"`
	Password string `mapstructure:"password" yaml:"password"`
}

// CorrelationConfig bounds the grouping window.
type CorrelationConfig struct {
	// TimeWindow is how long a group stays open for new alerts, in seconds.
	// Groups expire from the store after twice this.
	TimeWindow int `mapstructure:"time_window" yaml:"time_window"`
	// RecentGroupsLimit bounds the recent-groups list kept for queries.
	RecentGroupsLimit int `mapstructure:"recent_groups_limit" yaml:"recent_groups_limit"`
}

// SuppressionConfig holds rule-directory and flapping defaults.
type SuppressionConfig struct {
	RulesDir          string `mapstructure:"rules_dir" yaml:"rules_dir"`
	FlappingThreshold int    `mapstructure:"flapping_threshold" yaml:"flapping_threshold"`
	FlappingWindow    int    `mapstructure:"flapping_window" yaml:"flapping_window"` // seconds
	// WatchRules enables fsnotify reload of the rules directory.
	WatchRules bool `mapstructure:"watch_rules" yaml:"watch_rules"`
}

// RoutingConfig wires the entity catalog and notification sinks.
type RoutingConfig struct {
	BackstageURL string `mapstructure:"backstage_url" yaml:"backstage_url"`
	// EscalationTimeout is read for forward compatibility; no escalation
	// path consumes it yet.
	EscalationTimeout int `mapstructure:"escalation_timeout" yaml:"escalation_timeout"` // seconds

	PagerDuty  PagerDutyConfig  `mapstructure:"pagerduty" yaml:"pagerduty"`
	Slack      SlackConfig      `mapstructure:"slack" yaml:"slack"`
	Mattermost MattermostConfig `mapstructure:"mattermost" yaml:"mattermost"`
}

type PagerDutyConfig struct {
	RoutingKey string `mapstructure:"routing_key" yaml:"routing_key"`
	EventsURL  string `mapstructure:"events_url" yaml:"events_url"`
}

type SlackConfig struct {
	WebhookURL string `mapstructure:"webhook_url" yaml:"webhook_url"`
}

type MattermostConfig struct {
	WebhookURL string `mapstructure:"webhook_url" yaml:"webhook_url"`
}

// CORSConfig handles Cross-Origin Resource Sharing for dashboard callers.
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods" yaml:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers" yaml:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials" yaml:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age" yaml:"max_age"`
}

// MonitoringConfig handles self-monitoring.
type MonitoringConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	MetricsPath string `mapstructure:"metrics_path" yaml:"metrics_path"`
}

// CorrelationWindow returns the grouping window as a duration.
func (c *Config) CorrelationWindow() time.Duration {
	return time.Duration(c.Correlation.TimeWindow) * time.Second
}

// FlappingWindow returns the flapping window as a duration.
func (c *Config) FlappingWindow() time.Duration {
	return time.Duration(c.Suppression.FlappingWindow) * time.Second
}
