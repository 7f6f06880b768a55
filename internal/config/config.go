// Package config loads the gateway's boot-time configuration: background
// services to start, applications (rate-limit tenants), and load balancers
// (routes), applied as a sequence of admin commands once the process starts.
package config

// Config is the top-level configuration document.
type Config struct {
	Listen      ListenConfig         `yaml:"listen"`
	AdminListen string               `yaml:"admin_listen"`
	Logging     LoggingConfig        `yaml:"logging"`
	Backgrounds []string             `yaml:"backgrounds"`
	Applications []ApplicationConfig `yaml:"applications"`
	LoadBalancers []LoadBalancerConfig `yaml:"load_balancers"`
}

// ListenConfig configures the data-plane listener.
type ListenConfig struct {
	Address string `yaml:"address"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Output     string `yaml:"output"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// ApplicationConfig is one tenant's rate-limit configuration.
type ApplicationConfig struct {
	AppID                string `yaml:"app_id"`
	LimitIntervalSeconds int    `yaml:"limit_interval_seconds"`
	Limit                int    `yaml:"limit"`
}

// MatchRuleConfig selects the match-rule variant for a load balancer.
type MatchRuleConfig struct {
	Type  string `yaml:"type"`
	Value string `yaml:"value"`
}

// RewriteConfig is an optional path rewrite for a load balancer.
type RewriteConfig struct {
	Regex       string `yaml:"regex"`
	Replacement string `yaml:"replacement"`
}

// LoadBalancerConfig is one route's configuration.
type LoadBalancerConfig struct {
	Name             string           `yaml:"name"`
	MatchRule        MatchRuleConfig  `yaml:"match_rule"`
	Rewrite          *RewriteConfig   `yaml:"rewrite"`
	ServiceDiscovery string           `yaml:"service_discovery"`
	StaticUpstream   []string         `yaml:"static_upstream"`
}

// DefaultConfig returns a Config with the gateway's documented defaults.
func DefaultConfig() *Config {
	return &Config{
		Listen:      ListenConfig{Address: ":6188"},
		AdminListen: "127.0.0.1:3000",
		Logging: LoggingConfig{
			Level:  "info",
			Output: "stdout",
		},
	}
}
