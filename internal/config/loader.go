package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/naru-gw/gatewayd/internal/gwerr"
)

// Loader reads and validates the gateway's YAML configuration file.
type Loader struct {
	envPattern *regexp.Regexp
}

// NewLoader creates a configuration loader.
func NewLoader() *Loader {
	return &Loader{
		envPattern: regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`),
	}
}

// Load reads a YAML config file from path, expanding ${VAR} references
// against the process environment, then validates the result.
func (l *Loader) Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, gwerr.Wrap(gwerr.ConfigInvalid, "failed to read config file", err)
	}
	return l.Parse(data)
}

// Parse parses configuration from YAML bytes.
func (l *Loader) Parse(data []byte) (*Config, error) {
	expanded := l.expandEnvVars(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, gwerr.Wrap(gwerr.ConfigInvalid, "failed to parse YAML", err)
	}

	if err := l.validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} with environment variable values,
// leaving the reference untouched when the variable is unset.
func (l *Loader) expandEnvVars(input string) string {
	return l.envPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := strings.TrimPrefix(strings.TrimSuffix(match, "}"), "${")
		if value, ok := os.LookupEnv(varName); ok {
			return value
		}
		return match
	})
}

func (l *Loader) validate(cfg *Config) error {
	if cfg.Listen.Address == "" {
		return gwerr.New(gwerr.ConfigInvalid, "listen.address is required")
	}
	if cfg.AdminListen == "" {
		return gwerr.New(gwerr.ConfigInvalid, "admin_listen is required")
	}

	appIDs := make(map[string]bool, len(cfg.Applications))
	for i, app := range cfg.Applications {
		if app.AppID == "" {
			return gwerr.Newf(gwerr.ConfigInvalid, "applications[%d]: app_id is required", i)
		}
		if appIDs[app.AppID] {
			return gwerr.Newf(gwerr.ConfigInvalid, "applications: duplicate app_id %q", app.AppID)
		}
		appIDs[app.AppID] = true
		if app.LimitIntervalSeconds <= 0 {
			return gwerr.Newf(gwerr.ConfigInvalid, "application %q: limit_interval_seconds must be > 0", app.AppID)
		}
		if app.Limit <= 0 {
			return gwerr.Newf(gwerr.ConfigInvalid, "application %q: limit must be > 0", app.AppID)
		}
	}

	names := make(map[string]bool, len(cfg.LoadBalancers))
	for i, lb := range cfg.LoadBalancers {
		if lb.Name == "" {
			return gwerr.Newf(gwerr.ConfigInvalid, "load_balancers[%d]: name is required", i)
		}
		if names[lb.Name] {
			return gwerr.Newf(gwerr.ConfigInvalid, "load_balancers: duplicate name %q", lb.Name)
		}
		names[lb.Name] = true

		switch lb.MatchRule.Type {
		case "path_start_with", "path_regex":
		default:
			return gwerr.Newf(gwerr.ConfigInvalid, "load balancer %q: match_rule.type must be path_start_with or path_regex", lb.Name)
		}
		if lb.MatchRule.Value == "" {
			return gwerr.Newf(gwerr.ConfigInvalid, "load balancer %q: match_rule.value is required", lb.Name)
		}
		if lb.MatchRule.Type == "path_regex" {
			if _, err := regexp.Compile(lb.MatchRule.Value); err != nil {
				return gwerr.Wrap(gwerr.ConfigInvalid, fmt.Sprintf("load balancer %q: invalid match_rule regex", lb.Name), err)
			}
		}
		if lb.Rewrite != nil {
			if _, err := regexp.Compile(lb.Rewrite.Regex); err != nil {
				return gwerr.Wrap(gwerr.ConfigInvalid, fmt.Sprintf("load balancer %q: invalid rewrite regex", lb.Name), err)
			}
		}

		switch lb.ServiceDiscovery {
		case "static":
			if len(lb.StaticUpstream) == 0 {
				return gwerr.Newf(gwerr.ConfigInvalid, "load balancer %q: static discovery requires static_upstream", lb.Name)
			}
		case "container":
		default:
			return gwerr.Newf(gwerr.ConfigInvalid, "load balancer %q: service_discovery must be static or container", lb.Name)
		}
	}

	return nil
}
