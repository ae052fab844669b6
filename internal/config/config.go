package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the full ci-buglist configuration
type Config struct {
	Launchpad   LaunchpadConfig   `mapstructure:"launchpad"`
	Report      ReportConfig      `mapstructure:"report"`
	Credentials CredentialsConfig `mapstructure:"credentials"`
}

// LaunchpadConfig contains tracker connection settings
type LaunchpadConfig struct {
	ServiceRoot string `mapstructure:"service_root"` // alias (production, staging, ...) or URL
	APIVersion  string `mapstructure:"api_version"`
	Consumer    string `mapstructure:"consumer"` // OAuth consumer key identifying this application
	Timeout     string `mapstructure:"timeout"`
}

// ReportConfig selects which bugs end up in the report
type ReportConfig struct {
	Project string `mapstructure:"project"`
	Series  string `mapstructure:"series"`
	Status  string `mapstructure:"status"`
}

// CredentialsConfig points at the stored OAuth access token
type CredentialsConfig struct {
	File               string `mapstructure:"file"`
	Secret             string `mapstructure:"secret"` // GCP Secret Manager path
	GCPCredentialsFile string `mapstructure:"gcp_credentials_file"`
}

// Default values reproduce the behaviour of the openstack-ci bug list.
const (
	DefaultServiceRoot = "production"
	DefaultAPIVersion  = "devel"
	DefaultConsumer    = "openstack-dm"
	DefaultTimeout     = "60s"
	DefaultProject     = "openstack-ci"
	DefaultSeries      = "trunk"
	DefaultStatus      = "Fix Released"
)

// serviceRoots maps the well-known Launchpad instance names to their API roots.
var serviceRoots = map[string]string{
	"production": "https://api.launchpad.net/",
	"staging":    "https://api.staging.launchpad.net/",
	"qastaging":  "https://api.qastaging.launchpad.net/",
	"dogfood":    "https://api.dogfood.paddev.net/",
}

// SetDefaults registers every key with v so that environment variables
// reach Unmarshal even when no config file or flag mentions them.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("launchpad.service_root", DefaultServiceRoot)
	v.SetDefault("launchpad.api_version", DefaultAPIVersion)
	v.SetDefault("launchpad.consumer", DefaultConsumer)
	v.SetDefault("launchpad.timeout", DefaultTimeout)
	v.SetDefault("report.project", DefaultProject)
	v.SetDefault("report.series", DefaultSeries)
	v.SetDefault("report.status", DefaultStatus)
	v.SetDefault("credentials.file", "")
	v.SetDefault("credentials.secret", "")
	v.SetDefault("credentials.gcp_credentials_file", "")
}

// Load loads configuration from file and environment
func Load() (*Config, error) {
	cfg := &Config{}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(cfg)

	return cfg, nil
}

// applyDefaults sets default values for unset fields
func applyDefaults(cfg *Config) {
	if cfg.Launchpad.ServiceRoot == "" {
		cfg.Launchpad.ServiceRoot = DefaultServiceRoot
	}

	if cfg.Launchpad.APIVersion == "" {
		cfg.Launchpad.APIVersion = DefaultAPIVersion
	}

	if cfg.Launchpad.Consumer == "" {
		cfg.Launchpad.Consumer = DefaultConsumer
	}

	if cfg.Launchpad.Timeout == "" {
		cfg.Launchpad.Timeout = DefaultTimeout
	}

	if cfg.Report.Project == "" {
		cfg.Report.Project = DefaultProject
	}

	if cfg.Report.Series == "" {
		cfg.Report.Series = DefaultSeries
	}

	if cfg.Report.Status == "" {
		cfg.Report.Status = DefaultStatus
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if _, err := c.ServiceRootURL(); err != nil {
		return err
	}

	if strings.Contains(c.Launchpad.APIVersion, "/") {
		return fmt.Errorf("invalid api_version: %s", c.Launchpad.APIVersion)
	}

	if c.Launchpad.Consumer == "" {
		return fmt.Errorf("launchpad consumer is required")
	}

	if _, err := c.RequestTimeout(); err != nil {
		return err
	}

	if c.Report.Project == "" {
		return fmt.Errorf("project is required")
	}

	if c.Report.Series == "" {
		return fmt.Errorf("series is required")
	}

	if c.Report.Status == "" {
		return fmt.Errorf("status is required")
	}

	return nil
}

// ServiceRootURL resolves the configured service root to an API base URL
// ending in a slash.
func (c *Config) ServiceRootURL() (string, error) {
	root := c.Launchpad.ServiceRoot
	if resolved, ok := serviceRoots[root]; ok {
		return resolved, nil
	}

	u, err := url.Parse(root)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("invalid service_root: %s (must be production, staging, qastaging, dogfood or an http(s) URL)", root)
	}

	if !strings.HasSuffix(root, "/") {
		root += "/"
	}
	return root, nil
}

// RequestTimeout returns the per-request HTTP timeout. Zero disables it.
func (c *Config) RequestTimeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.Launchpad.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid timeout: %s must not be negative", c.Launchpad.Timeout)
	}
	return d, nil
}
