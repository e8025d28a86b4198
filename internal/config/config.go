package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/mikey/phish-scanner/internal/heuristics"
)

// Config represents the application configuration
type Config struct {
	v *viper.Viper
}

// New creates a new configuration instance
func New() (*Config, error) {
	return NewFromFile("")
}

// NewFromFile creates a configuration instance reading the given file, or
// searching the default locations when path is empty
func NewFromFile(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/phish-scanner/")
		v.AddConfigPath("$HOME/.phish-scanner")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Set defaults
	setDefaults(v)

	// Environment variables
	v.AutomaticEnv()
	v.SetEnvPrefix("PHISH_SCANNER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults
	}

	return &Config{v: v}, nil
}

// NewFromViper creates a new configuration instance from an existing Viper instance
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a new Viper instance with defaults
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// Engine defaults
	v.SetDefault("engine.parallel", false)
	for _, rule := range RuleKeys {
		v.SetDefault("engine.rules."+rule, true)
	}
	v.SetDefault("domains.core_mode", "naive")

	// Vocabulary defaults
	vocab := heuristics.DefaultVocabulary()
	v.SetDefault("vocabulary.brands", vocab.Brands)
	v.SetDefault("vocabulary.brandish_keywords", vocab.BrandishKeywords)
	v.SetDefault("vocabulary.freemail_providers", vocab.FreemailProviders)
	v.SetDefault("vocabulary.shorteners", vocab.Shorteners)
	v.SetDefault("vocabulary.risky_tlds", vocab.RiskyTLDs)
	v.SetDefault("vocabulary.multi_label_tlds", vocab.MultiLabelTLDs)
	v.SetDefault("vocabulary.urgency_strong", vocab.UrgencyStrong)
	v.SetDefault("vocabulary.urgency_weak", vocab.UrgencyWeak)

	// DNS defaults
	v.SetDefault("dns.enabled", true)
	v.SetDefault("dns.server", "")
	v.SetDefault("dns.timeout", "3s")
	v.SetDefault("dns.cache_ttl", "5m")

	// Server defaults
	v.SetDefault("server.filter_type", "postfix")
	v.SetDefault("server.listen_address", "0.0.0.0:10025")
	v.SetDefault("server.block_phishing", false)
	v.SetDefault("server.scan_timeout", "10s")
	v.SetDefault("server.headers.verdict", "X-Phish-Verdict")
	v.SetDefault("server.headers.score", "X-Phish-Score")
	v.SetDefault("server.headers.risk", "X-Phish-Risk")
	v.SetDefault("server.headers.reason", "X-Phish-Reason")
	v.SetDefault("server.postfix.address", "127.0.0.1")
	v.SetDefault("server.postfix.port", 10026)
	v.SetDefault("server.postfix.enabled", true)
	v.SetDefault("server.modify_subject", false)
	v.SetDefault("server.subject_prefix", "")
	v.SetDefault("server.whitelisted_domains", []string{})

	// Store defaults
	v.SetDefault("store.type", "memory")
	v.SetDefault("store.enabled", true)
	v.SetDefault("store.retention", "720h")
	v.SetDefault("store.cleanup_frequency", "1h")
	v.SetDefault("store.sqlite_path", "/data/phish_scans.db")
	v.SetDefault("store.mysql_dsn", "user:password@tcp(localhost:3306)/phish_scanner")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// GetString gets a string value from the configuration
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt gets an integer value from the configuration
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetBool gets a boolean value from the configuration
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetStringSlice gets a string slice value from the configuration
func (c *Config) GetStringSlice(key string) []string {
	return c.v.GetStringSlice(key)
}

// GetDuration gets a duration value from the configuration
func (c *Config) GetDuration(key string) (time.Duration, error) {
	d, err := time.ParseDuration(c.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	return d, nil
}

// GetViper returns the underlying Viper instance
func (c *Config) GetViper() *viper.Viper {
	return c.v
}
