package config

import (
	"time"

	"github.com/mikey/phish-scanner/internal/heuristics"
)

// RuleKeys are the configuration keys of the heuristic rules under engine.rules
var RuleKeys = []string{"h1", "h2", "h3", "h4", "h5", "h6", "h7", "h8"}

// EngineConfig represents the configuration of the heuristic engine
type EngineConfig struct {
	CoreMode string
	Rules    map[string]bool
	Parallel bool
}

// DNSConfig represents the configuration of the TXT resolver
type DNSConfig struct {
	Enabled  bool
	Server   string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// StoreConfig represents the configuration of the scan store
type StoreConfig struct {
	Type             string
	Enabled          bool
	Retention        time.Duration
	CleanupFrequency time.Duration
	SQLitePath       string
	MySQLDSN         string
}

// ServerConfig represents the configuration of the SMTP content filter
type ServerConfig struct {
	FilterType         string
	ListenAddress      string
	BlockPhishing      bool
	ScanTimeout        time.Duration
	VerdictHeader      string
	ScoreHeader        string
	RiskHeader         string
	ReasonHeader       string
	PostfixAddress     string
	PostfixPort        int
	PostfixEnabled     bool
	ModifySubject      bool
	SubjectPrefix      string
	WhitelistedDomains []string
}

// GetEngine returns the engine configuration
func (c *Config) GetEngine() EngineConfig {
	rules := make(map[string]bool, len(RuleKeys))
	for _, key := range RuleKeys {
		rules[key] = c.GetBool("engine.rules." + key)
	}
	return EngineConfig{
		CoreMode: c.GetString("domains.core_mode"),
		Rules:    rules,
		Parallel: c.GetBool("engine.parallel"),
	}
}

// GetVocabulary returns the word and domain lists used by the rules
func (c *Config) GetVocabulary() heuristics.Vocabulary {
	return heuristics.Vocabulary{
		Brands:            c.GetStringSlice("vocabulary.brands"),
		BrandishKeywords:  c.GetStringSlice("vocabulary.brandish_keywords"),
		FreemailProviders: c.GetStringSlice("vocabulary.freemail_providers"),
		Shorteners:        c.GetStringSlice("vocabulary.shorteners"),
		RiskyTLDs:         c.GetStringSlice("vocabulary.risky_tlds"),
		MultiLabelTLDs:    c.GetStringSlice("vocabulary.multi_label_tlds"),
		UrgencyStrong:     c.GetStringSlice("vocabulary.urgency_strong"),
		UrgencyWeak:       c.GetStringSlice("vocabulary.urgency_weak"),
	}
}

// GetDNS returns the resolver configuration
func (c *Config) GetDNS() (DNSConfig, error) {
	timeout, err := c.GetDuration("dns.timeout")
	if err != nil {
		return DNSConfig{}, err
	}
	cacheTTL, err := c.GetDuration("dns.cache_ttl")
	if err != nil {
		return DNSConfig{}, err
	}
	return DNSConfig{
		Enabled:  c.GetBool("dns.enabled"),
		Server:   c.GetString("dns.server"),
		Timeout:  timeout,
		CacheTTL: cacheTTL,
	}, nil
}

// GetStore returns the scan store configuration
func (c *Config) GetStore() (StoreConfig, error) {
	retention, err := c.GetDuration("store.retention")
	if err != nil {
		return StoreConfig{}, err
	}
	cleanup, err := c.GetDuration("store.cleanup_frequency")
	if err != nil {
		return StoreConfig{}, err
	}
	return StoreConfig{
		Type:             c.GetString("store.type"),
		Enabled:          c.GetBool("store.enabled"),
		Retention:        retention,
		CleanupFrequency: cleanup,
		SQLitePath:       c.GetString("store.sqlite_path"),
		MySQLDSN:         c.GetString("store.mysql_dsn"),
	}, nil
}

// GetServer returns the content filter configuration
func (c *Config) GetServer() (ServerConfig, error) {
	scanTimeout, err := c.GetDuration("server.scan_timeout")
	if err != nil {
		return ServerConfig{}, err
	}
	return ServerConfig{
		FilterType:         c.GetString("server.filter_type"),
		ListenAddress:      c.GetString("server.listen_address"),
		BlockPhishing:      c.GetBool("server.block_phishing"),
		ScanTimeout:        scanTimeout,
		VerdictHeader:      c.GetString("server.headers.verdict"),
		ScoreHeader:        c.GetString("server.headers.score"),
		RiskHeader:         c.GetString("server.headers.risk"),
		ReasonHeader:       c.GetString("server.headers.reason"),
		PostfixAddress:     c.GetString("server.postfix.address"),
		PostfixPort:        c.GetInt("server.postfix.port"),
		PostfixEnabled:     c.GetBool("server.postfix.enabled"),
		ModifySubject:      c.GetBool("server.modify_subject"),
		SubjectPrefix:      c.GetString("server.subject_prefix"),
		WhitelistedDomains: c.GetStringSlice("server.whitelisted_domains"),
	}, nil
}
