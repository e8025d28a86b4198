package factory

import (
	"fmt"
	"time"

	"github.com/mikey/phish-scanner/internal/adapters/resolver"
	"github.com/mikey/phish-scanner/internal/config"
	"github.com/mikey/phish-scanner/internal/core"
	"go.uber.org/zap"
)

// ResolverFactory creates TXT resolvers based on configuration
type ResolverFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewResolverFactory creates a new resolver factory
func NewResolverFactory(cfg *config.Config, logger *zap.Logger) *ResolverFactory {
	return &ResolverFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateResolver creates the resolver used for SPF and DMARC lookups
func (f *ResolverFactory) CreateResolver() (core.TXTResolver, error) {
	dnsConfig, err := f.cfg.GetDNS()
	if err != nil {
		return nil, fmt.Errorf("invalid dns configuration: %w", err)
	}
	if !dnsConfig.Enabled {
		f.logger.Info("DNS lookups disabled, SPF and DMARC will be reported as not found")
		return resolver.NoopResolver{}, nil
	}
	return resolver.NewDNSResolver(dnsConfig.Server, dnsConfig.Timeout, dnsConfig.CacheTTL, f.logger)
}

// GetLookupTimeout returns the timeout applied to a scan's DNS lookups
func (f *ResolverFactory) GetLookupTimeout() time.Duration {
	dnsConfig, err := f.cfg.GetDNS()
	if err != nil {
		f.logger.Warn("Invalid dns timeout, using default", zap.Error(err))
		return 3 * time.Second
	}
	return dnsConfig.Timeout
}
