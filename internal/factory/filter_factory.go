package factory

import (
	"fmt"

	"github.com/mikey/phish-scanner/internal/adapters/filter"
	"github.com/mikey/phish-scanner/internal/config"
	"github.com/mikey/phish-scanner/internal/core"
	"github.com/mikey/phish-scanner/internal/ports"
	"github.com/mikey/phish-scanner/internal/whitelist"
	"go.uber.org/zap"
)

// FilterFactory creates email filters based on configuration
type FilterFactory struct {
	cfg         *config.Config
	logger      *zap.Logger
	scanService *core.ScanService
	whitelist   *whitelist.Checker
}

// NewFilterFactory creates a new filter factory
func NewFilterFactory(cfg *config.Config, logger *zap.Logger, scanService *core.ScanService, checker *whitelist.Checker) *FilterFactory {
	return &FilterFactory{
		cfg:         cfg,
		logger:      logger,
		scanService: scanService,
		whitelist:   checker,
	}
}

// CreateEmailFilter creates an email filter based on the configuration
func (f *FilterFactory) CreateEmailFilter() (ports.EmailFilter, error) {
	serverConfig, err := f.cfg.GetServer()
	if err != nil {
		return nil, fmt.Errorf("invalid server configuration: %w", err)
	}

	switch serverConfig.FilterType {
	case "postfix":
		return filter.NewPostfixFilter(f.scanService, f.whitelist, f.logger, filter.PostfixOptions{
			ListenAddr:     serverConfig.ListenAddress,
			BlockPhishing:  serverConfig.BlockPhishing,
			VerdictHeader:  serverConfig.VerdictHeader,
			ScoreHeader:    serverConfig.ScoreHeader,
			RiskHeader:     serverConfig.RiskHeader,
			ReasonHeader:   serverConfig.ReasonHeader,
			PostfixAddr:    serverConfig.PostfixAddress,
			PostfixPort:    serverConfig.PostfixPort,
			PostfixEnabled: serverConfig.PostfixEnabled,
			SubjectPrefix:  serverConfig.SubjectPrefix,
			ModifySubject:  serverConfig.ModifySubject,
			ScanTimeout:    serverConfig.ScanTimeout,
		}), nil
	case "cli":
		return f.CreateCliFilter()
	default:
		return nil, fmt.Errorf("unsupported filter type: %s", serverConfig.FilterType)
	}
}

// CreateCliFilter creates the command-line filter
func (f *FilterFactory) CreateCliFilter() (*filter.CliFilter, error) {
	return filter.NewCliFilter(
		f.scanService,
		f.whitelist,
		f.logger,
		f.cfg.GetBool("cli.verbose"),
		f.cfg.GetBool("cli.json"),
	)
}
