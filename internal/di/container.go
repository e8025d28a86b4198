package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/phish-scanner/internal/config"
	"github.com/mikey/phish-scanner/internal/core"
	"github.com/mikey/phish-scanner/internal/factory"
	"github.com/mikey/phish-scanner/internal/heuristics"
	"github.com/mikey/phish-scanner/internal/logging"
	"github.com/mikey/phish-scanner/internal/ports"
	"github.com/mikey/phish-scanner/internal/whitelist"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	if err := provideScanner(container); err != nil {
		return nil, err
	}

	// Register email filter
	if err := container.Provide(func(f *factory.FilterFactory) (ports.EmailFilter, error) {
		return f.CreateEmailFilter()
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// provideScanner registers everything the scan service needs. The container
// must already provide *config.Config and *zap.Logger.
func provideScanner(container *dig.Container) error {
	// Register factories
	if err := container.Provide(factory.NewEngineFactory); err != nil {
		return err
	}
	if err := container.Provide(factory.NewResolverFactory); err != nil {
		return err
	}
	if err := container.Provide(factory.NewStoreFactory); err != nil {
		return err
	}
	if err := container.Provide(factory.NewFilterFactory); err != nil {
		return err
	}

	// Register heuristic engine
	if err := container.Provide(func(f *factory.EngineFactory) (*heuristics.Engine, error) {
		return f.CreateEngine()
	}); err != nil {
		return err
	}

	// Register TXT resolver
	if err := container.Provide(func(f *factory.ResolverFactory) (core.TXTResolver, error) {
		return f.CreateResolver()
	}); err != nil {
		return err
	}

	// Register scan repository
	if err := container.Provide(func(f *factory.StoreFactory) (core.ScanRepository, error) {
		return f.CreateScanRepository()
	}); err != nil {
		return err
	}

	// Register whitelist checker
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) *whitelist.Checker {
		whitelistedDomains := cfg.GetStringSlice("server.whitelisted_domains")
		if len(whitelistedDomains) > 0 {
			logger.Info("Loaded whitelisted domains", zap.Strings("domains", whitelistedDomains))
		}
		return whitelist.NewChecker(whitelistedDomains, logger)
	}); err != nil {
		return err
	}

	// Register scan service
	return container.Provide(func(
		engine *heuristics.Engine,
		txtResolver core.TXTResolver,
		repo core.ScanRepository,
		logger *zap.Logger,
		rf *factory.ResolverFactory,
		sf *factory.StoreFactory,
	) *core.ScanService {
		return core.NewScanService(engine, txtResolver, repo, logger, sf.IsStoreEnabled(), rf.GetLookupTimeout())
	})
}
