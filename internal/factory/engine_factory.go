package factory

import (
	"fmt"

	"github.com/mikey/phish-scanner/internal/config"
	"github.com/mikey/phish-scanner/internal/heuristics"
	"github.com/mikey/phish-scanner/internal/indicators"
	"go.uber.org/zap"
)

// EngineFactory creates the heuristic engine
type EngineFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewEngineFactory creates a new engine factory
func NewEngineFactory(cfg *config.Config, logger *zap.Logger) *EngineFactory {
	return &EngineFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateEngine creates the engine from the configured rules and vocabulary
func (f *EngineFactory) CreateEngine() (*heuristics.Engine, error) {
	engineConfig := f.cfg.GetEngine()
	switch engineConfig.CoreMode {
	case indicators.ModeNaive, indicators.ModePublicSuffix:
	default:
		return nil, fmt.Errorf("unsupported domain core mode: %s", engineConfig.CoreMode)
	}

	engine := heuristics.NewEngine(f.cfg.GetVocabulary(), heuristics.Options{
		CoreMode: engineConfig.CoreMode,
		Rules:    engineConfig.Rules,
		Parallel: engineConfig.Parallel,
	}, f.logger)

	f.logger.Info("Heuristic engine ready",
		zap.Strings("rules", engine.Rules()),
		zap.String("core_mode", engineConfig.CoreMode),
		zap.Bool("parallel", engineConfig.Parallel))
	return engine, nil
}
