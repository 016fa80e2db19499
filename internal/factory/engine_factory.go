package factory

import (
	"go.uber.org/zap"

	"github.com/TheRocketCodeMX/sura-classifier-app/internal/config"
	"github.com/TheRocketCodeMX/sura-classifier-app/internal/core"
	"github.com/TheRocketCodeMX/sura-classifier-app/internal/scoring"
)

// EngineFactory creates scoring engines from the configured decision policy
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

// CreatePolicy builds the decision policy from the configuration
func (f *EngineFactory) CreatePolicy() scoring.Policy {
	scoringCfg := f.cfg.GetScoring()
	return scoring.Policy{
		GlobalFloor: scoringCfg.GlobalFloor,
		Thresholds: map[core.Category]float64{
			core.CategoryCotizacion: scoringCfg.Cotizacion,
			core.CategoryRenovacion: scoringCfg.Renovacion,
			core.CategoryEndoso:     scoringCfg.Endoso,
		},
		Epsilon:     scoringCfg.Epsilon,
		SaturationK: scoringCfg.SaturationK,
	}
}

// CreateEngine creates a scoring engine, validating the configured policy
func (f *EngineFactory) CreateEngine() (*scoring.Engine, error) {
	return scoring.NewEngine(f.CreatePolicy(), f.logger)
}

// Workers returns the configured batch worker count
func (f *EngineFactory) Workers() int {
	return f.cfg.GetScoring().Workers
}
