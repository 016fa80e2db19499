package factory

import (
	"go.uber.org/zap"

	"github.com/TheRocketCodeMX/sura-classifier-app/internal/config"
	"github.com/TheRocketCodeMX/sura-classifier-app/internal/core"
	"github.com/TheRocketCodeMX/sura-classifier-app/internal/patterns"
)

// LibraryFactory creates pattern libraries based on configuration
type LibraryFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewLibraryFactory creates a new library factory
func NewLibraryFactory(cfg *config.Config, logger *zap.Logger) *LibraryFactory {
	return &LibraryFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateLibrary loads the configured pattern library file, or returns the
// built-in default library when no file is configured.
func (f *LibraryFactory) CreateLibrary() (core.RuleLibrary, error) {
	path := f.cfg.GetPatterns().File
	if path == "" {
		f.logger.Info("Using built-in pattern library",
			zap.String("version", patterns.DefaultVersion))
		return patterns.Default(), nil
	}

	lib, err := patterns.Load(path)
	if err != nil {
		return nil, err
	}
	f.logger.Info("Loaded pattern library",
		zap.String("path", path),
		zap.String("version", lib.Version()))
	return lib, nil
}
