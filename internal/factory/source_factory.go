package factory

import (
	"go.uber.org/zap"

	"github.com/TheRocketCodeMX/sura-classifier-app/internal/adapters/archive"
	"github.com/TheRocketCodeMX/sura-classifier-app/internal/config"
	"github.com/TheRocketCodeMX/sura-classifier-app/internal/core"
)

// SourceFactory creates record sources over the extraction archive
type SourceFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewSourceFactory creates a new source factory
func NewSourceFactory(cfg *config.Config, logger *zap.Logger) *SourceFactory {
	return &SourceFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateArchiveSource creates a source over an extraction directory. An empty
// dir falls back to the configured archive location.
func (f *SourceFactory) CreateArchiveSource(dir string) (core.RecordSource, error) {
	archiveCfg := f.cfg.GetArchive()
	if dir == "" {
		dir = archiveCfg.Dir
	}
	return archive.NewDirReader(dir, archiveCfg.SniffContent, f.logger)
}

// CreateFileSource creates a source over individual .eml files
func (f *SourceFactory) CreateFileSource(paths ...string) core.RecordSource {
	return archive.NewFileSource(f.logger, paths...)
}
