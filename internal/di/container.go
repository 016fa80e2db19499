package di

import (
	"fmt"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/TheRocketCodeMX/sura-classifier-app/internal/adapters/httpapi"
	"github.com/TheRocketCodeMX/sura-classifier-app/internal/adapters/intake"
	"github.com/TheRocketCodeMX/sura-classifier-app/internal/attachment"
	"github.com/TheRocketCodeMX/sura-classifier-app/internal/config"
	"github.com/TheRocketCodeMX/sura-classifier-app/internal/core"
	"github.com/TheRocketCodeMX/sura-classifier-app/internal/factory"
	"github.com/TheRocketCodeMX/sura-classifier-app/internal/logging"
	"github.com/TheRocketCodeMX/sura-classifier-app/internal/normalize"
	"github.com/TheRocketCodeMX/sura-classifier-app/internal/reclassify"
	"github.com/TheRocketCodeMX/sura-classifier-app/internal/utils"
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

	// Register text processor
	if err := container.Provide(utils.NewTextProcessor); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewStoreFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewSourceFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewEngineFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewLibraryFactory); err != nil {
		return nil, err
	}

	// Register content normalizer
	if err := container.Provide(func(tp *utils.TextProcessor, cfg *config.Config, logger *zap.Logger) core.Normalizer {
		return normalize.NewNormalizer(tp, logger, cfg.GetNormalize().MaxExcerpt)
	}); err != nil {
		return nil, err
	}

	// Register attachment detector
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) core.AttachmentClassifier {
		return attachment.NewDetector(logger, cfg.GetAttachment().MinImageBytes)
	}); err != nil {
		return nil, err
	}

	// Register scoring engine
	if err := container.Provide(func(f *factory.EngineFactory) (core.RuleEngine, error) {
		return f.CreateEngine()
	}); err != nil {
		return nil, err
	}

	// Register pattern library
	if err := container.Provide(func(f *factory.LibraryFactory) (core.RuleLibrary, error) {
		return f.CreateLibrary()
	}); err != nil {
		return nil, err
	}

	// Register record store
	if err := container.Provide(func(f *factory.StoreFactory) (core.Store, error) {
		return f.CreateStore()
	}); err != nil {
		return nil, err
	}

	// Register classifier service
	if err := container.Provide(func(
		normalizer core.Normalizer,
		detector core.AttachmentClassifier,
		engine core.RuleEngine,
		library core.RuleLibrary,
		store core.Store,
		logger *zap.Logger,
		f *factory.EngineFactory,
	) *core.ClassifierService {
		return core.NewClassifierService(normalizer, detector, engine, library, store, logger, f.Workers())
	}); err != nil {
		return nil, err
	}

	// Register re-classification pass
	if err := container.Provide(func(
		service *core.ClassifierService,
		store core.Store,
		logger *zap.Logger,
	) *reclassify.Pass {
		return reclassify.NewPass(service, store, logger, 0)
	}); err != nil {
		return nil, err
	}

	// Register HTTP API server
	if err := container.Provide(func(
		cfg *config.Config,
		service *core.ClassifierService,
		store core.Store,
		logger *zap.Logger,
	) *httpapi.Server {
		return httpapi.NewServer(cfg.GetServer().ListenAddress, service, store, logger)
	}); err != nil {
		return nil, err
	}

	// Register SMTP intake
	if err := container.Provide(func(
		cfg *config.Config,
		service *core.ClassifierService,
		logger *zap.Logger,
	) (*intake.SMTPIntake, error) {
		intakeCfg := cfg.GetIntake()
		readTimeout, err := cfg.GetDuration("intake.read_timeout")
		if err != nil {
			return nil, fmt.Errorf("invalid intake.read_timeout: %w", err)
		}
		writeTimeout, err := cfg.GetDuration("intake.write_timeout")
		if err != nil {
			return nil, fmt.Errorf("invalid intake.write_timeout: %w", err)
		}
		return intake.NewSMTPIntake(service, logger,
			intakeCfg.ListenAddress,
			intakeCfg.Domain,
			intakeCfg.MaxMessageBytes,
			readTimeout,
			writeTimeout,
		), nil
	}); err != nil {
		return nil, err
	}

	return container, nil
}
