package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/TheRocketCodeMX/sura-classifier-app/internal/adapters/httpapi"
	"github.com/TheRocketCodeMX/sura-classifier-app/internal/adapters/intake"
	"github.com/TheRocketCodeMX/sura-classifier-app/internal/config"
	"github.com/TheRocketCodeMX/sura-classifier-app/internal/core"
	"github.com/TheRocketCodeMX/sura-classifier-app/internal/di"
	"github.com/TheRocketCodeMX/sura-classifier-app/internal/factory"
	"github.com/TheRocketCodeMX/sura-classifier-app/internal/patterns"
	"github.com/TheRocketCodeMX/sura-classifier-app/internal/ports"
	"github.com/TheRocketCodeMX/sura-classifier-app/internal/reclassify"
	"github.com/TheRocketCodeMX/sura-classifier-app/internal/report"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "sura-classifier",
		Short: "Rule-based classifier for insurance request emails",
		Long: `sura-classifier sorts extracted Outlook emails into the insurance
request categories Cotización, Renovación and Endoso using a versioned
pattern library, and serves the classified dataset over a JSON API.`,
	}

	rootCmd.AddCommand(classifyCmd())
	rootCmd.AddCommand(reclassifyCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(statsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func classifyCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify every email in an extraction archive",
		Long: `Walk an extraction archive directory, classify every email against the
configured pattern library and store the records and results.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClassify(dir)
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "extraction archive directory (default from config)")

	return cmd
}

func reclassifyCmd() *cobra.Command {
	var patternsFile string

	cmd := &cobra.Command{
		Use:   "reclassify",
		Short: "Re-run classification over the stored dataset",
		Long: `Re-classify every stored email, keeping the stored result unless the new
library classifies the email or raises its confidence. Pass --patterns to
load an updated pattern library for the run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReclassify(patternsFile)
		},
	}

	cmd.Flags().StringVar(&patternsFile, "patterns", "", "pattern library file (default: configured library)")

	return cmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard API and the optional SMTP intake",
		Long: `Start the HTTP dashboard API and, when enabled, the SMTP intake, and run
until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show stored dataset statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats()
		},
	}
}

func runClassify(dir string) error {
	container, err := di.BuildContainer()
	if err != nil {
		return fmt.Errorf("failed to build dependency container: %w", err)
	}

	return container.Invoke(func(
		logger *zap.Logger,
		service *core.ClassifierService,
		sources *factory.SourceFactory,
		store core.Store,
	) error {
		defer logger.Sync()
		defer closeStore(store, logger)

		src, err := sources.CreateArchiveSource(dir)
		if err != nil {
			return err
		}
		defer src.Close()

		ctx, cancel := interruptContext()
		defer cancel()

		summary, err := service.ClassifyBatch(ctx, src)
		if summary != nil {
			fmt.Print(report.Batch(summary))
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
}

func runReclassify(patternsFile string) error {
	container, err := di.BuildContainer()
	if err != nil {
		return fmt.Errorf("failed to build dependency container: %w", err)
	}

	return container.Invoke(func(
		logger *zap.Logger,
		service *core.ClassifierService,
		pass *reclassify.Pass,
		store core.Store,
	) error {
		defer logger.Sync()
		defer closeStore(store, logger)

		lib := service.Library()
		if patternsFile != "" {
			loaded, err := patterns.Load(patternsFile)
			if err != nil {
				return fmt.Errorf("failed to load pattern library: %w", err)
			}
			service.ReplaceLibrary(loaded)
			lib = loaded
		}

		ctx, cancel := interruptContext()
		defer cancel()

		summary, err := pass.Run(ctx, lib)
		if summary != nil {
			fmt.Print(report.Reclassification(summary))
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
}

func runServe() error {
	container, err := di.BuildContainer()
	if err != nil {
		return fmt.Errorf("failed to build dependency container: %w", err)
	}

	return container.Invoke(func(
		logger *zap.Logger,
		cfg *config.Config,
		server *httpapi.Server,
		smtpIntake *intake.SMTPIntake,
		store core.Store,
	) error {
		defer logger.Sync()
		defer closeStore(store, logger)

		var runners []ports.Runner
		if cfg.GetServer().Enabled {
			runners = append(runners, server)
		}
		if cfg.GetIntake().Enabled {
			runners = append(runners, smtpIntake)
		}
		if len(runners) == 0 {
			return fmt.Errorf("nothing to serve: both the HTTP API and the SMTP intake are disabled")
		}

		for _, r := range runners {
			if err := r.Start(); err != nil {
				return err
			}
		}

		// Handle graceful shutdown
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		<-sigCh
		logger.Info("Shutting down...")

		for _, r := range runners {
			if err := r.Stop(); err != nil {
				logger.Error("Failed to stop adapter", zap.Error(err))
			}
		}

		logger.Info("Shutdown complete")
		return nil
	})
}

func runStats() error {
	container, err := di.BuildContainer()
	if err != nil {
		return fmt.Errorf("failed to build dependency container: %w", err)
	}

	return container.Invoke(func(logger *zap.Logger, store core.Store) error {
		defer logger.Sync()
		defer closeStore(store, logger)

		stats, err := store.Stats(context.Background())
		if err != nil {
			return err
		}
		fmt.Print(report.Dataset(stats))
		return nil
	})
}

// interruptContext returns a context cancelled by SIGINT or SIGTERM.
func interruptContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

// closeStore releases the store's backing connection when it has one.
func closeStore(store core.Store, logger *zap.Logger) {
	if closer, ok := store.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close store", zap.Error(err))
		}
	}
}
