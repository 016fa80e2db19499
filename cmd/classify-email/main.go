package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/TheRocketCodeMX/sura-classifier-app/internal/adapters/archive"
	"github.com/TheRocketCodeMX/sura-classifier-app/internal/attachment"
	"github.com/TheRocketCodeMX/sura-classifier-app/internal/config"
	"github.com/TheRocketCodeMX/sura-classifier-app/internal/core"
	"github.com/TheRocketCodeMX/sura-classifier-app/internal/extract"
	"github.com/TheRocketCodeMX/sura-classifier-app/internal/factory"
	"github.com/TheRocketCodeMX/sura-classifier-app/internal/logging"
	"github.com/TheRocketCodeMX/sura-classifier-app/internal/normalize"
	"github.com/TheRocketCodeMX/sura-classifier-app/internal/patterns"
	"github.com/TheRocketCodeMX/sura-classifier-app/internal/utils"
)

var (
	// Pattern library flags
	patternsFile = flag.String("patterns", "", "Pattern library file (built-in library if not specified)")

	// Input flags
	inputFile  = flag.String("file", "", "Input email file (use stdin if not specified)")
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	jsonLog    = flag.Bool("json-log", false, "Output logs in JSON format")
	configFile = flag.String("config", "", "Path to config file (overrides defaults)")
)

func main() {
	flag.Parse()

	var cfg *config.Config
	var err error

	// Initialize logger
	logger, err := logging.InitConsoleLogger(*verbose, *jsonLog)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Load configuration from file if specified
	if *configFile != "" {
		cfg, err = config.New()
		if err != nil {
			logger.Fatal("Failed to load configuration", zap.Error(err))
		}
		logger.Info("Loaded configuration from file", zap.String("file", cfg.GetViper().ConfigFileUsed()))
	} else {
		cfg = config.NewFromViper(config.NewEmptyViper())
	}

	// Build the classification pipeline
	textProcessor := utils.NewTextProcessor(logger)
	normalizer := normalize.NewNormalizer(textProcessor, logger, cfg.GetNormalize().MaxExcerpt)
	detector := attachment.NewDetector(logger, cfg.GetAttachment().MinImageBytes)

	engine, err := factory.NewEngineFactory(cfg, logger).CreateEngine()
	if err != nil {
		logger.Fatal("Failed to create scoring engine", zap.Error(err))
	}

	// Load the pattern library
	var lib core.RuleLibrary
	if *patternsFile != "" {
		lib, err = patterns.Load(*patternsFile)
		if err != nil {
			logger.Fatal("Failed to load pattern library", zap.Error(err), zap.String("file", *patternsFile))
		}
	} else {
		lib, err = factory.NewLibraryFactory(cfg, logger).CreateLibrary()
		if err != nil {
			logger.Fatal("Failed to load pattern library", zap.Error(err))
		}
	}

	// Read email from file or stdin
	var emailReader io.Reader
	if *inputFile != "" {
		file, err := os.Open(*inputFile)
		if err != nil {
			logger.Fatal("Failed to open input file", zap.Error(err), zap.String("file", *inputFile))
		}
		defer file.Close()
		emailReader = file
		logger.Info("Reading email from file", zap.String("file", *inputFile))
	} else {
		emailReader = os.Stdin
		logger.Info("Reading email from stdin")
	}

	// Parse email
	rec, err := archive.ParseEML(bufio.NewReader(emailReader))
	if err != nil {
		logger.Fatal("Failed to parse email", zap.Error(err))
	}

	from := rec.SenderEmail
	if rec.SenderName != "" {
		from = fmt.Sprintf("%s <%s>", rec.SenderName, rec.SenderEmail)
	}

	// Print email summary
	fmt.Printf("\n=== Email Summary ===\n")
	fmt.Printf("From: %s\n", from)
	fmt.Printf("To: %s\n", strings.Join(rec.Recipients, ", "))
	fmt.Printf("Subject: %s\n", rec.Subject)
	fmt.Printf("Body length: %d bytes\n", len(rec.BodyPlain)+len(rec.BodyHTML))
	fmt.Printf("Attachments: %d\n", len(rec.Attachments))
	fmt.Printf("\n")

	// Classify
	startTime := time.Now()

	content := normalizer.Normalize(rec.Subject, rec.BodyHTML, rec.BodyPlain)
	attachments := detector.ClassifyAll(rec.Attachments)
	result := engine.Classify(rec, content, attachments, lib)

	duration := time.Since(startTime)

	// Print results
	fmt.Printf("=== Classification ===\n")
	fmt.Printf("Category: %s (%s)\n", result.Category.Display(), result.Category)
	fmt.Printf("Confidence: %.4f\n", result.Confidence)
	fmt.Printf("Library version: %s\n", result.LibraryVersion)
	fmt.Printf("Processing time: %v\n", duration)

	// Print matched evidence and the sector identifiers behind it
	fmt.Printf("\n=== Evidence ===\n")
	if len(result.Evidence) == 0 {
		fmt.Printf("No rules matched\n")
	} else {
		for _, name := range result.Evidence {
			fmt.Printf("- %s\n", name)
		}
	}

	extractor := extract.NewExtractor(logger)
	text := content.Subject + " " + content.Body
	if code, ok := extractor.AgentCode(text); ok {
		fmt.Printf("Agent code: %s\n", code)
	}
	if number, ok := extractor.PolicyNumber(text); ok {
		fmt.Printf("Policy number: %s\n", number)
	}
	if content.Excerpt != "" {
		fmt.Printf("Excerpt: %s\n", content.Excerpt)
	}
}
