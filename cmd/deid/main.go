package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/raaihank/phi-sentinel/internal/batch"
	"github.com/raaihank/phi-sentinel/internal/config"
	"github.com/raaihank/phi-sentinel/internal/logger"
	"github.com/raaihank/phi-sentinel/internal/ner"
	"github.com/raaihank/phi-sentinel/internal/privacy"
)

func main() {
	var (
		configPath = flag.String("config", "", "Configuration file path")
		inputFile  = flag.String("input", "", "Input dataset file (CSV, Parquet, or JSON)")
		outputFile = flag.String("output", "", "Output file (defaults to <input>.deid.<ext>)")
		batchSize  = flag.Int("batch-size", 1000, "Batch size for processing")
		workers    = flag.Int("workers", 4, "Number of worker goroutines")
	)
	flag.Parse()

	if *inputFile == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s --input records.csv --batch-size 500\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --input records.parquet --workers 8 --output clean.parquet\n", os.Args[0])
		os.Exit(1)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting PHI-Sentinel batch de-identification",
		zap.String("version", "0.1.0"),
		zap.String("input", *inputFile))

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Received shutdown signal, cancelling operations...")
		cancel()
	}()

	if err := processDataset(ctx, cfg, *inputFile, *outputFile, *batchSize, *workers, log); err != nil {
		log.Fatal("Batch processing failed", zap.Error(err))
	}

	log.Info("Batch de-identification completed successfully")
}

// processDataset runs the de-identification pipeline over the input file.
func processDataset(ctx context.Context, cfg *config.Config, inputFile, outputFile string, batchSize, workers int, log *logger.Logger) error {
	if _, err := os.Stat(inputFile); os.IsNotExist(err) {
		return fmt.Errorf("input file does not exist: %s", inputFile)
	}
	if outputFile == "" {
		outputFile = defaultOutputPath(inputFile)
	}

	provider := ner.New(cfg.NER, log.Logger)
	deid := privacy.NewPipeline(provider, nil, cfg.Pipeline.PatternBudget, log)

	pipeline, err := batch.NewPipeline(deid, cfg.Pipeline.Options(), &batch.Config{
		BatchSize:      batchSize,
		WorkerCount:    workers,
		ProgressReport: 1000,
	}, log)
	if err != nil {
		return fmt.Errorf("failed to create batch pipeline: %w", err)
	}

	summary, err := pipeline.Process(ctx, inputFile, outputFile)
	if err != nil {
		return fmt.Errorf("pipeline processing failed: %w", err)
	}

	log.Info("Dataset processing completed",
		zap.String("input", inputFile),
		zap.String("output", outputFile),
		zap.Int64("total_records", summary.TotalRecords),
		zap.Int64("processed_ok", summary.ProcessedOK),
		zap.Int64("processed_failed", summary.ProcessedFailed),
		zap.Int64("entities_found", summary.EntitiesFound),
		zap.Int64("review_required", summary.ReviewRequired),
		zap.Duration("total_duration", summary.Duration),
		zap.Float64("records_per_second", float64(summary.TotalRecords)/summary.Duration.Seconds()))

	if len(summary.Errors) > 0 {
		log.Warn("Processing completed with errors", zap.Strings("errors", summary.Errors))
	}

	return nil
}

// defaultOutputPath derives records.csv -> records.deid.csv.
func defaultOutputPath(input string) string {
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + ".deid" + ext
}
