package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"nifty-signals/internal/classifier"
	"nifty-signals/internal/featurestore"
	"nifty-signals/internal/ingest"
	"nifty-signals/internal/interfaces"
	"nifty-signals/internal/logger"
	"nifty-signals/internal/modelstore"
	"nifty-signals/internal/pipeline"
	"nifty-signals/internal/pipeline/pipelineobs"
	"nifty-signals/internal/report"
	"nifty-signals/internal/report/reportobs"
	"nifty-signals/internal/signal"
	"nifty-signals/internal/signal/signalobs"
	"nifty-signals/internal/source"
	"nifty-signals/internal/source/kite"
	"nifty-signals/internal/source/sourceobs"
	"nifty-signals/internal/source/yahoo"
	"nifty-signals/internal/store"
	"nifty-signals/internal/trace"
	"nifty-signals/internal/universe"
)

// initializeSystem loads .env and sets up logging and tracing
func initializeSystem() error {
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}
	return nil
}

func loadConfig(ctx context.Context, path string) (*store.Config, error) {
	cfg, err := store.LoadConfig(path)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err, "path", path)
		return nil, err
	}
	return cfg, nil
}

// app holds the long-lived collaborators shared by every command.
type app struct {
	cfg    *store.Config
	db     *featurestore.Store
	models *modelstore.Store
}

func newApp(ctx context.Context, cfg *store.Config) (*app, error) {
	fs, err := featurestore.Open(cfg.Storage.SQLitePath)
	if err != nil {
		return nil, err
	}
	ms, err := modelstore.Open(modelstore.OpenOptions{Path: cfg.Storage.ModelPath})
	if err != nil {
		_ = fs.Close()
		return nil, err
	}
	logger.Info(ctx, "Stores opened", "sqlite", cfg.Storage.SQLitePath, "models", cfg.Storage.ModelPath)
	return &app{cfg: cfg, db: fs, models: ms}, nil
}

func (a *app) close() {
	_ = a.models.Close()
	_ = a.db.Close()
}

// initializeSource builds the configured bar source with observability
func initializeSource(ctx context.Context, cfg *store.Config) interfaces.BarSource {
	var src interfaces.BarSource
	switch cfg.DataSource {
	case "KITE":
		logger.Info(ctx, "Using Kite Connect historical data", "exchange", cfg.Exchange)
		src = kite.New(kite.Params{
			APIKey:         os.Getenv("KITE_API_KEY"),
			AccessToken:    os.Getenv("KITE_ACCESS_TOKEN"),
			Exchange:       cfg.Exchange,
			RequestsPerSec: cfg.Sources.RequestsPerSec,
		})
	case "CSV":
		logger.Info(ctx, "Using CSV bar file", "path", cfg.Storage.CSVPath)
		src = source.NewCSV(cfg.Storage.CSVPath)
	default:
		logger.Info(ctx, "Using Yahoo Finance chart API", "base_url", cfg.Sources.YahooBaseURL)
		src = yahoo.New(yahoo.Params{
			BaseURL:        cfg.Sources.YahooBaseURL,
			Timeout:        time.Duration(cfg.Sources.TimeoutSecs) * time.Second,
			RequestsPerSec: cfg.Sources.RequestsPerSec,
			Retries:        3,
		})
	}
	return sourceobs.Wrap(src)
}

func resolveUniverse(ctx context.Context, cfg *store.Config) ([]string, error) {
	sc := cfg.Universe.Scrape
	return universe.Resolve(ctx, cfg.Universe.Static, universe.ScrapeSource{
		URL:      sc.URL,
		Selector: sc.Selector,
		Column:   sc.Column,
		Suffix:   sc.Suffix,
	}, universe.NewScraper(time.Duration(cfg.Sources.TimeoutSecs)*time.Second))
}

func initializeProcessor(cfg *store.Config, symbols []string) interfaces.Processor {
	return pipelineobs.Wrap(pipeline.New(pipeline.Config{
		Workers:  cfg.Pipeline.Workers,
		Universe: symbols,
	}))
}

func initializeEngine(cfg *store.Config, provider signal.ClassifierProvider) interfaces.SignalEngine {
	return signalobs.Wrap(signal.NewEngine(provider, cfg.Pipeline.Workers))
}

func initializeReport(cfg *store.Config) interfaces.ReportWriter {
	return reportobs.Wrap(report.New(cfg.Signals.ReportDir))
}

func trainingOptions(cfg *store.Config) classifier.Options {
	return classifier.Options{
		MinRows:       cfg.Training.MinRows,
		TrainFraction: cfg.Training.TrainFraction,
		Epochs:        cfg.Training.Epochs,
		LearningRate:  cfg.Training.LearningRate,
		L2:            cfg.Training.L2,
	}
}

func newCollector(ctx context.Context, cfg *store.Config) (*ingest.Collector, error) {
	from, err := cfg.HistoryFrom()
	if err != nil {
		return nil, err
	}
	return ingest.NewCollector(initializeSource(ctx, cfg), ingest.Config{
		From:    from,
		Workers: cfg.Pipeline.Workers,
	}), nil
}

