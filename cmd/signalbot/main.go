package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nifty-signals/internal/logger"
	"nifty-signals/internal/trace"
)

const usage = `usage: signalbot [-config config.yaml] <command>

commands:
  ingest    download daily history for the universe into the raw table
  features  rebuild the engineered feature table from the raw table
  train     fit open/close classifiers for every instrument
  serve     refresh signals periodically and serve them over HTTP
  all       ingest, features and train in sequence
`

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	if err := initializeSystem(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() {
		_ = trace.Shutdown(context.Background())
		_ = logger.Close()
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig(ctx, *configPath)
	if err != nil {
		os.Exit(1)
	}

	app, err := newApp(ctx, cfg)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to initialize", err)
		os.Exit(1)
	}
	defer app.close()

	switch cmd := flag.Arg(0); cmd {
	case "ingest":
		err = app.ingest(ctx)
	case "features":
		err = app.features(ctx)
	case "train":
		err = app.train(ctx)
	case "serve":
		err = app.serve(ctx, time.Duration(cfg.Signals.RefreshSeconds)*time.Second)
	case "all":
		if err = app.ingest(ctx); err == nil {
			if err = app.features(ctx); err == nil {
				err = app.train(ctx)
			}
		}
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil && ctx.Err() == nil {
		logger.ErrorWithErr(ctx, "Command failed", err, "command", flag.Arg(0))
		os.Exit(1)
	}
}
