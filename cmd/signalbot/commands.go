package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"nifty-signals/internal/featurestore"
	"nifty-signals/internal/ingest"
	"nifty-signals/internal/interfaces"
	"nifty-signals/internal/journal"
	"nifty-signals/internal/logger"
	"nifty-signals/internal/metrics"
	"nifty-signals/internal/server"
	"nifty-signals/internal/signal"
	"nifty-signals/internal/training"
)

func (a *app) recordRun(ctx context.Context, r featurestore.Run, err error) {
	r.FinishedAt = time.Now()
	if err != nil {
		r.Error = err.Error()
	}
	if _, rerr := a.db.RecordRun(ctx, r); rerr != nil {
		logger.Warn(ctx, "Failed to record run", "kind", r.Kind, "error", rerr)
	}
}

func (a *app) ingest(ctx context.Context) (err error) {
	run := featurestore.Run{Kind: "ingest", StartedAt: time.Now()}
	defer func() { a.recordRun(ctx, run, err) }()

	symbols, err := resolveUniverse(ctx, a.cfg)
	if err != nil {
		return err
	}
	col, err := newCollector(ctx, a.cfg)
	if err != nil {
		return err
	}
	res, err := col.Collect(ctx, symbols)
	if err != nil {
		return err
	}
	run.Instruments, run.Rows, run.Failures = len(res.Symbols), len(res.Bars), len(res.Failures)
	if len(res.Symbols) == 0 {
		return errors.New("ingest: no instrument returned data")
	}

	if err := a.db.SaveBars(ctx, res.Bars); err != nil {
		return fmt.Errorf("save bars: %w", err)
	}
	if p := a.cfg.Storage.CSVPath; p != "" && a.cfg.DataSource != "CSV" {
		if err := ingest.ExportCSV(p, res.Bars); err != nil {
			return fmt.Errorf("export csv: %w", err)
		}
		logger.Info(ctx, "Raw bars exported", "path", p)
	}
	return nil
}

func (a *app) features(ctx context.Context) (err error) {
	run := featurestore.Run{Kind: "features", StartedAt: time.Now()}
	defer func() { a.recordRun(ctx, run, err) }()

	symbols, err := resolveUniverse(ctx, a.cfg)
	if err != nil {
		return err
	}
	raw, err := a.db.LoadRaw(ctx)
	if err != nil {
		return err
	}
	res, err := initializeProcessor(a.cfg, symbols).Process(ctx, raw)
	if err != nil {
		return err
	}
	run.Instruments, run.Rows, run.Failures = len(res.Instruments), len(res.Rows), len(res.Failures)
	return a.db.ReplaceFeatures(ctx, res.Rows)
}

func (a *app) train(ctx context.Context) (err error) {
	run := featurestore.Run{Kind: "train", StartedAt: time.Now()}
	defer func() { a.recordRun(ctx, run, err) }()

	rows, err := a.db.LoadFeatures(ctx, "")
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return errors.New("train: feature table is empty, run the features command first")
	}
	sum, err := training.Train(ctx, rows, trainingOptions(a.cfg), a.models)
	if err != nil {
		return err
	}
	run.Instruments, run.Rows, run.Failures = len(sum.Trained), len(rows), len(sum.Failures)
	logger.Info(ctx, "Training completed",
		"trained", len(sum.Trained),
		"skipped", len(sum.Skipped),
		"failures", len(sum.Failures))
	return nil
}

// serve refreshes signals every interval until ctx is cancelled.
func (a *app) serve(ctx context.Context, interval time.Duration) error {
	engine := initializeEngine(a.cfg, a.models)
	rep := initializeReport(a.cfg)
	jr := journal.New(a.cfg.Signals.ReportDir)
	board := server.NewBoard()

	if err := jr.CompressOlder(a.cfg.Signals.JournalRetentionDays); err != nil {
		logger.Warn(ctx, "Failed to compress old journals", "error", err)
	}

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.New(board, a.db).Start(ctx, a.cfg.Signals.ListenAddr)
	}()

	last := a.refresh(ctx, engine, board, jr)
	tick := time.NewTicker(interval)
	defer tick.Stop()

	logger.Info(ctx, "Signal service started", "refresh", interval.String(), "addr", a.cfg.Signals.ListenAddr)
	for {
		select {
		case <-tick.C:
			if evals := a.refresh(ctx, engine, board, jr); evals != nil {
				last = evals
			}
			if ok, _ := rep.ShouldRunNow(); ok && len(last) > 0 {
				if _, err := rep.WriteDay(time.Now(), last); err != nil {
					logger.Warn(ctx, "Failed to write signal report", "error", err)
				}
			}
		case err := <-srvErr:
			return err
		case <-ctx.Done():
			logger.Info(ctx, "Shutting down signal service")
			if len(last) > 0 {
				if _, err := rep.WriteDay(time.Now(), last); err != nil {
					logger.Warn(ctx, "Failed to write signal report", "error", err)
				}
			}
			return <-srvErr
		}
	}
}

// refresh evaluates the latest feature row of every instrument and
// publishes the result. It returns nil when nothing could be evaluated.
func (a *app) refresh(ctx context.Context, engine interfaces.SignalEngine, board *server.Board, jr *journal.Journal) map[string]signal.Evaluation {
	latest, err := a.db.LatestFeatures(ctx)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load latest features", err)
		return nil
	}
	if len(latest) == 0 {
		logger.Warn(ctx, "Feature table is empty, no signals to publish")
		return nil
	}
	evals := engine.Evaluate(ctx, latest)
	now := time.Now()
	board.Publish(evals, now)
	metrics.RefreshTimestamp.Set(float64(now.Unix()))
	if err := jr.Append(now, evals); err != nil {
		logger.Warn(ctx, "Failed to journal signals", "error", err)
	}
	return evals
}
