package reportobs

import (
	"context"
	"time"

	"nifty-signals/internal/interfaces"
	"nifty-signals/internal/logger"
	"nifty-signals/internal/signal"
	"nifty-signals/internal/trace"
)

type observableReportWriter struct {
	w interfaces.ReportWriter
}

var _ interfaces.ReportWriter = (*observableReportWriter)(nil)

func Wrap(w interfaces.ReportWriter) interfaces.ReportWriter {
	return &observableReportWriter{w: w}
}

func (o *observableReportWriter) WriteDay(t time.Time, evals map[string]signal.Evaluation) (string, error) {
	ctx, span := trace.StartSpan(context.Background(), "report.WriteDay")
	defer span.End()

	logger.InfoSkip(ctx, 1, "Writing signal report", "date", t.Format("2006-01-02"), "instruments", len(evals))

	csvPath, err := o.w.WriteDay(t, evals)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Signal report failed", err, "date", t.Format("2006-01-02"))
		return "", err
	}
	if csvPath == "" {
		logger.InfoSkip(ctx, 1, "No signals to report", "date", t.Format("2006-01-02"))
		return "", nil
	}

	logger.InfoSkip(ctx, 1, "Signal report written", "date", t.Format("2006-01-02"), "csv_path", csvPath)
	return csvPath, nil
}

func (o *observableReportWriter) ShouldRunNow() (bool, string) {
	ctx, span := trace.StartSpan(context.Background(), "report.ShouldRunNow")
	defer span.End()

	shouldRun, csvPath := o.w.ShouldRunNow()
	logger.DebugSkip(ctx, 1, "Report check completed", "should_run", shouldRun, "csv_path", csvPath)
	return shouldRun, csvPath
}
