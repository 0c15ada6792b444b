package pipelineobs

import (
	"context"
	"time"

	"nifty-signals/internal/dataset"
	"nifty-signals/internal/interfaces"
	"nifty-signals/internal/logger"
	"nifty-signals/internal/metrics"
	"nifty-signals/internal/pipeline"
	"nifty-signals/internal/trace"
)

// observableProcessor wraps a Processor with logging, tracing and metrics
type observableProcessor struct {
	p interfaces.Processor
}

var _ interfaces.Processor = (*observableProcessor)(nil)

func Wrap(p interfaces.Processor) interfaces.Processor {
	return &observableProcessor{p: p}
}

func (o *observableProcessor) Process(ctx context.Context, raw dataset.Frame) (*pipeline.Result, error) {
	ctx, span := trace.StartSpan(ctx, "pipeline.Process")
	defer span.End()

	start := time.Now()
	logger.InfoSkip(ctx, 1, "Processing raw dataset", "records", raw.Len())

	res, err := o.p.Process(ctx, raw)
	metrics.PipelineDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Pipeline pass failed", err, "records", raw.Len())
		return nil, err
	}

	metrics.PipelineRows.Set(float64(len(res.Rows)))
	for _, f := range res.Failures {
		metrics.PipelineFailures.WithLabelValues(f.Symbol).Inc()
	}
	logger.InfoSkip(ctx, 1, "Pipeline pass completed",
		"instruments", len(res.Instruments),
		"rows", len(res.Rows),
		"failures", len(res.Failures),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}
