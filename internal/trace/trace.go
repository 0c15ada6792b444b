package trace

import (
	"context"
	"io"
	"os"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	serviceName    = "nifty-signals"
	serviceVersion = "1.0.0"
)

var (
	tracer         trace.Tracer
	tracerProvider *sdktrace.TracerProvider
	traceFile      *os.File
	enabled        bool
)

// Config selects where spans go and how many of them are kept.
type Config struct {
	Enabled     bool
	SampleRatio float64 // fraction of root spans recorded, 1 keeps all
	Environment string  // deployment.environment resource attribute
	File        string  // span output file; stdout when empty
	Pretty      bool
}

// ConfigFromEnv reads LOG_TRACING_* variables. Tracing is off unless
// LOG_TRACING_ENABLED=true.
func ConfigFromEnv() Config {
	return Config{
		Enabled:     os.Getenv("LOG_TRACING_ENABLED") == "true",
		SampleRatio: envFloat("LOG_TRACING_SAMPLE_RATIO", 1),
		Environment: getEnv("DEPLOY_ENV", "local"),
		File:        os.Getenv("LOG_TRACING_FILE"),
		Pretty:      os.Getenv("LOG_TRACING_PRETTY") == "true",
	}
}

func Init() error {
	return InitWithConfig(ConfigFromEnv())
}

func InitWithConfig(cfg Config) error {
	enabled = cfg.Enabled
	if !enabled {
		return nil
	}

	var out io.Writer = os.Stdout
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			enabled = false
			return err
		}
		traceFile, out = f, f
	}
	opts := []stdouttrace.Option{stdouttrace.WithWriter(out)}
	if cfg.Pretty {
		opts = append(opts, stdouttrace.WithPrettyPrint())
	}
	exporter, err := stdouttrace.New(opts...)
	if err != nil {
		enabled = false
		return err
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(resourceAttributes(cfg)...),
	)
	if err != nil {
		enabled = false
		return err
	}

	tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.SampleRatio)),
	)
	otel.SetTracerProvider(tracerProvider)
	tracer = otel.Tracer(serviceName)
	return nil
}

func resourceAttributes(cfg Config) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(serviceVersion),
	}
	if cfg.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironment(cfg.Environment))
	}
	return attrs
}

// sampler keeps child spans with their parent's decision and samples roots
// by ratio. Ratios outside (0,1) collapse to never or always.
func sampler(ratio float64) sdktrace.Sampler {
	switch {
	case ratio >= 1:
		return sdktrace.AlwaysSample()
	case ratio <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
	}
}

func Shutdown(ctx context.Context) error {
	var err error
	if tracerProvider != nil {
		err = tracerProvider.Shutdown(ctx)
	}
	if traceFile != nil {
		if cerr := traceFile.Close(); err == nil {
			err = cerr
		}
		traceFile = nil
	}
	return err
}

// StartSpan starts a span, or returns the span already in ctx (possibly a
// no-op) when tracing is disabled.
func StartSpan(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if !enabled || tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, spanName, opts...)
}

func Enabled() bool {
	return enabled
}

func GetTraceFields(ctx context.Context) (traceID, spanID string, ok bool) {
	if !enabled {
		return "", "", false
	}
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return "", "", false
	}
	return sc.TraceID().String(), sc.SpanID().String(), true
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func envFloat(key string, defaultValue float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return defaultValue
}
