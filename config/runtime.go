package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"regexp"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/grafana/pagekit/diagnostics"
	"github.com/grafana/pagekit/log"
	"github.com/grafana/pagekit/metrics"
	"github.com/grafana/pagekit/otel"
	"github.com/grafana/pagekit/pageobject"
	"github.com/grafana/pagekit/session"
	"github.com/grafana/pagekit/storage"
	"github.com/grafana/pagekit/trace"
)

// TraceStdout makes spans print to stderr instead of being exported.
const TraceStdout = "stdout"

// Logger returns a console logger at the configured level.
func (c *Config) Logger() (*log.Logger, error) {
	l, err := log.NewConsole(c.LogLevel, false)
	if err != nil {
		return nil, err
	}
	if c.LogCategoryFilter != "" {
		re, err := regexp.Compile(c.LogCategoryFilter)
		if err != nil {
			return nil, fmt.Errorf("log category filter: %w", err)
		}
		l = log.New(l.Logger, false, re)
	}
	return l, nil
}

// TraceProvider returns the exporter pipeline for TraceEndpoint, or a
// noop provider when tracing is off.
func (c *Config) TraceProvider(ctx context.Context) (otel.TraceProvider, error) {
	switch c.TraceEndpoint {
	case "":
		return otel.NewNoopTraceProvider(), nil
	case TraceStdout:
		return otel.NewWriterTraceProvider(os.Stderr)
	}
	host, insecure, err := parseTraceEndpoint(c.TraceEndpoint)
	if err != nil {
		return nil, err
	}
	return otel.NewTraceProvider(ctx, "http", host, insecure)
}

func parseTraceEndpoint(endpoint string) (host string, insecure bool, err error) {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return "", false, fmt.Errorf("trace_endpoint %q is not a URL", endpoint)
	}
	switch u.Scheme {
	case "http":
		return u.Host, true, nil
	case "https":
		return u.Host, false, nil
	}
	return "", false, fmt.Errorf("trace_endpoint %q: %w", endpoint, otel.ErrUnsupportedProto)
}

// Metrics returns collectors registered with reg, or nil when metrics
// are disabled.
func (c *Config) Metrics(reg prometheus.Registerer) *metrics.Metrics {
	if !c.MetricsEnabled {
		return nil
	}
	return metrics.New(reg)
}

// Persister returns where artifacts are written: the S3 bucket when one
// is configured, the local disk otherwise.
func (c *Config) Persister(ctx context.Context) (storage.FilePersister, error) {
	if c.S3Bucket == "" {
		return &storage.LocalFilePersister{}, nil
	}
	return storage.NewS3FilePersister(ctx, storage.S3Config{
		Bucket:       c.S3Bucket,
		Endpoint:     c.S3Endpoint,
		UsePathStyle: c.S3Endpoint != "",
	})
}

// ArtifactSink returns the sink failure screenshots are written to.
func (c *Config) ArtifactSink(ctx context.Context) (*diagnostics.FileSink, error) {
	p, err := c.Persister(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating artifact storage: %w", err)
	}
	return diagnostics.NewFileSink(c.ArtifactsDir, p), nil
}

// Runtime is a run assembled from the configuration, with what it needs
// to be shut down.
type Runtime struct {
	Run  *pageobject.Run
	Hook *diagnostics.Hook

	tp otel.TraceProvider
}

// NewRuntime builds the logger, tracer, metrics, session and diagnostics
// hook of a run. The browser is not launched yet. reg may be nil.
func (c *Config) NewRuntime(ctx context.Context, reg prometheus.Registerer) (*Runtime, error) {
	logger, err := c.Logger()
	if err != nil {
		return nil, err
	}
	engine, err := session.ParseEngine(c.Engine)
	if err != nil {
		return nil, err
	}
	launcher, err := session.NewLauncher(engine, logger)
	if err != nil {
		return nil, err
	}
	scfg, err := c.SessionConfig()
	if err != nil {
		return nil, err
	}
	tp, err := c.TraceProvider(ctx)
	if err != nil {
		return nil, err
	}
	sink, err := c.ArtifactSink(ctx)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, err
	}

	s := session.New(scfg, launcher, logger)
	opts := append(c.RunOptions(),
		pageobject.WithLogger(logger),
		pageobject.WithMetrics(c.Metrics(reg)),
	)
	run := pageobject.NewRun(s, opts...)
	run.Tracer = trace.NewTracer(logger, tp, map[string]string{
		"run.id":  run.ID,
		"browser": c.Browser,
		"engine":  engine.String(),
	})

	return &Runtime{
		Run:  run,
		Hook: diagnostics.NewHook(run, sink, diagnostics.Options{}),
		tp:   tp,
	}, nil
}

// Close closes the run and flushes pending spans.
func (r *Runtime) Close(ctx context.Context) error {
	r.Run.Close(ctx)
	return r.tp.Shutdown(ctx)
}
