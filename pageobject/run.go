package pageobject

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/grafana/pagekit/api"
	"github.com/grafana/pagekit/browserprocess"
	"github.com/grafana/pagekit/log"
	"github.com/grafana/pagekit/metrics"
	"github.com/grafana/pagekit/session"
	"github.com/grafana/pagekit/trace"
)

// DefaultTimeout is the wait budget of an operation without a Timeout
// option.
const DefaultTimeout = 15 * time.Second

// ActivePage refers to the page most recently created or used by the
// controllers of a run. Diagnostics read it to know what to capture.
type ActivePage struct {
	mu   sync.RWMutex
	page api.Page
}

// Set makes p the active page.
func (a *ActivePage) Set(p api.Page) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.page = p
}

// Page returns the active page, or nil.
func (a *ActivePage) Page() api.Page {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.page
}

// clearIf drops the active page if it is p.
func (a *ActivePage) clearIf(p api.Page) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.page == p {
		a.page = nil
	}
}

// Run carries everything scoped to one test run. It is passed explicitly
// to controllers and diagnostics hooks.
type Run struct {
	ID             string
	Session        *session.Session
	BaseURL        string
	DefaultTimeout time.Duration
	Logger         *log.Logger
	Tracer         *trace.Tracer
	Metrics        *metrics.Metrics
	Active         *ActivePage
}

// RunOption configures a Run.
type RunOption func(*Run)

// WithBaseURL sets the URL Controller.Get opens.
func WithBaseURL(u string) RunOption {
	return func(r *Run) { r.BaseURL = u }
}

// WithDefaultTimeout sets the wait budget used when a call has no Timeout
// option. Non-positive values keep DefaultTimeout.
func WithDefaultTimeout(d time.Duration) RunOption {
	return func(r *Run) {
		if d > 0 {
			r.DefaultTimeout = d
		}
	}
}

// WithLogger sets the run logger.
func WithLogger(l *log.Logger) RunOption {
	return func(r *Run) { r.Logger = l }
}

// WithTracer sets the run tracer.
func WithTracer(t *trace.Tracer) RunOption {
	return func(r *Run) { r.Tracer = t }
}

// WithMetrics sets the collectors steps are recorded in.
func WithMetrics(m *metrics.Metrics) RunOption {
	return func(r *Run) { r.Metrics = m }
}

// NewRun returns a run on s with a fresh ID.
func NewRun(s *session.Session, opts ...RunOption) *Run {
	r := &Run{
		ID:             uuid.NewString(),
		Session:        s,
		DefaultTimeout: DefaultTimeout,
		Active:         &ActivePage{},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.Logger == nil {
		r.Logger = log.NewNullLogger()
	}
	if r.Tracer == nil {
		r.Tracer = trace.NewTracer(r.Logger, noop.NewTracerProvider(), nil)
	}
	if s != nil && r.Metrics != nil {
		s.SetMetrics(r.Metrics)
	}
	return r
}

// Context returns ctx tagged with the run ID, so browser processes
// started with it are attributed to this run.
func (r *Run) Context(ctx context.Context) context.Context {
	return browserprocess.WithRunID(ctx, r.ID)
}

// Launch launches the run's session.
func (r *Run) Launch(ctx context.Context) error {
	return r.Session.Launch(r.Context(ctx))
}

// Close ends the run's live spans and closes its session.
func (r *Run) Close(ctx context.Context) {
	r.Tracer.EndAll()
	r.Active.Set(nil)
	r.Session.Close(r.Context(ctx))
}
