// Package diagnostics captures a screenshot of the active page when a
// test that uses the browser fails in its body.
package diagnostics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/grafana/pagekit/api"
	"github.com/grafana/pagekit/pageobject"
)

// Phase is the part of a test an outcome belongs to.
type Phase int

const (
	PhaseSetup Phase = iota
	PhaseCall
	PhaseTeardown
)

func (p Phase) String() string {
	switch p {
	case PhaseSetup:
		return "setup"
	case PhaseCall:
		return "call"
	case PhaseTeardown:
		return "teardown"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// DefaultResources are the resource names that provide a browser page.
var DefaultResources = []string{"browser", "open_page"}

// DefaultCaptureTimeout bounds a single screenshot, and separately the
// upload of the resulting attachment.
const DefaultCaptureTimeout = 10 * time.Second

// Outcome is a test runner event.
type Outcome struct {
	TestID    string
	Phase     Phase
	Resources []string
	Failed    bool
}

// Options configure a Hook.
type Options struct {
	// Resources overrides DefaultResources.
	Resources []string
	// CaptureTimeout overrides DefaultCaptureTimeout.
	CaptureTimeout time.Duration
}

// Hook turns failed test outcomes into screenshot attachments.
type Hook struct {
	run       *pageobject.Run
	sink      Sink
	resources map[string]struct{}
	timeout   time.Duration
}

// NewHook returns a hook that reads the active page of run and emits
// attachments to sink.
func NewHook(run *pageobject.Run, sink Sink, opts Options) *Hook {
	names := opts.Resources
	if len(names) == 0 {
		names = DefaultResources
	}
	h := &Hook{
		run:       run,
		sink:      sink,
		resources: make(map[string]struct{}, len(names)),
		timeout:   opts.CaptureTimeout,
	}
	for _, n := range names {
		h.resources[n] = struct{}{}
	}
	if h.timeout <= 0 {
		h.timeout = DefaultCaptureTimeout
	}
	return h
}

// shouldCapture reports whether o is a failed test body that used a
// browser-providing resource.
func (h *Hook) shouldCapture(o Outcome) bool {
	if !o.Failed || o.Phase != PhaseCall {
		return false
	}
	for _, r := range o.Resources {
		if _, ok := h.resources[r]; ok {
			return true
		}
	}
	return false
}

// OnTestOutcome captures the active page when o qualifies and reports
// whether an attachment was emitted. Capture errors are logged and never
// returned.
func (h *Hook) OnTestOutcome(ctx context.Context, o Outcome) bool {
	if !h.shouldCapture(o) {
		return false
	}

	page := h.run.Active.Page()
	if page == nil {
		h.run.Logger.Warnf("Diagnostics", "test %q failed with no active page, skipping screenshot", o.TestID)
		return false
	}

	captureCtx, cancel := context.WithTimeout(ctx, h.timeout)
	body, err := h.capture(captureCtx, page)
	cancel()
	h.run.Metrics.ScreenshotTaken(err)
	if err != nil {
		h.run.Logger.Errorf("Diagnostics", "capturing screenshot for %q: %v", o.TestID, err)
		return false
	}

	// the upload gets a full budget of its own
	attachCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	a := NewScreenshot(o.TestID, body)
	if err := h.sink.Attach(attachCtx, a); err != nil {
		h.run.Logger.Errorf("Diagnostics", "attaching %q: %v", a.Name, err)
		return false
	}
	h.run.Tracer.AddEvent(page.ID(), "failure screenshot", trace.WithAttributes(
		attribute.String("test.id", o.TestID),
		attribute.String("attachment.name", a.Name),
	))
	h.run.Logger.Infof("Diagnostics", "attached %s (%d bytes)", a.Name, len(body))

	return true
}

func (h *Hook) capture(ctx context.Context, page api.Page) (body []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("screenshot panicked: %v", r)
		}
	}()
	return page.Screenshot(ctx, &api.ScreenshotOptions{FullPage: true})
}
