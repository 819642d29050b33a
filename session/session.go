// Package session owns the browser used by a test run: it launches or
// connects to it, and tears it down again without ever failing the run.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/grafana/pagekit/api"
	"github.com/grafana/pagekit/browserprocess"
	"github.com/grafana/pagekit/log"
	"github.com/grafana/pagekit/metrics"
)

// DefaultTeardownTimeout bounds each teardown step.
const DefaultTeardownTimeout = 10 * time.Second

// DefaultLocale is passed to the browser with --lang.
const DefaultLocale = "ru-RU"

// State is the lifecycle state of a Session.
type State int32

const (
	StateUninitialized State = iota
	StateLaunching
	StateReady
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLaunching:
		return "launching"
	case StateReady:
		return "ready"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Config describes the browser a session runs.
type Config struct {
	Kind     Kind
	Headless bool
	// Remote connects to RemoteURL instead of starting a browser.
	Remote    bool
	RemoteURL string
	// ExtraArgs are merged over the base arguments; a flag given here
	// replaces the base flag of the same name.
	ExtraArgs      []string
	ExecutablePath string
	Locale         string
	// LaunchTimeout bounds starting or connecting to the browser.
	LaunchTimeout time.Duration
	// TeardownTimeout bounds each step of Close.
	TeardownTimeout time.Duration
}

// BaseArgs returns the arguments every browser is started with.
func BaseArgs(locale string) []string {
	if locale == "" {
		locale = DefaultLocale
	}
	return []string{
		"--window-size=1920,1080",
		"--ignore-certificate-errors",
		"--disable-gpu",
		"--no-sandbox",
		"--lang=" + locale,
	}
}

// MergeArgs returns base with extra applied on top. An extra flag with the
// same name as a base flag replaces it in place, new flags are appended in
// order.
func MergeArgs(base, extra []string) []string {
	merged := append([]string(nil), base...)
	index := make(map[string]int, len(merged))
	for i, a := range merged {
		index[flagName(a)] = i
	}
	for _, a := range extra {
		name := flagName(a)
		if name == "" {
			continue
		}
		if i, ok := index[name]; ok {
			merged[i] = a
			continue
		}
		index[name] = len(merged)
		merged = append(merged, a)
	}
	return merged
}

func flagName(arg string) string {
	name, _, _ := strings.Cut(strings.TrimLeft(strings.TrimSpace(arg), "-"), "=")
	return name
}

// Session owns one browser for the duration of a run.
type Session struct {
	cfg      Config
	launcher Launcher
	logger   *log.Logger
	metrics  *metrics.Metrics

	mu          sync.RWMutex
	state       State
	browserType api.BrowserType
	browser     api.Browser
	runID       string
}

// New returns an uninitialized session.
func New(cfg Config, launcher Launcher, logger *log.Logger) *Session {
	if cfg.TeardownTimeout <= 0 {
		cfg.TeardownTimeout = DefaultTeardownTimeout
	}
	return &Session{
		cfg:      cfg,
		launcher: launcher,
		logger:   logger,
	}
}

// Config returns the session configuration.
func (s *Session) Config() Config {
	return s.cfg
}

// SetMetrics makes teardown timeouts count in m.
func (s *Session) SetMetrics(m *metrics.Metrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = m
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Browser returns the browser handle, or nil unless the session is ready.
func (s *Session) Browser() api.Browser {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != StateReady {
		return nil
	}
	return s.browser
}

// Launch starts or connects to the configured browser.
// A session that was closed can be launched again.
func (s *Session) Launch(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateUninitialized && s.state != StateClosed {
		st := s.state
		s.mu.Unlock()
		return &SessionAlreadyActiveError{State: st}
	}
	s.state = StateLaunching
	s.runID = browserprocess.GetRunID(ctx)
	s.mu.Unlock()

	bt, browser, err := s.launch(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state = StateUninitialized
		return err
	}
	s.browserType = bt
	s.browser = browser
	s.state = StateReady

	return nil
}

func (s *Session) launch(ctx context.Context) (api.BrowserType, api.Browser, error) {
	bt, err := s.launcher.BrowserType(s.cfg.Kind)
	if err != nil {
		return nil, nil, err
	}

	opts := &api.LaunchOptions{
		Headless:       s.cfg.Headless,
		Args:           MergeArgs(BaseArgs(s.cfg.Locale), s.cfg.ExtraArgs),
		ExecutablePath: s.cfg.ExecutablePath,
		Timeout:        s.cfg.LaunchTimeout,
	}
	s.logger.Infof("Session:Launch",
		"browser settings: kind:%s engine:%s headless:%t remote:%t args:%v",
		s.cfg.Kind, bt.Name(), opts.Headless, s.cfg.Remote, opts.Args)

	var browser api.Browser
	if s.cfg.Remote {
		browser, err = bt.Connect(ctx, s.cfg.RemoteURL, opts)
	} else {
		browser, err = bt.Launch(ctx, opts)
	}
	if err != nil {
		if serr := bt.Stop(context.WithoutCancel(ctx)); serr != nil {
			s.logger.Debugf("Session:Launch", "stopping engine after failed launch: %v", serr)
		}
		return nil, nil, fmt.Errorf("launching %s: %w", s.cfg.Kind, err)
	}

	s.logger.Successf("Session:Launch", "browser %s is ready", browser.Version())

	return bt, browser, nil
}

// Close closes every browsing context, then the browser, then stops the
// engine. A step that errors or runs past the teardown timeout is logged
// as a warning and teardown moves on, so Close always ends in
// StateClosed. Closing a session that is not ready does nothing.
func (s *Session) Close(ctx context.Context) {
	s.mu.Lock()
	if s.state != StateReady {
		s.mu.Unlock()
		return
	}
	s.state = StateClosing
	browser, bt, m := s.browser, s.browserType, s.metrics
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.state = StateClosed
		s.browser = nil
		s.browserType = nil
		s.mu.Unlock()
	}()

	for i, bctx := range browser.Contexts() {
		s.bounded(ctx, m, fmt.Sprintf("close context %d", i), bctx.Close)
	}
	if !s.bounded(ctx, m, "close browser", browser.Close) {
		browserprocess.ForceProcessShutdown(browserprocess.WithRunID(context.Background(), s.runID))
	}
	s.bounded(ctx, m, "stop engine", bt.Stop)

	s.logger.Debugf("Session:Close", "session closed")
}

// bounded runs a teardown step with the teardown timeout. It reports
// whether the step finished in time.
func (s *Session) bounded(
	ctx context.Context, m *metrics.Metrics, step string, fn func(context.Context) error,
) bool {
	timeout := s.cfg.TeardownTimeout
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- fn(ctx) }()

	select {
	case err := <-errCh:
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil {
			s.logger.Warning("Session:Close", &TeardownTimeoutWarning{Step: step, Timeout: timeout})
			m.TeardownWarning()
			return false
		}
		if err != nil {
			s.logger.Warnf("Session:Close", "%s: %v", step, err)
		}
		return true
	case <-ctx.Done():
		s.logger.Warning("Session:Close", &TeardownTimeoutWarning{Step: step, Timeout: timeout})
		m.TeardownWarning()
		return false
	}
}
