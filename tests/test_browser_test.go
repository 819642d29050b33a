package tests

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mccutchen/go-httpbin/httpbin"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/grafana/pagekit/chromium"
	"github.com/grafana/pagekit/log"
	"github.com/grafana/pagekit/pageobject"
	"github.com/grafana/pagekit/session"
)

// testBrowser is a real headless browser with an HTTP server for the
// pages it visits. Unknown paths are served by httpbin.
type testBrowser struct {
	t       testing.TB
	ctx     context.Context
	run     *pageobject.Run
	mux     *http.ServeMux
	srv     *httptest.Server
	logHook *test.Hook
}

type testBrowserOptions struct {
	engine          session.Engine
	defaultTimeout  time.Duration
	teardownTimeout time.Duration
	extraArgs       []string
}

type testBrowserOption func(*testBrowserOptions)

func withDefaultTimeout(d time.Duration) testBrowserOption {
	return func(o *testBrowserOptions) { o.defaultTimeout = d }
}

func withExtraArgs(args ...string) testBrowserOption {
	return func(o *testBrowserOptions) { o.extraArgs = args }
}

func withEngine(e session.Engine) testBrowserOption {
	return func(o *testBrowserOptions) { o.engine = e }
}

// newTestBrowser launches a browser for t and closes it when t ends. The
// test is skipped in short mode or when no Chrome can be found.
func newTestBrowser(t testing.TB, opts ...testBrowserOption) *testBrowser {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping browser test in short mode")
	}
	o := testBrowserOptions{
		defaultTimeout:  5 * time.Second,
		teardownTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.engine == session.EngineCDP {
		if _, err := chromium.FindExecutable(); err != nil {
			t.Skipf("no browser available: %v", err)
		}
	}

	mux := http.NewServeMux()
	mux.Handle("/", httpbin.New().Handler())
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	lg, hook := test.NewNullLogger()
	logger := log.New(lg, false, nil)
	launcher, err := session.NewLauncher(o.engine, logger)
	require.NoError(t, err)

	s := session.New(session.Config{
		Kind:            session.KindChrome,
		Headless:        true,
		ExtraArgs:       o.extraArgs,
		LaunchTimeout:   30 * time.Second,
		TeardownTimeout: o.teardownTimeout,
	}, launcher, logger)
	run := pageobject.NewRun(s,
		pageobject.WithLogger(logger),
		pageobject.WithBaseURL(srv.URL+"/"),
		pageobject.WithDefaultTimeout(o.defaultTimeout),
	)

	ctx := context.Background()
	if err := run.Launch(ctx); err != nil {
		if o.engine == session.EnginePlaywright {
			t.Skipf("playwright driver unavailable: %v", err)
		}
		require.NoError(t, err)
	}
	t.Cleanup(func() { run.Close(ctx) })

	return &testBrowser{
		t:       t,
		ctx:     ctx,
		run:     run,
		mux:     mux,
		srv:     srv,
		logHook: hook,
	}
}

// withHandler serves h on pattern.
func (b *testBrowser) withHandler(pattern string, h http.HandlerFunc) {
	b.t.Helper()
	b.mux.HandleFunc(pattern, h)
}

// withPage serves html on path.
func (b *testBrowser) withPage(path, html string) {
	b.t.Helper()
	b.withHandler(path, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(html))
	})
}

// URL returns the absolute URL of path on the test server.
func (b *testBrowser) URL(path string) string {
	return b.srv.URL + "/" + strings.TrimPrefix(path, "/")
}

// newController opens a page in a fresh browsing context.
func (b *testBrowser) newController() *pageobject.Controller {
	b.t.Helper()

	c, err := pageobject.New(b.ctx, b.run, nil)
	require.NoError(b.t, err)
	return c
}
