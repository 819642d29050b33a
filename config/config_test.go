package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grafana/pagekit/otel"
	"github.com/grafana/pagekit/pageobject"
	"github.com/grafana/pagekit/session"
	"github.com/grafana/pagekit/storage"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	p := filepath.Join(t.TempDir(), "pagekit.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, Default(), *cfg)
	assert.Equal(t, "chrome", cfg.Browser)
	assert.Equal(t, "cdp", cfg.Engine)
	assert.True(t, cfg.Headless)
	assert.Equal(t, 15*time.Second, cfg.DefaultTimeout)
	assert.Equal(t, 10*time.Second, cfg.TeardownTimeout)
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, "ru-RU", cfg.Locale)
}

func TestLoadFile(t *testing.T) {
	p := writeConfig(t, `
browser: firefox
engine: playwright
headless: false
web_url: https://reqres.test/
timeout: 5s
extra_args:
  - --window-size=800,600
  - --mute-audio
`)

	cfg, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, "firefox", cfg.Browser)
	assert.Equal(t, "playwright", cfg.Engine)
	assert.False(t, cfg.Headless)
	assert.Equal(t, "https://reqres.test/", cfg.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.DefaultTimeout)
	assert.Equal(t, []string{"--window-size=800,600", "--mute-audio"}, cfg.ExtraArgs)
	// keys absent from the file keep their defaults
	assert.Equal(t, 10*time.Second, cfg.TeardownTimeout)
	assert.Equal(t, "ru-RU", cfg.Locale)
}

func TestLoadFileTimeouts(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name         string
		yaml         string
		wantTimeout  time.Duration
		wantTeardown time.Duration
		wantErr      string
	}{
		{
			name:         "milliseconds",
			yaml:         "timeout: 15000\nteardown_timeout: 2500\n",
			wantTimeout:  15 * time.Second,
			wantTeardown: 2500 * time.Millisecond,
		},
		{
			name:         "quoted_milliseconds",
			yaml:         "timeout: \"750\"\n",
			wantTimeout:  750 * time.Millisecond,
			wantTeardown: 10 * time.Second,
		},
		{
			name:         "duration",
			yaml:         "timeout: 1m30s\n",
			wantTimeout:  90 * time.Second,
			wantTeardown: 10 * time.Second,
		},
		{
			name:         "empty_file",
			yaml:         "",
			wantTimeout:  15 * time.Second,
			wantTeardown: 10 * time.Second,
		},
		{
			name:    "garbage",
			yaml:    "timeout: soon\n",
			wantErr: `timeout: invalid timeout "soon"`,
		},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := Default()
			err := cfg.loadFile(writeConfig(t, tc.yaml))
			if tc.wantErr != "" {
				assert.ErrorContains(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantTimeout, cfg.DefaultTimeout)
			assert.Equal(t, tc.wantTeardown, cfg.TeardownTimeout)
		})
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	p := writeConfig(t, `
headless: true
remote: true
remote_url: ws://127.0.0.1:9222/devtools/browser/abc
log_level: DEBUG
`)
	t.Setenv("PAGEKIT_HEADLESS", "false")
	t.Setenv("PAGEKIT_TIMEOUT", "2500")
	t.Setenv("PAGEKIT_TEARDOWN_TIMEOUT", "3s")
	t.Setenv("PAGEKIT_EXTRA_ARGS", "--a,--b=1")
	t.Setenv("PAGEKIT_LOG_LEVEL", "success")
	t.Setenv("PAGEKIT_BROWSER", "")

	cfg, err := Load(p)
	require.NoError(t, err)

	// false from the environment is not the same as unset
	assert.False(t, cfg.Headless)
	assert.True(t, cfg.Remote)
	assert.Equal(t, "ws://127.0.0.1:9222/devtools/browser/abc", cfg.RemoteURL)
	assert.Equal(t, 2500*time.Millisecond, cfg.DefaultTimeout)
	assert.Equal(t, 3*time.Second, cfg.TeardownTimeout)
	assert.Equal(t, []string{"--a", "--b=1"}, cfg.ExtraArgs)
	assert.Equal(t, "success", cfg.LogLevel)
	// an empty variable counts as unset
	assert.Equal(t, "chrome", cfg.Browser)
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing_file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
	t.Run("bad_yaml", func(t *testing.T) {
		_, err := Load(writeConfig(t, "browser: [chrome"))
		assert.Error(t, err)
	})
	t.Run("bad_env_bool", func(t *testing.T) {
		t.Setenv("PAGEKIT_HEADLESS", "maybe")
		_, err := Load("")
		assert.Error(t, err)
	})
	t.Run("bad_env_timeout", func(t *testing.T) {
		t.Setenv("PAGEKIT_TIMEOUT", "soon")
		_, err := Load("")
		assert.ErrorContains(t, err, "PAGEKIT_TIMEOUT")
	})
	t.Run("invalid", func(t *testing.T) {
		t.Setenv("PAGEKIT_BROWSER", "safari")
		_, err := Load("")
		var unsupported *session.UnsupportedBrowserError
		assert.ErrorAs(t, err, &unsupported)
	})
}

func TestValidate(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "chromium_alias", mutate: func(c *Config) { c.Browser = "Chromium" }},
		{name: "critical_level", mutate: func(c *Config) { c.LogLevel = "CRITICAL" }},
		{name: "stdout_traces", mutate: func(c *Config) { c.TraceEndpoint = "stdout" }},
		{name: "otlp_traces", mutate: func(c *Config) { c.TraceEndpoint = "http://localhost:4318" }},
		{name: "browser", mutate: func(c *Config) { c.Browser = "opera" }, wantErr: "opera"},
		{
			name:    "firefox_over_cdp",
			mutate:  func(c *Config) { c.Browser = "firefox" },
			wantErr: "not supported by the cdp engine",
		},
		{name: "engine", mutate: func(c *Config) { c.Engine = "selenium" }, wantErr: "selenium"},
		{name: "log_level", mutate: func(c *Config) { c.LogLevel = "LOUD" }, wantErr: "LOUD"},
		{name: "remote_url", mutate: func(c *Config) { c.Remote = true }, wantErr: "remote_url"},
		{
			name:    "negative_timeout",
			mutate:  func(c *Config) { c.DefaultTimeout = -time.Second },
			wantErr: "timeout must not be negative",
		},
		{name: "relative_web_url", mutate: func(c *Config) { c.BaseURL = "/users" }, wantErr: "web_url"},
		{name: "trace_scheme", mutate: func(c *Config) { c.TraceEndpoint = "grpc://x:4317" }, wantErr: "trace_endpoint"},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestValidateJoinsErrors(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Browser = "opera"
	cfg.LogLevel = "LOUD"

	err := cfg.Validate()
	assert.ErrorContains(t, err, "opera")
	assert.ErrorContains(t, err, "LOUD")
}

func TestParseTimeout(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		in   string
		want time.Duration
		err  bool
	}{
		{in: "15000", want: 15 * time.Second},
		{in: "0", want: 0},
		{in: "1m30s", want: 90 * time.Second},
		{in: " 250ms ", want: 250 * time.Millisecond},
		{in: "later", err: true},
		{in: "", err: true},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.in, func(t *testing.T) {
			t.Parallel()

			got, err := ParseTimeout(tc.in)
			if tc.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSessionConfig(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Browser = "firefox"
	cfg.Headless = false
	cfg.ExtraArgs = []string{"--lang=en-US"}
	cfg.Locale = "en-US"

	sc, err := cfg.SessionConfig()
	require.NoError(t, err)
	assert.Equal(t, session.Config{
		Kind:            session.KindFirefox,
		ExtraArgs:       []string{"--lang=en-US"},
		Locale:          "en-US",
		TeardownTimeout: session.DefaultTeardownTimeout,
	}, sc)

	cfg.Browser = "lynx"
	_, err = cfg.SessionConfig()
	assert.Error(t, err)
}

func TestRunOptions(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.BaseURL = "https://reqres.test/"
	cfg.DefaultTimeout = 3 * time.Second

	r := pageobject.NewRun(nil, cfg.RunOptions()...)
	assert.Equal(t, "https://reqres.test/", r.BaseURL)
	assert.Equal(t, 3*time.Second, r.DefaultTimeout)
}

func TestTraceProvider(t *testing.T) {
	t.Parallel()

	for _, endpoint := range []string{"", "stdout", "http://localhost:4318", "https://otel.test"} {
		cfg := Default()
		cfg.TraceEndpoint = endpoint
		tp, err := cfg.TraceProvider(context.Background())
		require.NoError(t, err, endpoint)
		assert.NotNil(t, tp.Tracer("pagekit"))
	}

	cfg := Default()
	cfg.TraceEndpoint = "grpc://localhost:4317"
	_, err := cfg.TraceProvider(context.Background())
	assert.ErrorIs(t, err, otel.ErrUnsupportedProto)
}

func TestPersister(t *testing.T) {
	t.Parallel()

	cfg := Default()
	p, err := cfg.Persister(context.Background())
	require.NoError(t, err)
	assert.IsType(t, &storage.LocalFilePersister{}, p)

	cfg.S3Bucket = "artifacts"
	cfg.S3Endpoint = "http://127.0.0.1:9000"
	p, err = cfg.Persister(context.Background())
	require.NoError(t, err)
	assert.IsType(t, &storage.S3FilePersister{}, p)
}

func TestNewRuntime(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.ArtifactsDir = t.TempDir()
	cfg.BaseURL = "https://reqres.test/"
	cfg.MetricsEnabled = true
	cfg.LogLevel = "WARNING"
	cfg.LogCategoryFilter = "^Session"

	reg := prometheus.NewRegistry()
	rt, err := cfg.NewRuntime(context.Background(), reg)
	require.NoError(t, err)

	assert.NotEmpty(t, rt.Run.ID)
	assert.Equal(t, "https://reqres.test/", rt.Run.BaseURL)
	assert.NotNil(t, rt.Run.Metrics)
	assert.NotNil(t, rt.Hook)
	assert.Equal(t, session.StateUninitialized, rt.Run.Session.State())
	assert.Equal(t, session.KindChrome, rt.Run.Session.Config().Kind)

	// closing before launch only flushes the tracer
	require.NoError(t, rt.Close(context.Background()))
	assert.Equal(t, session.StateUninitialized, rt.Run.Session.State())
}

func TestNewRuntimeBadFilter(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.LogCategoryFilter = "("
	_, err := cfg.NewRuntime(context.Background(), nil)
	assert.ErrorContains(t, err, "log category filter")
}
