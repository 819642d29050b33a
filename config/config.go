// Package config loads the settings of a test run from defaults, an
// optional YAML file and PAGEKIT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/guregu/null.v3"
	"gopkg.in/yaml.v3"

	"github.com/grafana/pagekit/log"
	"github.com/grafana/pagekit/pageobject"
	"github.com/grafana/pagekit/session"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "PAGEKIT"

// Defaults.
const (
	DefaultBrowser  = "chrome"
	DefaultEngine   = "cdp"
	DefaultLogLevel = "INFO"
)

// Config is the configuration surface of a run.
type Config struct {
	Browser  string `yaml:"browser"`
	Engine   string `yaml:"engine"`
	Headless bool   `yaml:"headless"`
	Remote   bool   `yaml:"remote"`
	// RemoteURL is a DevTools WebSocket or HTTP endpoint, or a Playwright
	// server endpoint.
	RemoteURL       string        `yaml:"remote_url"`
	BaseURL         string        `yaml:"web_url"`
	DefaultTimeout  time.Duration `yaml:"timeout"`
	TeardownTimeout time.Duration `yaml:"teardown_timeout"`
	LogLevel        string        `yaml:"log_level"`
	// LogCategoryFilter is a regexp matched against log categories.
	LogCategoryFilter string   `yaml:"log_category_filter"`
	Locale            string   `yaml:"locale"`
	ExtraArgs         []string `yaml:"extra_args"`
	ExecutablePath    string   `yaml:"executable_path"`
	// ArtifactsDir is where failure screenshots go. With S3Bucket set it
	// is the key prefix inside the bucket.
	ArtifactsDir   string `yaml:"artifacts_dir"`
	S3Bucket       string `yaml:"s3_bucket"`
	S3Endpoint     string `yaml:"s3_endpoint"`
	MetricsEnabled bool   `yaml:"metrics"`
	// TraceEndpoint is an OTLP/HTTP URL, or "stdout".
	TraceEndpoint string `yaml:"trace_endpoint"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Browser:         DefaultBrowser,
		Engine:          DefaultEngine,
		Headless:        true,
		DefaultTimeout:  pageobject.DefaultTimeout,
		TeardownTimeout: session.DefaultTeardownTimeout,
		LogLevel:        DefaultLogLevel,
		Locale:          session.DefaultLocale,
		ArtifactsDir:    "artifacts",
	}
}

// env mirrors Config for envconfig. Unset variables stay invalid and
// leave the value from the file or the defaults alone.
type env struct {
	Browser           null.String `envconfig:"BROWSER"`
	Engine            null.String `envconfig:"ENGINE"`
	Headless          null.Bool   `envconfig:"HEADLESS"`
	Remote            null.Bool   `envconfig:"REMOTE"`
	RemoteURL         null.String `envconfig:"REMOTE_URL"`
	BaseURL           null.String `envconfig:"WEB_URL"`
	DefaultTimeout    null.String `envconfig:"TIMEOUT"`
	TeardownTimeout   null.String `envconfig:"TEARDOWN_TIMEOUT"`
	LogLevel          null.String `envconfig:"LOG_LEVEL"`
	LogCategoryFilter null.String `envconfig:"LOG_CATEGORY_FILTER"`
	Locale            null.String `envconfig:"LOCALE"`
	ExtraArgs         []string    `envconfig:"EXTRA_ARGS"`
	ExecutablePath    null.String `envconfig:"EXECUTABLE_PATH"`
	ArtifactsDir      null.String `envconfig:"ARTIFACTS_DIR"`
	S3Bucket          null.String `envconfig:"S3_BUCKET"`
	S3Endpoint        null.String `envconfig:"S3_ENDPOINT"`
	MetricsEnabled    null.Bool   `envconfig:"METRICS"`
	TraceEndpoint     null.String `envconfig:"TRACE_ENDPOINT"`
}

// Load returns the defaults overridden by the YAML file at path, if path
// is not empty, and then by the environment. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing config file %q: %w", path, err)
	}
	if doc.Kind == 0 {
		return nil
	}
	if err := normalizeTimeouts(&doc); err != nil {
		return fmt.Errorf("parsing config file %q: %w", path, err)
	}
	// decoding into c only replaces the keys present in the file
	if err := doc.Decode(c); err != nil {
		return fmt.Errorf("parsing config file %q: %w", path, err)
	}
	return nil
}

// timeoutKeys are the YAML keys holding durations.
var timeoutKeys = map[string]bool{
	"timeout":          true,
	"teardown_timeout": true,
}

// normalizeTimeouts rewrites timeout scalars through ParseTimeout, so a
// bare integer in the file means milliseconds as it does in the
// environment.
func normalizeTimeouts(doc *yaml.Node) error {
	root := doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		k, v := root.Content[i], root.Content[i+1]
		if !timeoutKeys[k.Value] || v.Kind != yaml.ScalarNode {
			continue
		}
		d, err := ParseTimeout(v.Value)
		if err != nil {
			return fmt.Errorf("%s: %w", k.Value, err)
		}
		v.Value = d.String()
		v.Tag = "!!str"
		v.Style = 0
	}
	return nil
}

func (c *Config) loadEnv() error {
	var e env
	if err := envconfig.Process(EnvPrefix, &e); err != nil {
		return fmt.Errorf("reading environment: %w", err)
	}

	setString(&c.Browser, e.Browser)
	setString(&c.Engine, e.Engine)
	setBool(&c.Headless, e.Headless)
	setBool(&c.Remote, e.Remote)
	setString(&c.RemoteURL, e.RemoteURL)
	setString(&c.BaseURL, e.BaseURL)
	setString(&c.LogLevel, e.LogLevel)
	setString(&c.LogCategoryFilter, e.LogCategoryFilter)
	setString(&c.Locale, e.Locale)
	setString(&c.ExecutablePath, e.ExecutablePath)
	setString(&c.ArtifactsDir, e.ArtifactsDir)
	setString(&c.S3Bucket, e.S3Bucket)
	setString(&c.S3Endpoint, e.S3Endpoint)
	setBool(&c.MetricsEnabled, e.MetricsEnabled)
	setString(&c.TraceEndpoint, e.TraceEndpoint)
	if len(e.ExtraArgs) > 0 {
		c.ExtraArgs = e.ExtraArgs
	}

	var err error
	if c.DefaultTimeout, err = durationOr(c.DefaultTimeout, e.DefaultTimeout); err != nil {
		return fmt.Errorf("%s_TIMEOUT: %w", EnvPrefix, err)
	}
	if c.TeardownTimeout, err = durationOr(c.TeardownTimeout, e.TeardownTimeout); err != nil {
		return fmt.Errorf("%s_TEARDOWN_TIMEOUT: %w", EnvPrefix, err)
	}

	return nil
}

func setString(dst *string, v null.String) {
	if v.Valid {
		*dst = v.String
	}
}

func setBool(dst *bool, v null.Bool) {
	if v.Valid {
		*dst = v.Bool
	}
}

// durationOr parses v as a Go duration, or as a plain number of
// milliseconds, and returns def when v is unset.
func durationOr(def time.Duration, v null.String) (time.Duration, error) {
	if !v.Valid {
		return def, nil
	}
	return ParseTimeout(v.String)
}

// ParseTimeout parses "15s" style durations and bare millisecond counts.
func ParseTimeout(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q", s)
	}
	return d, nil
}

// Validate checks the values that have a fixed vocabulary or depend on
// each other.
func (c *Config) Validate() error {
	var errs []error

	kind, kerr := session.ParseKind(c.Browser)
	if kerr != nil {
		errs = append(errs, kerr)
	}
	engine, eerr := session.ParseEngine(c.Engine)
	if eerr != nil {
		errs = append(errs, eerr)
	}
	if kerr == nil && eerr == nil && engine == session.EngineCDP && kind == session.KindFirefox {
		errs = append(errs, &session.UnsupportedBrowserError{Name: c.Browser, Engine: engine.String()})
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.Remote && c.RemoteURL == "" {
		errs = append(errs, errors.New("remote_url is required when remote is set"))
	}
	if c.DefaultTimeout < 0 {
		errs = append(errs, fmt.Errorf("timeout must not be negative, got %s", c.DefaultTimeout))
	}
	if c.TeardownTimeout < 0 {
		errs = append(errs, fmt.Errorf("teardown_timeout must not be negative, got %s", c.TeardownTimeout))
	}
	if c.BaseURL != "" {
		if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("web_url %q is not an absolute URL", c.BaseURL))
		}
	}
	if c.TraceEndpoint != "" && c.TraceEndpoint != TraceStdout {
		if _, _, err := parseTraceEndpoint(c.TraceEndpoint); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// SessionConfig returns the browser session settings.
func (c *Config) SessionConfig() (session.Config, error) {
	kind, err := session.ParseKind(c.Browser)
	if err != nil {
		return session.Config{}, err
	}
	return session.Config{
		Kind:            kind,
		Headless:        c.Headless,
		Remote:          c.Remote,
		RemoteURL:       c.RemoteURL,
		ExtraArgs:       c.ExtraArgs,
		ExecutablePath:  c.ExecutablePath,
		Locale:          c.Locale,
		TeardownTimeout: c.TeardownTimeout,
	}, nil
}

// RunOptions returns the run settings taken from the configuration.
func (c *Config) RunOptions() []pageobject.RunOption {
	return []pageobject.RunOption{
		pageobject.WithBaseURL(c.BaseURL),
		pageobject.WithDefaultTimeout(c.DefaultTimeout),
	}
}
