// Package chromium is responsible for launching a Chrome browser process and managing its lifetime.
package chromium

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/grafana/pagekit/api"
	"github.com/grafana/pagekit/common"
	"github.com/grafana/pagekit/log"
	"github.com/grafana/pagekit/storage"
)

// ExecutablePathEnv overrides the Chrome executable lookup.
const ExecutablePathEnv = "PAGEKIT_BROWSER_EXECUTABLE_PATH"

// DefaultLaunchTimeout bounds a launch when LaunchOptions.Timeout is zero.
const DefaultLaunchTimeout = 30 * time.Second

// executableNames are looked up on PATH in order.
var executableNames = []string{ //nolint:gochecknoglobals
	"google-chrome",
	"google-chrome-stable",
	"chromium",
	"chromium-browser",
	"chrome",
}

var _ api.BrowserType = &BrowserType{}

// BrowserType launches Chrome and drives it over CDP.
type BrowserType struct {
	logger *log.Logger

	// lookPath and getenv are replaced in tests.
	lookPath func(string) (string, error)
	getenv   func(string) string

	mu    sync.Mutex
	procs []*common.BrowserProcess
}

// NewBrowserType returns a chromium BrowserType.
func NewBrowserType(logger *log.Logger) *BrowserType {
	return &BrowserType{
		logger:   logger,
		lookPath: exec.LookPath,
		getenv:   os.Getenv,
	}
}

// Name returns the browser kind.
func (b *BrowserType) Name() string {
	return "chromium"
}

// Launch starts a new Chrome process and connects to it.
//
// The process lives until the returned browser is closed or Stop is
// called; cancelling ctx only aborts the launch itself.
func (b *BrowserType) Launch(ctx context.Context, opts *api.LaunchOptions) (api.Browser, error) {
	if opts == nil {
		opts = &api.LaunchOptions{}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultLaunchTimeout
	}

	path, err := b.executablePath(opts.ExecutablePath)
	if err != nil {
		return nil, err
	}

	flags := prepareFlags(opts)
	var dataDir storage.Dir
	if err := dataDir.Make("", flags.userDataDir()); err != nil {
		return nil, fmt.Errorf("preparing user data directory: %w", err)
	}
	flags["user-data-dir"] = dataDir.Dir
	args := flags.args()

	b.logger.Debugf("BrowserType:Launch", "path:%q args:%v", path, args)

	// The process outlives the launch call, but keeps the run values.
	pctx, pcancel := context.WithCancel(context.WithoutCancel(ctx))
	timer := time.AfterFunc(timeout, pcancel)
	stop := context.AfterFunc(ctx, pcancel)

	proc, err := common.NewBrowserProcess(pctx, path, args, opts.Env, &dataDir, pcancel, b.logger)
	// Both must be disarmed, either one firing has killed the process.
	timerStopped, ctxStopped := timer.Stop(), stop()
	switch {
	case !ctxStopped:
		pcancel()
		return nil, fmt.Errorf("launching browser: %w", ctx.Err())
	case !timerStopped:
		pcancel()
		return nil, fmt.Errorf("launching browser: timed out after %s: %w", timeout, api.ErrTimeout)
	case err != nil:
		pcancel()
		if cerr := dataDir.Cleanup(); cerr != nil {
			b.logger.Debugf("BrowserType:Launch", "%v", cerr)
		}
		return nil, fmt.Errorf("launching browser: %w", err)
	}

	browser, err := common.NewBrowser(pctx, pcancel, proc, proc.WsURL(), b.logger)
	if err != nil {
		proc.Terminate()
		return nil, fmt.Errorf("connecting to launched browser: %w", err)
	}

	b.mu.Lock()
	b.procs = append(b.procs, proc)
	b.mu.Unlock()

	b.logger.Debugf("BrowserType:Launch", "pid:%d version:%q", proc.Pid(), browser.Version())

	return browser, nil
}

// Connect attaches to a running browser. wsEndpoint is either the
// browser's DevTools WebSocket URL or its HTTP debugging address.
func (b *BrowserType) Connect(ctx context.Context, wsEndpoint string, opts *api.LaunchOptions) (api.Browser, error) {
	if opts == nil {
		opts = &api.LaunchOptions{}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultLaunchTimeout
	}

	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	wsURL, err := resolveWebSocketURL(tctx, wsEndpoint)
	if err != nil {
		return nil, err
	}

	bctx, bcancel := context.WithCancel(context.WithoutCancel(ctx))
	browser, err := common.NewBrowser(bctx, bcancel, nil, wsURL, b.logger)
	if err != nil {
		bcancel()
		return nil, err
	}
	return browser, nil
}

// Stop terminates every browser process this type launched and waits for
// them to exit.
func (b *BrowserType) Stop(ctx context.Context) error {
	b.mu.Lock()
	procs := b.procs
	b.procs = nil
	b.mu.Unlock()

	for _, p := range procs {
		p.Terminate()
	}
	for _, p := range procs {
		select {
		case <-p.Done():
		case <-ctx.Done():
			return fmt.Errorf("waiting for browser pid %d to exit: %w", p.Pid(), ctx.Err())
		}
	}
	return nil
}

// FindExecutable returns the Chrome binary Launch would run without an
// explicit ExecutablePath.
func FindExecutable() (string, error) {
	return NewBrowserType(nil).executablePath("")
}

// executablePath returns the Chrome binary to run.
func (b *BrowserType) executablePath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	if path := b.getenv(ExecutablePathEnv); path != "" {
		return path, nil
	}
	for _, name := range executableNames {
		if path, err := b.lookPath(name); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf(
		"unable to find a Chrome executable (tried %s); set %s",
		strings.Join(executableNames, ", "), ExecutablePathEnv,
	)
}

// flags maps a command line flag name, without dashes, to its value.
// A true bool is a bare switch, false drops the flag.
type flags map[string]interface{}

func prepareFlags(opts *api.LaunchOptions) flags {
	f := flags{
		"remote-debugging-port":                              "0",
		"no-first-run":                                       true,
		"no-default-browser-check":                           true,
		"no-startup-window":                                  false,
		"disable-background-networking":                      true,
		"disable-background-timer-throttling":                true,
		"disable-backgrounding-occluded-windows":             true,
		"disable-breakpad":                                   true,
		"disable-component-extensions-with-background-pages": true,
		"disable-default-apps":                               true,
		"disable-dev-shm-usage":                              true,
		"disable-extensions":                                 true,
		"disable-hang-monitor":                               true,
		"disable-popup-blocking":                             true,
		"disable-prompt-on-repost":                           true,
		"disable-renderer-backgrounding":                     true,
		"disable-sync":                                       true,
		"metrics-recording-only":                             true,
		"password-store":                                     "basic",
		"use-mock-keychain":                                  true,
		"headless":                                           false,
		"hide-scrollbars":                                    false,
		"mute-audio":                                         false,
	}
	if opts.Headless {
		f["headless"] = "new"
		f["hide-scrollbars"] = true
		f["mute-audio"] = true
	}

	for _, arg := range opts.Args {
		name, value := parseArg(arg)
		if name == "" {
			continue
		}
		f[name] = value
	}

	return f
}

func (f flags) userDataDir() string {
	if dir, ok := f["user-data-dir"].(string); ok {
		return dir
	}
	return ""
}

// args renders the flags sorted by name, followed by the start URL.
func (f flags) args() []string {
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	sort.Strings(names)

	args := make([]string, 0, len(f)+1)
	for _, name := range names {
		switch v := f[name].(type) {
		case bool:
			if v {
				args = append(args, "--"+name)
			}
		case string:
			args = append(args, fmt.Sprintf("--%s=%s", name, v))
		}
	}
	return append(args, "about:blank")
}

// parseArg splits "--name=value" into its parts. A flag without a value
// is a switch.
func parseArg(arg string) (string, interface{}) {
	arg = strings.TrimLeft(strings.TrimSpace(arg), "-")
	if arg == "" {
		return "", nil
	}
	name, value, ok := strings.Cut(arg, "=")
	if !ok {
		return name, true
	}
	return name, value
}

// resolveWebSocketURL asks an HTTP debugging endpoint for the browser's
// WebSocket URL. WebSocket URLs are returned unchanged.
func resolveWebSocketURL(ctx context.Context, endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parsing browser endpoint %q: %w", endpoint, err)
	}
	if u.Scheme == "ws" || u.Scheme == "wss" {
		return endpoint, nil
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported browser endpoint scheme %q", u.Scheme)
	}

	u.Path = strings.TrimSuffix(u.Path, "/") + "/json/version"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("querying browser endpoint: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("querying browser endpoint: unexpected status %s", resp.Status)
	}
	var version struct {
		WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&version); err != nil {
		return "", fmt.Errorf("decoding browser version: %w", err)
	}
	if version.WebSocketDebuggerURL == "" {
		return "", errors.New("browser endpoint did not report a WebSocket URL")
	}
	return version.WebSocketDebuggerURL, nil
}
