package common

import (
	"context"
	"io"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const devToolsWS = "ws://127.0.0.1:41315/devtools/browser/d1d3f8eb-b362-4f12-9370-bd25778d0da7"

// stderrOf returns a reader that yields lines and then fails with err, or
// reports io.EOF when err is nil.
func stderrOf(err error, lines ...string) io.Reader {
	r := strings.NewReader(strings.Join(lines, "\n"))
	if err == nil {
		return r
	}
	return io.MultiReader(r, iotest.ErrReader(err))
}

func TestParseDevToolsURL(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		stderr  io.Reader
		wantURL string
		wantErr string
	}{
		{
			name:    "listening",
			stderr:  stderrOf(nil, "DevTools listening on "+devToolsWS),
			wantURL: devToolsWS,
		},
		{
			name: "noise_before_url",
			stderr: stderrOf(nil,
				`[23400:23418:1028/115455.877614:ERROR:bus.cc(399)] Failed to connect to the bus: `+
					`Could not parse server address`,
				"",
				"   DevTools listening on "+devToolsWS+"   ",
				`[0:0:0/0:ERROR:late.cc(1)] ignored`,
			),
			wantURL: devToolsWS,
		},
		{
			name: "reports_last_chrome_error",
			stderr: stderrOf(io.ErrUnexpectedEOF,
				`[1:1:1013/103521.932979:ERROR:gpu_init.cc(12)] Passthrough is not supported`,
				`[6497:6497:1013/103521.932979:ERROR:ozone_platform_x11.cc(247)] Missing X server or $DISPLAY`,
				`[6497:6497:1013/103521.932979:WARNING:sandbox.cc(3)] not an error`,
			),
			wantErr: "Missing X server or $DISPLAY",
		},
		{
			name:    "read_error",
			stderr:  stderrOf(io.ErrUnexpectedEOF),
			wantErr: "unexpected EOF",
		},
		{
			name:    "eof_without_url",
			stderr:  stderrOf(nil, "Fontconfig warning: ignoring UTF-8"),
			wantErr: "browser process ended unexpectedly",
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cmd := command{done: make(chan struct{}), stderr: tc.stderr}
			wsURL, err := parseDevToolsURL(context.Background(), cmd)
			if tc.wantErr != "" {
				assert.Empty(t, wsURL)
				assert.EqualError(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantURL, wsURL)
		})
	}
}

func TestParseDevToolsURLInterrupted(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		interrupt func(cancel context.CancelFunc, done chan struct{})
		wantErr   string
	}{
		{
			name:      "process_exits",
			interrupt: func(_ context.CancelFunc, done chan struct{}) { close(done) },
			wantErr:   "browser process ended unexpectedly",
		},
		{
			name:      "context_canceled",
			interrupt: func(cancel context.CancelFunc, _ chan struct{}) { cancel() },
			wantErr:   "context canceled",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			// stderr stays open and silent, like a hung browser
			pr, pw := io.Pipe()
			t.Cleanup(func() { _ = pw.Close() })

			ctx, cancel := context.WithCancel(context.Background())
			t.Cleanup(cancel)
			done := make(chan struct{})

			type result struct {
				url string
				err error
			}
			resCh := make(chan result, 1)
			go func() {
				u, err := parseDevToolsURL(ctx, command{done: done, stderr: pr})
				resCh <- result{u, err}
			}()

			tc.interrupt(cancel, done)

			select {
			case r := <-resCh:
				assert.Empty(t, r.url)
				assert.EqualError(t, r.err, tc.wantErr)
			case <-time.After(5 * time.Second):
				t.Fatal("parseDevToolsURL did not return")
			}
		})
	}
}
