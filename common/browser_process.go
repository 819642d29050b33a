/*
 *
 * xk6-browser - a browser automation extension for k6
 * Copyright (C) 2021 Load Impact
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as
 * published by the Free Software Foundation, either version 3 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

package common

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"

	"github.com/grafana/pagekit/browserprocess"
	"github.com/grafana/pagekit/log"
	"github.com/grafana/pagekit/storage"
)

// BrowserProcess is a locally launched browser.
type BrowserProcess struct {
	ctx    context.Context
	cancel context.CancelFunc

	// The process of the browser, if running locally.
	process *os.Process

	// Channels for managing termination.
	processIsGracefullyClosing chan struct{}
	gracefulOnce               sync.Once
	processDone                chan struct{}

	// Browser's WebSocket URL to speak CDP
	wsURL string

	// The directory where user data for the browser is stored.
	userDataDir *storage.Dir

	logger *log.Logger
}

// NewBrowserProcess starts the browser at path and waits until it prints
// its DevTools URL. The process is killed when ctx is done.
func NewBrowserProcess(
	ctx context.Context, path string, args, env []string, dataDir *storage.Dir,
	ctxCancel context.CancelFunc, logger *log.Logger,
) (*BrowserProcess, error) {
	cmd, err := execute(ctx, path, args, env, dataDir, logger)
	if err != nil {
		return nil, err
	}

	wsURL, err := parseDevToolsURL(ctx, cmd)
	if err != nil {
		ctxCancel()
		return nil, fmt.Errorf("getting DevTools URL: %w", err)
	}
	// Chrome blocks once the pipe buffer is full.
	go func() { _, _ = io.Copy(io.Discard, cmd.stderr) }()

	p := BrowserProcess{
		ctx:                        ctx,
		cancel:                     ctxCancel,
		process:                    cmd.Process,
		processIsGracefullyClosing: make(chan struct{}),
		processDone:                cmd.done,
		wsURL:                      wsURL,
		userDataDir:                dataDir,
		logger:                     logger,
	}

	go func() {
		// If the process ends and we're not in-progress with clean
		// browser-initiated termination then cancel the context to clean up.
		select {
		case <-p.processDone:
		case <-ctx.Done():
		}

		select {
		case <-p.processIsGracefullyClosing:
		default:
			p.cancel()
		}
	}()

	return &p, nil
}

// GracefulClose triggers a graceful closing of the browser process.
func (p *BrowserProcess) GracefulClose() {
	p.logger.Debugf("Browser:GracefulClose", "")
	p.gracefulOnce.Do(func() { close(p.processIsGracefullyClosing) })
}

// Terminate triggers the termination of the browser process.
func (p *BrowserProcess) Terminate() {
	p.logger.Debugf("Browser:Close", "browserProc terminate")
	p.cancel()
}

// Done is closed once the process has exited and its data directory is
// cleaned up.
func (p *BrowserProcess) Done() <-chan struct{} {
	return p.processDone
}

// WsURL returns the Websocket URL that the browser is listening on for CDP clients.
func (p *BrowserProcess) WsURL() string {
	return p.wsURL
}

// Pid returns the browser process ID.
func (p *BrowserProcess) Pid() int {
	return p.process.Pid
}

type command struct {
	*exec.Cmd
	done   chan struct{}
	stderr io.Reader
}

func execute(
	ctx context.Context, path string, args, env []string, dataDir *storage.Dir,
	logger *log.Logger,
) (command, error) {
	cmd := exec.CommandContext(ctx, path, args...)
	killAfterParent(cmd)

	// Set up environment variable for process
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return command{}, fmt.Errorf("%w", err)
	}

	// We must start the cmd before calling cmd.Wait, as otherwise the two
	// can run into a data race.
	err = cmd.Start()
	if os.IsNotExist(err) {
		return command{}, fmt.Errorf("file does not exist: %s", path)
	}
	if err != nil {
		return command{}, fmt.Errorf("%w", err)
	}
	if ctx.Err() != nil {
		return command{}, fmt.Errorf("%w", ctx.Err())
	}

	pid := cmd.Process.Pid
	browserprocess.Register(ctx, logger, pid)

	done := make(chan struct{})
	go func() {
		defer func() {
			browserprocess.Unregister(pid)
			if err := dataDir.Cleanup(); err != nil {
				logger.Errorf("browser", "cleaning up the user data directory: %v", err)
			}
			close(done)
		}()

		if err := cmd.Wait(); err != nil && ctx.Err() == nil {
			logger.Errorf("browser", "process with PID %d unexpectedly ended: %v", pid, err)
		}
	}()

	return command{cmd, done, stderr}, nil
}

// stderrError matches Chrome's log lines, e.g.
// [6497:6497:1013/103521.932979:ERROR:ozone_platform_x11.cc(247)] Missing X server or $DISPLAY
var stderrError = regexp.MustCompile(`^\[[^\]]*:ERROR:[^\]]*\]\s*(.+)$`)

// parseDevToolsURL reads the browser's stderr until it prints the address
// of its DevTools endpoint.
func parseDevToolsURL(ctx context.Context, cmd command) (string, error) {
	type result struct {
		url string
		err error
	}
	resCh := make(chan result, 1)

	go func() {
		const urlPrefix = "DevTools listening on "

		var lastErr string
		scanner := bufio.NewScanner(cmd.stderr)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if strings.HasPrefix(line, urlPrefix) {
				resCh <- result{url: strings.TrimPrefix(line, urlPrefix)}
				return
			}
			if m := stderrError.FindStringSubmatch(line); m != nil {
				lastErr = m[1]
			}
		}

		err := scanner.Err()
		switch {
		case lastErr != "":
			err = errors.New(lastErr)
		case err == nil:
			err = errors.New("browser process ended unexpectedly")
		}
		resCh <- result{err: err}
	}()

	select {
	case r := <-resCh:
		return r.url, r.err
	case <-cmd.done:
		return "", errors.New("browser process ended unexpectedly")
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
