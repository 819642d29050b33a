// Package browserprocess keeps track of the browser processes started by
// a run so they can be killed when the run cannot shut them down itself.
package browserprocess

import (
	"context"
	"os"
	"sync"

	"github.com/grafana/pagekit/log"
)

type processState struct {
	pid   int
	runID string
}

var (
	register   = map[int]*processState{} //nolint:gochecknoglobals
	registerMu = sync.Mutex{}            //nolint:gochecknoglobals
)

// Register records pid as belonging to the run in ctx.
func Register(ctx context.Context, logger *log.Logger, pid int) {
	registerMu.Lock()
	defer registerMu.Unlock()

	runID := GetRunID(ctx)
	logger.Debugf("BrowserProcess:register", "registered pid:%d run:%q", pid, runID)

	register[pid] = &processState{pid: pid, runID: runID}
}

// Unregister forgets pid, usually because the process has exited.
func Unregister(pid int) {
	registerMu.Lock()
	defer registerMu.Unlock()

	delete(register, pid)
}

// Registered returns the pids registered for the run in ctx, or every
// pid when ctx carries no run ID.
func Registered(ctx context.Context) []int {
	registerMu.Lock()
	defer registerMu.Unlock()

	return matching(GetRunID(ctx))
}

func matching(runID string) []int {
	var pids []int
	for pid, st := range register {
		if runID != "" && st.runID != runID {
			continue
		}
		pids = append(pids, pid)
	}
	return pids
}

// ForceProcessShutdown kills the browser processes of the run in ctx.
// It should be called when a session is unable to close its browser
// gracefully.
func ForceProcessShutdown(ctx context.Context) {
	registerMu.Lock()
	defer registerMu.Unlock()

	for _, pid := range matching(GetRunID(ctx)) {
		Kill(pid)
		delete(register, pid)
	}
}

// Kill looks for and kills the process with the given pid. It is a
// variable so tests can replace it.
var Kill = func(pid int) { //nolint:gochecknoglobals
	p, err := os.FindProcess(pid)
	if err != nil {
		// optimistically continue and don't kill the process
		return
	}
	// no need to check the error since we're already dying.
	_ = p.Kill()
	_ = p.Release()
}
