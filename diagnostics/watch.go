package diagnostics

import (
	"context"
	"sync"
	"testing"
)

// Watcher tracks the phases of one test. Use Cleanup for teardown steps
// that must not count as part of the test body.
type Watcher struct {
	mu       sync.Mutex
	teardown []func()
}

// Cleanup registers fn to run after the body outcome was reported. Like
// testing.TB.Cleanup, functions run last registered first.
func (w *Watcher) Cleanup(fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.teardown = append(w.teardown, fn)
}

func (w *Watcher) runTeardown() {
	w.mu.Lock()
	fns := w.teardown
	w.teardown = nil
	w.mu.Unlock()

	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
}

// Watch reports the outcome of the test body of t to h once t finishes.
// Call it after setup: a test that already failed when Watch is called is
// reported as a setup failure and produces nothing.
//
// The body ends when the cleanup registered by Watch runs. Cleanups added
// to t after Watch run before it and count as body; register teardown
// steps through the returned Watcher instead.
func (h *Hook) Watch(t testing.TB, resources ...string) *Watcher {
	t.Helper()

	w := &Watcher{}
	failedInSetup := t.Failed()

	t.Cleanup(func() {
		ctx := context.Background()
		if failedInSetup {
			h.OnTestOutcome(ctx, Outcome{
				TestID: t.Name(), Phase: PhaseSetup, Resources: resources, Failed: true,
			})
			w.runTeardown()
			return
		}

		h.OnTestOutcome(ctx, Outcome{
			TestID: t.Name(), Phase: PhaseCall, Resources: resources, Failed: t.Failed(),
		})

		w.runTeardown()
		h.OnTestOutcome(ctx, Outcome{
			TestID: t.Name(), Phase: PhaseTeardown, Resources: resources, Failed: t.Failed(),
		})
	})

	return w
}
