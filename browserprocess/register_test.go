package browserprocess

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/grafana/pagekit/log"
)

// The register is global, so these tests don't run in parallel.

func TestRegisterPerRun(t *testing.T) { //nolint:paralleltest
	var killed []int
	defer func(k func(int)) { Kill = k }(Kill)
	Kill = func(pid int) { killed = append(killed, pid) }

	logger := log.NewNullLogger()
	runA := WithRunID(context.Background(), "run-a")
	runB := WithRunID(context.Background(), "run-b")

	Register(runA, logger, 1001)
	Register(runA, logger, 1002)
	Register(runB, logger, 2001)
	t.Cleanup(func() {
		Unregister(1001)
		Unregister(1002)
		Unregister(2001)
	})

	pids := Registered(runA)
	sort.Ints(pids)
	assert.Equal(t, []int{1001, 1002}, pids)

	ForceProcessShutdown(runA)
	sort.Ints(killed)
	assert.Equal(t, []int{1001, 1002}, killed)
	assert.Empty(t, Registered(runA))
	assert.Equal(t, []int{2001}, Registered(runB))
}

func TestUnregister(t *testing.T) { //nolint:paralleltest
	ctx := WithRunID(context.Background(), "run-c")
	Register(ctx, log.NewNullLogger(), 3001)
	assert.Equal(t, []int{3001}, Registered(ctx))

	Unregister(3001)
	assert.Empty(t, Registered(ctx))
}

func TestRunIDContext(t *testing.T) {
	t.Parallel()

	assert.Empty(t, GetRunID(context.Background()))
	assert.Equal(t, "abc", GetRunID(WithRunID(context.Background(), "abc")))
}
