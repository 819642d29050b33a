package pwbridge

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grafana/pagekit/api"
	"github.com/grafana/pagekit/log"
)

func TestMapError(t *testing.T) {
	t.Parallel()

	assert.NoError(t, mapError(nil))

	plain := errors.New("boom")
	assert.Same(t, plain, mapError(plain))

	err := mapError(fmt.Errorf("clicking: %w", playwright.ErrTimeout))
	assert.ErrorIs(t, err, api.ErrTimeout)
	assert.ErrorIs(t, err, playwright.ErrTimeout)
	assert.Equal(t, "clicking: "+playwright.ErrTimeout.Error(), err.Error())
}

func TestMilliseconds(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 15000.0, *milliseconds(15 * time.Second), 0.001)
	assert.InDelta(t, 1.0, *milliseconds(0), 0.001, "zero must not mean no timeout")
	assert.InDelta(t, 1.5, *milliseconds(1500 * time.Microsecond), 0.001)
}

func TestEngineSelector(t *testing.T) {
	t.Parallel()

	testCases := map[string]string{
		`#main`:                     `#main`,
		`//li[@data-id="users"]//a`: `xpath=//li[@data-id="users"]//a`,
		`(//a)[2]`:                  `xpath=(//a)[2]`,
		`xpath=//div`:               `xpath=//div`,
	}
	for in, want := range testCases {
		assert.Equal(t, want, engineSelector(in), in)
	}
}

func TestEnvMap(t *testing.T) {
	t.Parallel()

	assert.Equal(t,
		map[string]string{"A": "1", "B": "x=y", "C": ""},
		envMap([]string{"A=1", "B=x=y", "C"}),
	)
}

func TestWithContext(t *testing.T) {
	t.Parallel()

	v, err := withContext(context.Background(), func() (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })
	_, err = withContext(ctx, func() (int, error) {
		<-block
		return 0, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBrowserTypeNameAndStop(t *testing.T) {
	t.Parallel()

	bt := NewBrowserType(Firefox, log.NewNullLogger())
	assert.Equal(t, "firefox", bt.Name())
	// the driver was never started
	assert.NoError(t, bt.Stop(context.Background()))
}
