package tests

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextWithoutViewport(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		args  []string
		width string
	}{
		{name: "base_window_size", width: "1920"},
		{name: "overridden_window_size", args: []string{"--window-size=1024,768"}, width: "1024"},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			tb := newTestBrowser(t, withExtraArgs(tc.args...))
			p := openReqres(tb)

			// pages follow the window, not an emulated viewport
			got, err := p.TextOf(tb.ctx, windowWidth)
			require.NoError(t, err)
			assert.Equal(t, tc.width, got)
		})
	}
}
