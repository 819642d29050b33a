package log

import (
	"bytes"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		in   string
		want logrus.Level
		err  bool
	}{
		{in: "DEBUG", want: logrus.DebugLevel},
		{in: "info", want: logrus.InfoLevel},
		{in: "SUCCESS", want: logrus.InfoLevel},
		{in: "WARNING", want: logrus.WarnLevel},
		{in: "warn", want: logrus.WarnLevel},
		{in: "ERROR", want: logrus.ErrorLevel},
		{in: "CRITICAL", want: logrus.FatalLevel},
		{in: "loud", err: true},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.in, func(t *testing.T) {
			t.Parallel()

			got, err := ParseLevel(tc.in)
			if tc.err {
				assert.EqualError(t, err, `unknown log level "loud"`)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestLoggerCategories(t *testing.T) {
	t.Parallel()

	lg, hook := test.NewNullLogger()
	lg.SetLevel(logrus.InfoLevel)
	l := New(lg, false, regexp.MustCompile("^Page"))

	l.Infof("Page:Navigate", "navigated to %q", "http://example.com")
	l.Infof("Session:Launch", "filtered out")
	l.Debugf("Page:Find", "below level")

	entries := hook.AllEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, `navigated to "http://example.com"`, entries[0].Message)
	assert.Equal(t, "Page:Navigate", entries[0].Data["category"])
	assert.Contains(t, entries[0].Data, "elapsed")
}

func TestLoggerDebugOverride(t *testing.T) {
	t.Parallel()

	lg, hook := test.NewNullLogger()
	lg.SetLevel(logrus.InfoLevel)
	l := New(lg, true, nil)

	l.Debugf("cdp", "sent %d", 1)

	require.Len(t, hook.AllEntries(), 1)
	assert.Equal(t, logrus.InfoLevel, hook.LastEntry().Level)
}

type sampleWarning struct{ what string }

func (w *sampleWarning) Error() string { return "cannot " + w.what }

func TestLoggerWarningKeepsError(t *testing.T) {
	t.Parallel()

	lg, hook := test.NewNullLogger()
	l := New(lg, false, nil)

	l.Warning("Session:Close", &sampleWarning{what: "close"})

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "cannot close", entry.Message)
	var w *sampleWarning
	err, ok := entry.Data[logrus.ErrorKey].(error)
	require.True(t, ok)
	assert.True(t, errors.As(err, &w))
}

func TestLoggerSuccessf(t *testing.T) {
	t.Parallel()

	lg, hook := test.NewNullLogger()
	l := New(lg, false, nil)

	l.Successf("Step", "done %s", "click")

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, "success", entry.Data["status"])
}

func TestLoggerSetCategoryFilter(t *testing.T) {
	t.Parallel()

	lg, hook := test.NewNullLogger()
	l := New(lg, false, nil)

	require.NoError(t, l.SetCategoryFilter("^cdp"))
	l.Infof("Page", "dropped")
	l.Infof("cdp:send", "kept")
	require.Len(t, hook.AllEntries(), 1)

	require.NoError(t, l.SetCategoryFilter(""))
	l.Infof("Page", "kept")
	assert.Len(t, hook.AllEntries(), 2)

	assert.Error(t, l.SetCategoryFilter("("))
}

func TestNilLoggerIsSilent(t *testing.T) {
	t.Parallel()

	var l *Logger
	assert.NotPanics(t, func() { l.Infof("x", "y") })
}

func TestConsoleFormatter(t *testing.T) {
	t.Parallel()

	f := &ConsoleFormatter{NoColor: true}
	e := &logrus.Entry{
		Time:    time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC),
		Level:   logrus.WarnLevel,
		Message: "tab not found",
		Data:    logrus.Fields{"category": "Page:CloseTab", "url": "x"},
	}

	b, err := f.Format(e)
	require.NoError(t, err)
	assert.Equal(t, "15:04:05.000 WARN  [Page:CloseTab] tab not found url=x\n", string(b))
}

func TestNewConsole(t *testing.T) {
	t.Parallel()

	l, err := NewConsole("SUCCESS", true)
	require.NoError(t, err)
	var buf bytes.Buffer
	l.SetOutput(&buf)

	l.Infof("Session", "ready")
	assert.True(t, strings.HasSuffix(buf.String(), "[Session] ready elapsed=0 ms\n"), buf.String())

	_, err = NewConsole("nope", true)
	assert.Error(t, err)
}
