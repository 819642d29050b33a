package log

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

// ConsoleFormatter renders entries as a single human readable line:
//
//	15:04:05.000 INFO  [Page:Navigate] navigated to "http://..." elapsed=3 ms
type ConsoleFormatter struct {
	// NoColor disables colouring regardless of the terminal.
	NoColor bool
}

var _ logrus.Formatter = &ConsoleFormatter{}

//nolint:gochecknoglobals
var levelColors = map[logrus.Level]*color.Color{
	logrus.TraceLevel: color.New(color.FgHiBlack),
	logrus.DebugLevel: color.New(color.FgCyan),
	logrus.InfoLevel:  color.New(color.FgGreen),
	logrus.WarnLevel:  color.New(color.FgYellow),
	logrus.ErrorLevel: color.New(color.FgRed),
	logrus.FatalLevel: color.New(color.FgRed, color.Bold),
	logrus.PanicLevel: color.New(color.FgRed, color.Bold),
}

// Format implements logrus.Formatter.
func (f *ConsoleFormatter) Format(e *logrus.Entry) ([]byte, error) {
	var b bytes.Buffer

	level := fmt.Sprintf("%-5.5s", levelName(e.Level))
	category, _ := e.Data["category"].(string)
	if !f.NoColor {
		if c, ok := levelColors[e.Level]; ok {
			level = c.Sprint(level)
		}
		if category != "" {
			category = color.New(color.FgMagenta).Sprint(category)
		}
	}

	b.WriteString(e.Time.Format("15:04:05.000"))
	b.WriteByte(' ')
	b.WriteString(level)
	if category != "" {
		fmt.Fprintf(&b, " [%s]", category)
	}
	b.WriteByte(' ')
	b.WriteString(e.Message)

	keys := make([]string, 0, len(e.Data))
	for k := range e.Data {
		if k == "category" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.Data[k])
	}
	b.WriteByte('\n')

	return b.Bytes(), nil
}

func levelName(l logrus.Level) string {
	switch l {
	case logrus.WarnLevel:
		return "WARN"
	case logrus.FatalLevel:
		return "CRIT"
	default:
		return strings.ToUpper(l.String())
	}
}

// NewConsole returns a logger writing coloured lines to stderr at the
// given level.
func NewConsole(level string, noColor bool) (*Logger, error) {
	pl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	lg := logrus.New()
	lg.SetFormatter(&ConsoleFormatter{NoColor: noColor || color.NoColor})
	lg.SetLevel(pl)
	return New(lg, false, nil), nil
}
