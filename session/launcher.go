package session

import (
	"fmt"

	"github.com/grafana/pagekit/api"
	"github.com/grafana/pagekit/chromium"
	"github.com/grafana/pagekit/log"
	"github.com/grafana/pagekit/pwbridge"
)

// Launcher maps a browser kind to the engine's BrowserType.
type Launcher interface {
	BrowserType(kind Kind) (api.BrowserType, error)
}

// LauncherFunc adapts a function to a Launcher.
type LauncherFunc func(kind Kind) (api.BrowserType, error)

// BrowserType calls f(kind).
func (f LauncherFunc) BrowserType(kind Kind) (api.BrowserType, error) {
	return f(kind)
}

// NewLauncher returns the Launcher of engine.
func NewLauncher(engine Engine, logger *log.Logger) (Launcher, error) {
	switch engine {
	case EngineCDP:
		return &cdpLauncher{logger: logger}, nil
	case EnginePlaywright:
		return &playwrightLauncher{logger: logger}, nil
	}
	return nil, fmt.Errorf("unknown browser engine %v", engine)
}

type cdpLauncher struct {
	logger *log.Logger
}

func (l *cdpLauncher) BrowserType(kind Kind) (api.BrowserType, error) {
	switch kind {
	case KindChrome:
		return chromium.NewBrowserType(l.logger), nil
	case KindFirefox:
		return nil, &UnsupportedBrowserError{Name: kind.String(), Engine: EngineCDP.String()}
	}
	return nil, &UnsupportedBrowserError{Name: kind.String()}
}

type playwrightLauncher struct {
	logger *log.Logger
}

func (l *playwrightLauncher) BrowserType(kind Kind) (api.BrowserType, error) {
	switch kind {
	case KindChrome:
		return pwbridge.NewBrowserType(pwbridge.Chromium, l.logger), nil
	case KindFirefox:
		return pwbridge.NewBrowserType(pwbridge.Firefox, l.logger), nil
	}
	return nil, &UnsupportedBrowserError{Name: kind.String()}
}
