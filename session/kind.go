package session

import (
	"fmt"
	"strings"
)

// Kind is a supported browser kind.
type Kind int

const (
	KindChrome Kind = iota + 1
	KindFirefox
)

func (k Kind) String() string {
	switch k {
	case KindChrome:
		return "chrome"
	case KindFirefox:
		return "firefox"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind maps a browser name to its Kind. "chromium" is an alias of
// "chrome". Names are matched case-insensitively.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "chrome", "chromium":
		return KindChrome, nil
	case "firefox":
		return KindFirefox, nil
	}
	return 0, &UnsupportedBrowserError{Name: name}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	v, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Engine selects the browser automation backend.
type Engine int

const (
	// EngineCDP drives Chrome over the DevTools protocol directly.
	EngineCDP Engine = iota
	// EnginePlaywright drives browsers through the Playwright driver.
	EnginePlaywright
)

func (e Engine) String() string {
	switch e {
	case EngineCDP:
		return "cdp"
	case EnginePlaywright:
		return "playwright"
	}
	return fmt.Sprintf("Engine(%d)", int(e))
}

// ParseEngine maps an engine name to its Engine.
func ParseEngine(name string) (Engine, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "cdp":
		return EngineCDP, nil
	case "playwright":
		return EnginePlaywright, nil
	}
	return 0, fmt.Errorf("unknown browser engine %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (e Engine) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *Engine) UnmarshalText(text []byte) error {
	v, err := ParseEngine(string(text))
	if err != nil {
		return err
	}
	*e = v
	return nil
}
