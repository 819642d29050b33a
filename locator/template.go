// Package locator implements named, parameterizable element selectors.
//
// A Template such as
//
//	locator.New("request link", `//li[@data-id="{text}"]//a`)
//
// resolves with {"text": "users"} to the selector
// //li[@data-id="users"]//a. Placeholders are {key} where key is an
// identifier; any other braces are left untouched so CSS and XPath stay
// usable as is.
package locator

import (
	"fmt"
	"regexp"
	"strings"
)

// Params maps placeholder names to their values.
type Params map[string]string

// Template is an immutable named selector template.
type Template struct {
	name     string
	template string
}

// Resolved is a template with every placeholder substituted.
type Resolved struct {
	// Name is the human readable label of the template.
	Name     string
	Selector string
}

func (r Resolved) String() string {
	return r.Name + " (" + r.Selector + ")"
}

var placeholderRe = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// New returns a template named name.
func New(name, template string) Template {
	return Template{name: name, template: template}
}

// Name returns the human readable label.
func (t Template) Name() string { return t.name }

// Raw returns the unresolved template text.
func (t Template) Raw() string { return t.template }

// Placeholders returns the distinct placeholder keys in order of first
// appearance.
func (t Template) Placeholders() []string {
	var (
		keys []string
		seen = map[string]bool{}
	)
	for _, m := range placeholderRe.FindAllStringSubmatch(t.template, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			keys = append(keys, m[1])
		}
	}
	return keys
}

// Resolve substitutes every placeholder with its value from params.
// Values are inserted literally and never re-scanned for placeholders.
// Unused params are ignored.
func (t Template) Resolve(params Params) (Resolved, error) {
	idx := placeholderRe.FindAllStringSubmatchIndex(t.template, -1)
	if len(idx) == 0 {
		return Resolved{Name: t.name, Selector: t.template}, nil
	}

	var (
		b    strings.Builder
		last int
	)
	for _, m := range idx {
		key := t.template[m[2]:m[3]]
		v, ok := params[key]
		if !ok {
			return Resolved{}, &MissingParameterError{Locator: t.name, Key: key}
		}
		b.WriteString(t.template[last:m[0]])
		b.WriteString(v)
		last = m[1]
	}
	b.WriteString(t.template[last:])

	return Resolved{Name: t.name, Selector: b.String()}, nil
}

// MustResolve is like Resolve but panics on a missing parameter.
func (t Template) MustResolve(params Params) Resolved {
	r, err := t.Resolve(params)
	if err != nil {
		panic(err)
	}
	return r
}

// MissingParameterError is returned when a template references a
// placeholder absent from the supplied params.
type MissingParameterError struct {
	Locator string
	Key     string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("locator %q: missing parameter %q", e.Locator, e.Key)
}
