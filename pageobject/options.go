package pageobject

import (
	"time"

	"github.com/grafana/pagekit/locator"
)

// Option adjusts a single controller call.
type Option func(*callOptions)

type callOptions struct {
	params     locator.Params
	timeout    time.Duration
	hasTimeout bool
}

// With supplies the value of one locator placeholder.
func With(key, value string) Option {
	return func(o *callOptions) {
		if o.params == nil {
			o.params = locator.Params{}
		}
		o.params[key] = value
	}
}

// Params supplies locator placeholder values. Later options win.
func Params(p locator.Params) Option {
	return func(o *callOptions) {
		if o.params == nil {
			o.params = make(locator.Params, len(p))
		}
		for k, v := range p {
			o.params[k] = v
		}
	}
}

// Timeout sets the wait budget of the call. Zero means a single check.
func Timeout(d time.Duration) Option {
	return func(o *callOptions) {
		if d < 0 {
			d = 0
		}
		o.timeout = d
		o.hasTimeout = true
	}
}

func (c *Controller) options(opts []Option) callOptions {
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}
	if !o.hasTimeout {
		o.timeout = c.run.DefaultTimeout
	}
	return o
}
