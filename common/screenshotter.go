/*
 *
 * xk6-browser - a browser automation extension for k6
 * Copyright (C) 2021 Load Impact
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as
 * published by the Free Software Foundation, either version 3 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

package common

import (
	"context"
	"fmt"

	cdppage "github.com/chromedp/cdproto/page"
	"github.com/pkg/errors"

	"github.com/grafana/pagekit/common/js"
)

// Size is a width and height in CSS pixels.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Screenshotter captures page screenshots.
type Screenshotter struct {
	page *Page
}

func newScreenshotter(p *Page) *Screenshotter {
	return &Screenshotter{page: p}
}

func (s *Screenshotter) fullPageSize(ctx context.Context) (*Size, error) {
	var size *Size
	expr := fmt.Sprintf("(%s).fullPageSize()", js.InjectedScript)
	if err := s.page.evaluateValue(ctx, expr, &size); err != nil {
		return nil, err
	}
	return size, nil
}

func (s *Screenshotter) screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	var clip *cdppage.Viewport
	if fullPage {
		size, err := s.fullPageSize(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "measuring page for screenshot")
		}
		// An empty document has no size; fall back to the viewport.
		if size != nil {
			clip = &cdppage.Viewport{
				X:      0,
				Y:      0,
				Width:  size.Width,
				Height: size.Height,
				Scale:  1,
			}
		}
	}

	buf, err := s.page.client.Page.CaptureScreenshot(s.page.sessionContext(ctx), clip)
	if err != nil {
		return nil, errors.Wrap(err, "unable to capture screenshot")
	}
	return buf, nil
}
