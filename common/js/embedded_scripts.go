// Package js holds the scripts evaluated inside pages by the CDP engine.
package js

import (
	_ "embed"
)

// InjectedScript evaluates to an object with the selector engine
// helpers: query, isVisible, check, count, element and fullPageSize.
//
//go:embed injected.js
var InjectedScript string

// IsVisibleFunction is called with this bound to an element.
const IsVisibleFunction = `function() {
	const style = window.getComputedStyle(this);
	if (style.visibility === 'hidden' || style.display === 'none') {
		return false;
	}
	const rect = this.getBoundingClientRect();
	return rect.width > 0 && rect.height > 0;
}`

// FillFunction sets the value of an input, textarea or content editable
// element and fires the events frameworks listen to.
const FillFunction = `function(value) {
	this.focus();
	if (this.isContentEditable) {
		this.textContent = value;
	} else {
		this.value = value;
	}
	this.dispatchEvent(new Event('input', { bubbles: true }));
	this.dispatchEvent(new Event('change', { bubbles: true }));
}`

// TextContentFunction returns the element text.
const TextContentFunction = `function() { return this.textContent; }`
