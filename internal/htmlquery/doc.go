// Package htmlquery answers CSS selector queries against HTML held in strings.
// It returns outer markup, an attribute, or text content of matching elements.
package htmlquery
