package htmlquery

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// ErrInvalidSelector is returned when a selector does not compile.
var ErrInvalidSelector = errors.New("invalid CSS selector")

// Parse parses an HTML document or fragment.
func Parse(html string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}

// Compile checks a selector so that a typo is reported instead of silently matching nothing.
func Compile(selector string) error {
	if _, err := cascadia.Compile(selector); err != nil {
		return fmt.Errorf("%w %q: %w", ErrInvalidSelector, selector, err)
	}
	return nil
}

// OuterHTML returns the outer markup of every element matching selector, in document order.
func OuterHTML(html, selector string) ([]string, error) {
	sel, err := find(html, selector)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, sel.Length())
	var outerErr error
	sel.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		h, err := goquery.OuterHtml(s)
		if err != nil {
			outerErr = fmt.Errorf("failed to render element: %w", err)
			return false
		}
		out = append(out, h)
		return true
	})
	if outerErr != nil {
		return nil, outerErr
	}
	return out, nil
}

// Attr returns the named attribute of the first element matching selector.
// found is false if nothing matches or the attribute is absent.
func Attr(html, selector, name string) (value string, found bool, err error) {
	sel, err := find(html, selector)
	if err != nil {
		return "", false, err
	}
	value, found = sel.First().Attr(name)
	return value, found, nil
}

// Text returns the trimmed text content of the first element matching selector.
func Text(html, selector string) (text string, found bool, err error) {
	sel, err := find(html, selector)
	if err != nil {
		return "", false, err
	}
	if sel.Length() == 0 {
		return "", false, nil
	}
	return strings.TrimSpace(sel.First().Text()), true, nil
}

func find(html, selector string) (*goquery.Selection, error) {
	if err := Compile(selector); err != nil {
		return nil, err
	}
	doc, err := Parse(html)
	if err != nil {
		return nil, err
	}
	return doc.Find(selector), nil
}
