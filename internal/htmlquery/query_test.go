package htmlquery

import (
	"errors"
	"strings"
	"testing"
)

const listing = `<html><body>
<div class="pages"><a class="page" href="/page/2/">2</a><a class="page" href="/page/3/">3</a><a class="page" href="/page/57/">57</a></div>
<h3 class="entry-title"><a href="https://ebanoe.it/2020/01/02/first/">First</a></h3>
<h3 class="entry-title"><a href="https://ebanoe.it/2020/01/01/second/">Second</a></h3>
</body></html>`

func TestOuterHTML(t *testing.T) {
	t.Parallel()

	t.Run("returns matches in document order", func(t *testing.T) {
		t.Parallel()
		got, err := OuterHTML(listing, "h3.entry-title a")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("expected 2 matches, got %d", len(got))
		}
		if !strings.Contains(got[0], "first") || !strings.Contains(got[1], "second") {
			t.Errorf("unexpected order: %v", got)
		}
		if !strings.HasPrefix(got[0], "<a ") {
			t.Errorf("expected outer markup, got %q", got[0])
		}
	})

	t.Run("no match is empty, not an error", func(t *testing.T) {
		t.Parallel()
		got, err := OuterHTML(listing, "div.missing")
		if err != nil || len(got) != 0 {
			t.Errorf("expected empty result, got %v, %v", got, err)
		}
	})

	t.Run("invalid selector is reported", func(t *testing.T) {
		t.Parallel()
		if _, err := OuterHTML(listing, "div[["); !errors.Is(err, ErrInvalidSelector) {
			t.Errorf("expected ErrInvalidSelector, got %v", err)
		}
	})
}

func TestAttr(t *testing.T) {
	t.Parallel()

	v, ok, err := Attr(listing, "h3.entry-title a", "href")
	if err != nil || !ok {
		t.Fatalf("expected attribute, got %v, %v", ok, err)
	}
	if v != "https://ebanoe.it/2020/01/02/first/" {
		t.Errorf("expected first match, got %q", v)
	}

	if _, ok, _ := Attr(listing, "h3.entry-title a", "data-x"); ok {
		t.Error("expected missing attribute to report not found")
	}
}

func TestText(t *testing.T) {
	t.Parallel()

	pages, err := OuterHTML(listing, "div.pages>a.page")
	if err != nil {
		t.Fatal(err)
	}
	last := pages[len(pages)-1]

	text, ok, err := Text(last, "a")
	if err != nil || !ok {
		t.Fatalf("expected text, got %v, %v", ok, err)
	}
	if text != "57" {
		t.Errorf("expected 57, got %q", text)
	}

	if _, ok, _ := Text(listing, "h1"); ok {
		t.Error("expected no match")
	}
}
