package extract

import (
	"errors"
	"strconv"
	"strings"

	"github.com/nao1215/ebcrawl/internal/htmlquery"
)

// ErrNoPagination is returned by PageCount when the listing has no numbered page links.
var ErrNoPagination = errors.New("no numbered pagination links found")

// PageCount returns the highest page number among the pagination links of a
// listing page.
func PageCount(html string) (int, error) {
	links, err := htmlquery.OuterHTML(html, PagesSelector)
	if err != nil {
		return 0, err
	}

	count := -1
	for _, link := range links {
		text, ok, err := htmlquery.Text(link, "a")
		if err != nil {
			return 0, err
		}
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.ReplaceAll(text, " ", ""))
		if err != nil {
			continue
		}
		count = max(count, n)
	}
	if count < 0 {
		return 0, ErrNoPagination
	}
	return count, nil
}

// PostLinks returns the article URLs of a listing page in document order,
// resolved against pageURL. Links without an href are left out.
func PostLinks(html, pageURL string) ([]string, error) {
	tags, err := htmlquery.OuterHTML(html, PostLinkSelector)
	if err != nil {
		return nil, err
	}

	links := make([]string, 0, len(tags))
	for _, tag := range tags {
		href, ok, err := htmlquery.Attr(tag, "a", "href")
		if err != nil {
			return nil, err
		}
		if !ok || strings.TrimSpace(href) == "" {
			continue
		}
		link, err := ResolveURL(pageURL, strings.TrimSpace(href))
		if err != nil {
			continue
		}
		links = append(links, link)
	}
	return links, nil
}
