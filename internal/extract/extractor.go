package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/unicode/norm"

	"github.com/nao1215/ebcrawl/internal/htmlquery"
	"github.com/nao1215/ebcrawl/internal/model"
)

var commentItemID = regexp.MustCompile(`^comment-(\d+)$`)

// Extractor parses one article page. Every accessor parses at most once and
// returns the same result on repeated calls.
type Extractor struct {
	html    string
	pageURL string
	loc     *time.Location

	docOnce sync.Once
	doc     *goquery.Document
	docErr  error

	postOnce sync.Once
	post     *model.Post
	postErr  error

	commentsOnce sync.Once
	comments     []model.FlatComment
	commentErrs  []error

	assetsOnce sync.Once
	assets     []string
	assetsErr  error
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLocation sets the time zone for timestamps that carry no offset,
// which is always the case for comment times.
func WithLocation(loc *time.Location) Option {
	return func(e *Extractor) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// New returns an Extractor for the article html fetched from pageURL.
func New(html, pageURL string, opts ...Option) *Extractor {
	e := &Extractor{
		html:    html,
		pageURL: pageURL,
		loc:     time.UTC,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Result bundles everything extracted from one article.
type Result struct {
	Post     *model.Post
	Comments []model.FlatComment
	// CommentErrors lists comments that were skipped.
	CommentErrors []error
	Assets        []string
}

// Result runs all extractions. A post-level failure is returned as the error;
// comment failures are reported in Result.CommentErrors.
func (e *Extractor) Result() (*Result, error) {
	post, err := e.Post()
	if err != nil {
		return nil, err
	}
	assets, err := e.Assets()
	if err != nil {
		return nil, err
	}
	comments, commentErrs := e.Comments()
	return &Result{
		Post:          post,
		Comments:      comments,
		CommentErrors: commentErrs,
		Assets:        assets,
	}, nil
}

func (e *Extractor) document() (*goquery.Document, error) {
	e.docOnce.Do(func() {
		e.doc, e.docErr = htmlquery.Parse(e.html)
	})
	return e.doc, e.docErr
}

// Post extracts the article fields. Title, author, publish time, cover image
// and content are required; category and tags are optional.
func (e *Extractor) Post() (*model.Post, error) {
	e.postOnce.Do(func() {
		e.post, e.postErr = e.extractPost()
	})
	return e.post, e.postErr
}

func (e *Extractor) extractPost() (*model.Post, error) {
	doc, err := e.document()
	if err != nil {
		return nil, err
	}

	title := doc.Find(TitleSelector).First()
	if title.Length() == 0 {
		return nil, missing("title")
	}
	author := doc.Find(AuthorSelector).First()
	if author.Length() == 0 {
		return nil, missing("author")
	}

	datetime, ok := doc.Find(TimeSelector).First().Attr("datetime")
	if !ok {
		return nil, missing("time")
	}
	published, err := ParsePostTime(datetime, e.loc)
	if err != nil {
		return nil, invalid("time", err)
	}

	posterSrc, ok := doc.Find(PosterSelector).First().Attr("src")
	if !ok || strings.TrimSpace(posterSrc) == "" {
		return nil, missing("poster")
	}
	poster, err := ResolveURL(e.pageURL, posterSrc)
	if err != nil {
		return nil, invalid("poster", err)
	}

	contentSel := doc.Find(ContentSelector).First()
	if contentSel.Length() == 0 {
		return nil, missing("content")
	}
	content, err := goquery.OuterHtml(contentSel)
	if err != nil {
		return nil, invalid("content", err)
	}

	post := &model.Post{
		URL:       e.pageURL,
		Title:     clean(title.Text()),
		Author:    clean(author.Text()),
		Published: published,
		Poster:    poster,
		Content:   content,
	}

	if category := doc.Find(CategorySelector).First(); category.Length() > 0 {
		post.Category = clean(category.Text())
	}

	doc.Find(TagSelector).Each(func(_ int, li *goquery.Selection) {
		a := li.Find("a").First()
		if a.Length() == 0 {
			return
		}
		if name := clean(a.Text()); name != "" {
			post.Tags = append(post.Tags, name)
		}
	})

	return post, nil
}

// Comments extracts every comment in document order. Comments that cannot be
// extracted are skipped and reported in the second return value.
func (e *Extractor) Comments() ([]model.FlatComment, []error) {
	e.commentsOnce.Do(func() {
		e.comments, e.commentErrs = e.extractComments()
	})
	return e.comments, e.commentErrs
}

func (e *Extractor) extractComments() ([]model.FlatComment, []error) {
	doc, err := e.document()
	if err != nil {
		return nil, []error{err}
	}

	var (
		comments []model.FlatComment
		errs     []error
	)
	doc.Find(CommentListSelector).Each(func(i int, li *goquery.Selection) {
		c, err := e.extractComment(doc, li)
		if err != nil {
			errs = append(errs, fmt.Errorf("comment #%d: %w", i+1, err))
			return
		}
		comments = append(comments, c)
	})
	return comments, errs
}

func (e *Extractor) extractComment(doc *goquery.Document, li *goquery.Selection) (model.FlatComment, error) {
	body := commentBody(li)
	if body.Length() == 0 {
		return model.FlatComment{}, missing("comment body")
	}

	rawID, ok := body.Attr("id")
	if !ok {
		return model.FlatComment{}, missing("comment id")
	}
	id, err := ParseCommentID(rawID)
	if err != nil {
		return model.FlatComment{}, invalid("comment id", err)
	}

	author := body.Find(CommentAuthorSelector).First()
	if author.Length() == 0 {
		return model.FlatComment{}, missing("comment author")
	}

	meta := body.Find(CommentDateSelector).First()
	if meta.Length() == 0 {
		return model.FlatComment{}, missing("comment date")
	}
	published, err := ParseCommentTime(meta.Text(), e.loc)
	if err != nil {
		return model.FlatComment{}, invalid("comment date", err)
	}

	paragraphs := body.Find(CommentContentSelector)
	if paragraphs.Length() == 0 {
		return model.FlatComment{}, missing("comment content")
	}
	parts := make([]string, 0, paragraphs.Length())
	paragraphs.Each(func(_ int, p *goquery.Selection) {
		if t := clean(p.Text()); t != "" {
			parts = append(parts, t)
		}
	})

	return model.FlatComment{
		ID:        id,
		ParentID:  parentCommentID(doc, li),
		Author:    clean(author.Text()),
		Published: published,
		Content:   strings.Join(parts, "\n\n"),
	}, nil
}

// commentBody returns the li's own comment body, not one of a nested reply.
func commentBody(li *goquery.Selection) *goquery.Selection {
	if own := li.ChildrenFiltered(CommentBodySelector).First(); own.Length() > 0 {
		return own
	}
	return li.Find(CommentBodySelector).First()
}

// ParseCommentID returns the numeric suffix after the last '-' of a DOM id
// such as "div-comment-123".
func ParseCommentID(raw string) (int64, error) {
	idx := strings.LastIndex(raw, "-")
	id, err := strconv.ParseInt(raw[idx+1:], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad comment id %q: %w", raw, err)
	}
	if id <= 0 {
		return 0, fmt.Errorf("bad comment id %q: not positive", raw)
	}
	return id, nil
}

// parentCommentID walks up from the comment's li to the nearest enclosing
// comment li and returns its id, or 0 for a top-level comment.
func parentCommentID(doc *goquery.Document, li *goquery.Selection) int64 {
	if len(li.Nodes) == 0 {
		return 0
	}
	for n := li.Nodes[0].Parent; n != nil; n = n.Parent {
		if n.Type != html.ElementNode {
			continue
		}
		if n.DataAtom == atom.Body || n.DataAtom == atom.Html {
			return 0
		}
		if n.DataAtom != atom.Li {
			continue
		}
		m := commentItemID.FindStringSubmatch(nodeID(n))
		if m == nil {
			continue
		}
		id, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return 0
		}
		if doc.Find(fmt.Sprintf(CommentParentPattern, id)).Length() == 0 {
			return 0
		}
		return id
	}
	return 0
}

func nodeID(n *html.Node) string {
	for _, a := range n.Attr {
		if a.Key == "id" {
			return a.Val
		}
	}
	return ""
}

// Assets returns the cover image followed by every image in the content
// block, resolved to absolute URLs. Duplicates are kept.
func (e *Extractor) Assets() ([]string, error) {
	e.assetsOnce.Do(func() {
		e.assets, e.assetsErr = e.extractAssets()
	})
	return e.assets, e.assetsErr
}

func (e *Extractor) extractAssets() ([]string, error) {
	post, err := e.Post()
	if err != nil {
		return nil, err
	}
	doc, err := e.document()
	if err != nil {
		return nil, err
	}

	urls := []string{post.Poster}
	doc.Find(ContentSelector).First().Find("img").Each(func(_ int, img *goquery.Selection) {
		src, ok := img.Attr("src")
		if !ok {
			return
		}
		if u, err := ResolveURL(e.pageURL, src); err == nil {
			urls = append(urls, u)
		}
	})
	return urls, nil
}

// clean trims whitespace and normalizes to NFC so equal names compare equal.
func clean(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
