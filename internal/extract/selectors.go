package extract

// CSS selectors for ebanoe.it markup.
const (
	PagesSelector    = "div.pages>a.page"
	PostLinkSelector = "h3.entry-title a"

	TitleSelector    = "h1.entry-title"
	AuthorSelector   = "div.author-date a"
	TimeSelector     = "time.entry-date"
	PosterSelector   = "div.section-post-header img.wp-post-image"
	ContentSelector  = "div.the_content"
	CategorySelector = "div.category a"
	TagSelector      = "ul.post-tags li"

	CommentListSelector    = "ol.commentlist li.comment"
	CommentBodySelector    = "div.comment-body"
	CommentParentPattern   = "li#comment-%d"
	CommentAuthorSelector  = "cite.fn"
	CommentDateSelector    = "div.commentmetadata"
	CommentContentSelector = "p"
)
