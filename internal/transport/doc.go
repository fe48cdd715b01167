// Package transport builds the HTTP clients used to talk to the blog.
//
// A Builder captures the request decoration shared by every client (user
// agent, a pre-solved challenge cookie, extra headers) and an optional SOCKS5
// route. Each call to NewClient returns an independent client with its own
// cookie jar and connection pool, which is what the fetch package relies on
// when it discards a poisoned session.
//
// EmbeddedTor starts a private Tor daemon through tornago for users who want
// to crawl over Tor without running one themselves. CheckProxy verifies that
// a configured proxy actually speaks SOCKS5 before a run starts.
package transport
