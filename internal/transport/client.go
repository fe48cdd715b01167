package transport

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"time"

	"golang.org/x/net/proxy"
	"golang.org/x/net/publicsuffix"
)

// defaultMaxRedirects stops redirect loops on challenge pages.
const defaultMaxRedirects = 10

// Builder creates HTTP clients for the crawler.
// Every client returned by NewClient owns a fresh cookie jar, so dropping a
// client also drops any challenge cookies the server handed out to it.
type Builder struct {
	timeout      time.Duration
	userAgent    string
	cookie       string
	headers      map[string]string
	proxyAddress string
	dialer       proxy.Dialer
	maxRedirects int
	maxIdleConns int
}

// Option configures a Builder.
type Option func(*Builder)

// WithTimeout sets the overall per-request timeout of created clients.
func WithTimeout(d time.Duration) Option {
	return func(b *Builder) {
		b.timeout = d
	}
}

// WithUserAgent sets the User-Agent header for requests that don't set one.
func WithUserAgent(ua string) Option {
	return func(b *Builder) {
		b.userAgent = ua
	}
}

// WithCookie adds a raw Cookie header value ("a=1; b=2") to every request.
func WithCookie(cookie string) Option {
	return func(b *Builder) {
		b.cookie = cookie
	}
}

// WithHeaders adds custom headers to every request.
func WithHeaders(headers map[string]string) Option {
	return func(b *Builder) {
		b.headers = headers
	}
}

// WithProxy routes all connections through a SOCKS5 proxy at host:port.
func WithProxy(address string) Option {
	return func(b *Builder) {
		b.proxyAddress = address
	}
}

// WithMaxRedirects overrides the redirect limit.
func WithMaxRedirects(n int) Option {
	return func(b *Builder) {
		b.maxRedirects = n
	}
}

// NewBuilder validates the options and returns a Builder.
func NewBuilder(opts ...Option) (*Builder, error) {
	b := &Builder{
		timeout:      60 * time.Second,
		maxRedirects: defaultMaxRedirects,
		maxIdleConns: 10,
	}
	for _, opt := range opts {
		opt(b)
	}

	if b.proxyAddress != "" {
		if !IsValidProxyAddress(b.proxyAddress) {
			return nil, ErrInvalidProxyAddress
		}
		d, err := proxy.SOCKS5("tcp", b.proxyAddress, nil, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		b.dialer = d
	}

	return b, nil
}

// ProxyAddress returns the configured proxy, or "" for direct connections.
func (b *Builder) ProxyAddress() string {
	return b.proxyAddress
}

// NewClient returns a new HTTP client with its own connection pool and cookie jar.
func (b *Builder) NewClient() (*http.Client, error) {
	base := &http.Transport{
		Proxy:               nil,
		MaxIdleConns:        b.maxIdleConns,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     30 * time.Second,
		TLSHandshakeTimeout: 15 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	if b.dialer != nil {
		if cd, ok := b.dialer.(proxy.ContextDialer); ok {
			base.DialContext = cd.DialContext
		} else {
			d := b.dialer
			base.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
				return d.Dial(network, addr)
			}
		}
	} else {
		base.DialContext = (&net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}).DialContext
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	maxRedirects := b.maxRedirects
	return &http.Client{
		Transport: &headerInjectingTransport{
			base:      base,
			userAgent: b.userAgent,
			cookie:    b.cookie,
			headers:   b.headers,
		},
		Timeout: b.timeout,
		Jar:     jar,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %s redirects", strconv.Itoa(maxRedirects))
			}
			return nil
		},
	}, nil
}

// headerInjectingTransport adds the configured cookie, user agent and
// headers to every outgoing request, redirects included.
type headerInjectingTransport struct {
	base      http.RoundTripper
	userAgent string
	cookie    string
	headers   map[string]string
}

// RoundTrip implements http.RoundTripper.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())

	if t.userAgent != "" && clone.Header.Get("User-Agent") == "" {
		clone.Header.Set("User-Agent", t.userAgent)
	}

	if t.cookie != "" {
		if existing := clone.Header.Get("Cookie"); existing != "" {
			clone.Header.Set("Cookie", existing+"; "+t.cookie)
		} else {
			clone.Header.Set("Cookie", t.cookie)
		}
	}

	for k, v := range t.headers {
		clone.Header.Set(k, v)
	}

	return t.base.RoundTrip(clone)
}
