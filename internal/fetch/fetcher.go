//go:generate mockgen -source=$GOFILE -destination=mock/$GOFILE -package=mock
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/time/rate"

	"feedloop/pkg/logger"
)

const (
	defaultUserAgent = "feedloop/1.0"
	// maxBodySize bounds how much of a response we are willing to buffer.
	maxBodySize = 10 << 20
)

// Request describes one fetch. ETag/LastModified come from the previous
// successful fetch and drive conditional GETs; CacheFor is the minimum age
// before a cached parse is refetched.
type Request struct {
	URL          string
	ETag         string
	LastModified string
	CacheFor     time.Duration
}

// Result is a successfully fetched feed. NotModified is set when the source
// answered 304; Feed is nil in that case.
type Result struct {
	Feed         *gofeed.Feed
	ETag         string
	LastModified string
	NotModified  bool
}

type Fetcher interface {
	Fetch(ctx context.Context, req Request) (*Result, error)
}

// Client fetches and parses remote feeds. It keeps a small TTL cache of
// parsed feeds and a per-host rate limiter so frequent callers stay polite.
type Client struct {
	http            *http.Client
	userAgent       string
	perHostInterval time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	cache    map[string]cachedResult
}

type cachedResult struct {
	result   Result
	storedAt time.Time
}

type Option func(*Client)

func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithHostInterval sets the minimum spacing between requests to one host.
func WithHostInterval(interval time.Duration) Option {
	return func(c *Client) { c.perHostInterval = interval }
}

func NewClient(httpClient *http.Client, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	c := &Client{
		http:      httpClient,
		userAgent: defaultUserAgent,
		limiters:  make(map[string]*rate.Limiter),
		cache:     make(map[string]cachedResult),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch retrieves and parses the feed at req.URL. When the structured parse
// fails it refetches raw once, strips any leading bytes before the XML
// declaration and tries again; there is never more than this one fallback.
func (c *Client) Fetch(ctx context.Context, req Request) (*Result, error) {
	if cached, ok := c.fromCache(req); ok {
		logger.Debug("feed served from cache", "module", "fetch", "url", req.URL)
		result := cached
		return &result, nil
	}

	if err := c.waitForHost(ctx, req.URL); err != nil {
		return nil, &Error{Kind: KindTransient, Op: "rate limit", Err: err}
	}

	body, header, status, err := c.get(ctx, req.URL, req.ETag, req.LastModified)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotModified {
		return &Result{NotModified: true, ETag: req.ETag, LastModified: req.LastModified}, nil
	}

	parsed, parseErr := gofeed.NewParser().Parse(bytes.NewReader(body))
	if parseErr != nil {
		logger.Debug("structured parse failed, retrying raw", "module", "fetch", "url", req.URL, "error", parseErr)
		raw, _, rawStatus, rawErr := c.get(ctx, req.URL, "", "")
		if rawErr != nil || rawStatus != http.StatusOK {
			return nil, &Error{Kind: KindMalformed, Op: "parse " + req.URL, Err: parseErr}
		}
		parsed, rawErr = gofeed.NewParser().Parse(bytes.NewReader(stripBeforeXMLDecl(raw)))
		if rawErr != nil {
			return nil, &Error{Kind: KindMalformed, Op: "parse " + req.URL, Err: parseErr}
		}
	}

	result := Result{
		Feed:         parsed,
		ETag:         strings.TrimSpace(header.Get("ETag")),
		LastModified: strings.TrimSpace(header.Get("Last-Modified")),
	}
	c.store(req, result)
	return &result, nil
}

func (c *Client) get(ctx context.Context, feedURL, etag, lastModified string) ([]byte, http.Header, int, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, nil, 0, &Error{Kind: KindMalformed, Op: "build request", Err: err}
	}
	httpReq.Header.Set("User-Agent", c.userAgent)
	if etag != "" {
		httpReq.Header.Set("If-None-Match", etag)
	}
	if lastModified != "" {
		httpReq.Header.Set("If-Modified-Since", lastModified)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, nil, 0, &Error{Kind: KindTransient, Op: "get " + feedURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return nil, resp.Header, resp.StatusCode, nil
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, nil, 0, &Error{Kind: KindTransient, Op: "get " + feedURL, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, nil, 0, &Error{Kind: KindTransient, Op: "read " + feedURL, Err: err}
	}
	return body, resp.Header, resp.StatusCode, nil
}

// stripBeforeXMLDecl drops garbage bytes (BOMs, stray whitespace, PHP
// warnings) emitted before the XML declaration.
func stripBeforeXMLDecl(body []byte) []byte {
	if idx := bytes.Index(body, []byte("<?xml")); idx > 0 {
		return body[idx:]
	}
	return body
}

func (c *Client) waitForHost(ctx context.Context, feedURL string) error {
	if c.perHostInterval <= 0 {
		return nil
	}
	host := extractHost(feedURL)
	if host == "" {
		return nil
	}

	c.mu.Lock()
	limiter, ok := c.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(c.perHostInterval), 1)
		c.limiters[host] = limiter
	}
	c.mu.Unlock()

	return limiter.Wait(ctx)
}

func (c *Client) fromCache(req Request) (Result, bool) {
	if req.CacheFor <= 0 {
		return Result{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	cached, ok := c.cache[req.URL]
	if !ok || time.Since(cached.storedAt) > req.CacheFor {
		return Result{}, false
	}
	return cached.result, true
}

func (c *Client) store(req Request, result Result) {
	if req.CacheFor <= 0 {
		return
	}
	c.mu.Lock()
	c.cache[req.URL] = cachedResult{result: result, storedAt: time.Now()}
	c.mu.Unlock()
}

func extractHost(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return parsed.Hostname()
}
