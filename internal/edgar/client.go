package edgar

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/dat-tracker/treasury-cli/internal/resilience"
)

// maxBodyBytes caps how much of a response is read and cached. Filing
// bodies beyond this are truncated; the extraction patterns anchor early.
const maxBodyBytes = 4 << 20

// ClientOptions configures the source client.
type ClientOptions struct {
	// UserAgent must identify the service and a contact method; EDGAR may
	// reject unidentified clients, so the constructor refuses an empty one.
	UserAgent  string
	CacheDir   string
	CacheTTL   time.Duration
	Timeout    time.Duration
	RatePerSec int
}

// FetchResult is the typed outcome of a fetch. Non-2xx responses are
// results, not errors: callers decide whether a 404/403/429 is fatal,
// retryable, or a dead-letter cue.
type FetchResult struct {
	URL       string
	Status    int
	Body      []byte
	FromCache bool
	// Throttled marks an explicit rate-limit response; the caller must back
	// off before the next call. The client does not embed a retry loop.
	Throttled bool
}

// OK reports whether the response was a success.
func (r *FetchResult) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Err converts a non-2xx result into the pipeline's failure taxonomy for
// callers that treat it as fatal.
func (r *FetchResult) Err() error {
	if r.OK() {
		return nil
	}
	fe := &resilience.FetchError{URL: r.URL, StatusCode: r.Status, Throttled: r.Throttled}
	if r.Status == http.StatusNotFound {
		fe.Err = resilience.ErrNotFound
	}
	return fe
}

// Client fetches EDGAR URLs with identification, per-host pacing, and a
// durable file cache.
type Client struct {
	http     *http.Client
	opts     ClientOptions
	mu       sync.Mutex
	limiters map[string]*AdaptiveLimiter
}

// NewClient builds a source client. The identification header is mandatory.
func NewClient(opts ClientOptions) (*Client, error) {
	if strings.TrimSpace(opts.UserAgent) == "" {
		return nil, eris.New("edgar: user agent with contact info is required")
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.CacheTTL == 0 {
		opts.CacheTTL = 24 * time.Hour
	}
	if opts.RatePerSec == 0 {
		opts.RatePerSec = 10
	}
	transport := &http.Transport{
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Client{
		http: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		opts:     opts,
		limiters: make(map[string]*AdaptiveLimiter),
	}, nil
}

// limiterFor returns the adaptive limiter for the URL's host, creating one
// at the configured rate on first use. All EDGAR hosts share the same
// fair-access ceiling.
func (c *Client) limiterFor(rawURL string) *AdaptiveLimiter {
	host := ""
	if u, err := url.Parse(rawURL); err == nil {
		host = u.Host
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	lim, ok := c.limiters[host]
	if !ok {
		lim = NewAdaptiveLimiter(rate.Limit(c.opts.RatePerSec), c.opts.RatePerSec)
		c.limiters[host] = lim
	}
	return lim
}

// Fetch returns the response for rawURL, serving from the durable cache when
// a fresh entry exists. A network-level failure is a FetchError; an HTTP
// error status is a normal FetchResult.
func (c *Client) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	if entry, ok := readCacheEntry(c.opts.CacheDir, rawURL); ok && entry.Fresh(time.Now()) {
		return &FetchResult{
			URL:       rawURL,
			Status:    entry.Status,
			Body:      entry.Body,
			FromCache: true,
		}, nil
	}

	lim := c.limiterFor(rawURL)
	if err := lim.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "edgar: rate limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "edgar: create request for %s", rawURL)
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept", "application/json, text/html, text/plain")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &resilience.FetchError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &resilience.FetchError{URL: rawURL, StatusCode: resp.StatusCode, Err: err}
	}

	result := &FetchResult{
		URL:    rawURL,
		Status: resp.StatusCode,
		Body:   body,
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		result.Throttled = true
		lim.OnRateLimit()
		return result, nil
	}

	if result.OK() {
		lim.OnSuccess()
		entry := &CacheEntry{
			URL:        rawURL,
			FetchedAt:  time.Now().UTC(),
			TTLSeconds: int64(c.opts.CacheTTL / time.Second),
			Status:     resp.StatusCode,
			Body:       body,
		}
		if err := writeCacheEntry(c.opts.CacheDir, entry); err != nil {
			// Cache write failure degrades to uncached operation.
			zap.L().Warn("edgar: cache write failed", zap.String("url", rawURL), zap.Error(err))
		}
	}

	return result, nil
}
