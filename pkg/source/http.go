package source

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/automation/pkg/cache"
	"github.com/matzehuels/automation/pkg/errors"
	"github.com/matzehuels/automation/pkg/httputil"
	"github.com/matzehuels/automation/pkg/observability"
)

const httpTimeout = 10 * time.Second

// HTTPOptions configures an HTTP source.
type HTTPOptions struct {
	// Client defaults to a client with a 10 second timeout.
	Client *http.Client

	// Cache defaults to no caching.
	Cache cache.Cache
	Keyer cache.Keyer

	// TTL of cached responses (cache.FetchTTL if zero).
	TTL time.Duration

	// Headers are set on every request.
	Headers map[string]string

	// Attempts bounds retries of transient failures (3 if zero).
	Attempts int

	Logger *log.Logger
}

// HTTP fetches backing documents over HTTP(S) with response caching and
// retry of transient failures.
type HTTP struct {
	client   *http.Client
	cache    cache.Cache
	keyer    cache.Keyer
	ttl      time.Duration
	headers  map[string]string
	attempts int
	logger   *log.Logger
}

// NewHTTP creates an HTTP source.
func NewHTTP(opts HTTPOptions) *HTTP {
	h := &HTTP{
		client:   opts.Client,
		cache:    opts.Cache,
		keyer:    opts.Keyer,
		ttl:      opts.TTL,
		headers:  opts.Headers,
		attempts: opts.Attempts,
		logger:   opts.Logger,
	}
	if h.client == nil {
		h.client = &http.Client{Timeout: httpTimeout}
	}
	if h.cache == nil {
		h.cache = cache.NewNullCache()
	}
	if h.keyer == nil {
		h.keyer = cache.NewDefaultKeyer()
	}
	if h.ttl == 0 {
		h.ttl = cache.FetchTTL
	}
	if h.attempts <= 0 {
		h.attempts = 3
	}
	if h.logger == nil {
		h.logger = log.Default()
	}
	return h
}

// Fetch returns the body at rawURL, from cache when fresh.
func (h *HTTP) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	return h.Cached(ctx, rawURL, false)
}

// Cached fetches rawURL, bypassing the cache lookup when refresh is set. A
// successful response is always written back to the cache.
func (h *HTTP) Cached(ctx context.Context, rawURL string, refresh bool) ([]byte, error) {
	key := h.keyer.HTTPKey("fetch", rawURL)
	if !refresh {
		if data, ok, err := h.cache.Get(ctx, key); err == nil && ok {
			h.logger.Debug("fetch cache hit", "url", rawURL)
			return data, nil
		}
	}

	var body []byte
	err := httputil.Retry(ctx, h.attempts, 500*time.Millisecond, func() error {
		var err error
		body, err = h.get(ctx, rawURL)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := h.cache.Set(ctx, key, body, h.ttl); err != nil {
		h.logger.Warn("cache write failed", "url", rawURL, "err", err)
	}
	return body, nil
}

func (h *HTTP) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range h.headers {
		req.Header.Set(k, v)
	}

	host, path := req.URL.Host, req.URL.Path
	hooks := observability.HTTP()
	hooks.OnRequest(ctx, req.Method, host, path)
	start := time.Now()

	resp, err := h.client.Do(req)
	if err != nil {
		hooks.OnError(ctx, req.Method, host, path, err)
		return nil, httputil.Retryable(errors.Wrap(errors.ErrCodeNetwork, err, "GET %s", rawURL))
	}
	defer resp.Body.Close()
	hooks.OnResponse(ctx, req.Method, host, path, resp.StatusCode, time.Since(start))

	if err := httputil.CheckStatus(resp); err != nil {
		return nil, err
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, httputil.Retryable(errors.Wrap(errors.ErrCodeNetwork, err, "read %s", rawURL))
	}
	return body, nil
}
