package integrations

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/matzehuels/planbridge/pkg/cache"
	"github.com/matzehuels/planbridge/pkg/errors"
	"github.com/matzehuels/planbridge/pkg/httputil"
	"github.com/matzehuels/planbridge/pkg/observability"
)

// Content types used by the upstream APIs.
const (
	ContentJSON      = "application/json"
	ContentJSONPatch = "application/json-patch+json"
)

// Client provides shared HTTP functionality for the upstream API clients.
// It is safe for concurrent use.
type Client struct {
	http      *http.Client
	cache     cache.Cache
	keyer     cache.Keyer
	namespace string
	ttl       time.Duration
	headers   map[string]string
}

// NewClient creates a Client. namespace separates this API's cache entries
// from other clients'; ttl is how long cached responses stay valid. A nil
// cache disables caching.
func NewClient(c cache.Cache, namespace string, ttl time.Duration, headers map[string]string) *Client {
	if c == nil {
		c = cache.NewNullCache()
	}
	return &Client{
		http:      NewHTTPClient(),
		cache:     c,
		keyer:     cache.NewDefaultKeyer(),
		namespace: namespace,
		ttl:       ttl,
		headers:   headers,
	}
}

// SetHTTPClient replaces the underlying HTTP client.
func (c *Client) SetHTTPClient(h *http.Client) { c.http = h }

// SetKeyer replaces the cache keyer, e.g. with a workspace-scoped one.
func (c *Client) SetKeyer(k cache.Keyer) { c.keyer = k }

// Cached returns the cached value for key in v, or runs fetch (with retry)
// and caches what it stored in v. refresh bypasses the cache read.
func (c *Client) Cached(ctx context.Context, key string, refresh bool, v any, fetch func() error) error {
	fullKey := c.keyer.HTTPKey(c.namespace, key)
	if !refresh {
		if ok, _ := cache.GetJSON(ctx, c.cache, fullKey, v); ok {
			observability.Cache().OnCacheHit(ctx, "http")
			return nil
		}
		observability.Cache().OnCacheMiss(ctx, "http")
	}
	if err := httputil.RetryWithBackoff(ctx, fetch); err != nil {
		return err
	}
	if data, err := json.Marshal(v); err == nil {
		if c.cache.Set(ctx, fullKey, data, c.ttl) == nil {
			observability.Cache().OnCacheSet(ctx, "http", len(data))
		}
	}
	return nil
}

// Get performs a GET request and JSON-decodes the response into v.
func (c *Client) Get(ctx context.Context, url string, v any) error {
	return c.GetWithHeaders(ctx, url, nil, v)
}

// GetWithHeaders performs a GET with additional headers merged over the
// defaults.
func (c *Client) GetWithHeaders(ctx context.Context, url string, headers map[string]string, v any) error {
	return c.Do(ctx, http.MethodGet, url, "", nil, headers, v)
}

// Post sends body as JSON and decodes the response into v.
func (c *Client) Post(ctx context.Context, url string, body, v any) error {
	return c.Do(ctx, http.MethodPost, url, ContentJSON, body, nil, v)
}

// Do sends one request. body is JSON-encoded when non-nil and sent with
// contentType; the response is decoded into v when v is non-nil. Do does not
// retry; wrap it with [httputil.Retry] or use [Client.Cached] for that.
func (c *Client) Do(ctx context.Context, method, url, contentType string, body any, headers map[string]string, v any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	respBody, err := c.doRequest(ctx, method, url, contentType, reader, headers)
	if err != nil {
		return err
	}
	defer respBody.Close()

	if v == nil {
		_, _ = io.Copy(io.Discard, respBody)
		return nil
	}
	if err := json.NewDecoder(respBody).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Write sends a non-idempotent request (POST, PATCH). It retries only when
// the server rate-limited the request, since such a request was never applied.
func (c *Client) Write(ctx context.Context, method, url, contentType string, body, v any) error {
	return httputil.RetryWithBackoff(ctx, func() error {
		err := c.Do(ctx, method, url, contentType, body, nil, v)
		var rl *errors.RateLimitedError
		var re *httputil.RetryableError
		if stderrors.As(err, &re) && !stderrors.As(err, &rl) {
			return re.Err
		}
		return err
	})
}

func (c *Client) doRequest(ctx context.Context, method, rawURL, contentType string, body io.Reader, headers map[string]string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, err
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	host, path := hostPath(rawURL)
	hooks := observability.HTTP()
	hooks.OnRequest(ctx, method, host, path)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		hooks.OnError(ctx, method, host, path, err)
		return nil, &httputil.RetryableError{Err: fmt.Errorf("%w: %v", ErrNetwork, err)}
	}
	hooks.OnResponse(ctx, method, host, path, resp.StatusCode, time.Since(start))

	if err := checkStatus(resp.StatusCode, resp.Header); err != nil {
		msg := upstreamMessage(resp.Body)
		resp.Body.Close()
		if msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return resp.Body, nil
}

func checkStatus(code int, header http.Header) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", ErrUnauthorized, code)
	case code == http.StatusConflict || code == http.StatusPreconditionFailed:
		return fmt.Errorf("%w: status %d", ErrConflict, code)
	case code == http.StatusTooManyRequests:
		after := httputil.RetryAfter(header, time.Now())
		return &httputil.RetryableError{
			Err:   &errors.RateLimitedError{RetryAfter: int(after / time.Second)},
			After: after,
		}
	case code >= 500:
		return &httputil.RetryableError{Err: fmt.Errorf("%w: status %d", ErrNetwork, code)}
	case code >= 400:
		return fmt.Errorf("%w: status %d", ErrBadRequest, code)
	default:
		return fmt.Errorf("%w: status %d", ErrNetwork, code)
	}
}

// upstreamMessage extracts a short error message from an error response body.
func upstreamMessage(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, 4096))
	var payload struct {
		Message string `json:"message"`
		Errors  []struct {
			Detail string `json:"detail"`
			Title  string `json:"title"`
		} `json:"errors"`
	}
	if json.Unmarshal(data, &payload) == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if len(payload.Errors) > 0 {
			if payload.Errors[0].Detail != "" {
				return payload.Errors[0].Detail
			}
			return payload.Errors[0].Title
		}
	}
	return ""
}

func hostPath(rawURL string) (string, string) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", rawURL
	}
	return u.Host, strings.TrimSuffix(u.Path, "/")
}
