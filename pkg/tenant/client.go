package tenant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
)

const (
	apiPrefix        = "/api/v1"
	defaultUserAgent = "qlikcloud"
)

// Object is a decoded JSON object returned by the API.
type Object = map[string]any

// Observer receives one call per completed HTTP request.
type Observer interface {
	ObserveAPIRequest(method, endpoint string, status int, duration time.Duration)
}

// Config configures a Client.
type Config struct {
	// BaseURL is the tenant URI, e.g. https://example.eu.qlikcloud.com.
	BaseURL string

	// APIKey is sent as a bearer token. Ignored when TokenSource is set.
	APIKey string

	// TokenSource supplies OAuth2 tokens, typically from ClientCredentials.
	TokenSource oauth2.TokenSource

	// UserAgent overrides the default user agent.
	UserAgent string

	// HTTPClient overrides the default pooled client. Its transport is
	// wrapped for tracing.
	HTTPClient *http.Client

	Logger   zerolog.Logger
	Observer Observer
}

// Client is a tenant API client.
type Client struct {
	base      *url.URL
	apiKey    string
	userAgent string
	http      *http.Client
	log       zerolog.Logger
	observer  Observer
}

// New creates a client for the tenant at cfg.BaseURL.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("tenant URI is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid tenant URI %q: %w", cfg.BaseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid tenant URI %q: scheme and host are required", cfg.BaseURL)
	}
	if cfg.APIKey == "" && cfg.TokenSource == nil {
		return nil, fmt.Errorf("an API key or token source is required")
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = cleanhttp.DefaultPooledClient()
	} else {
		clone := *hc
		hc = &clone
	}
	transport := hc.Transport
	if transport == nil {
		transport = cleanhttp.DefaultPooledTransport()
	}
	if cfg.TokenSource != nil {
		transport = &oauth2.Transport{Source: cfg.TokenSource, Base: transport}
	}
	hc.Transport = otelhttp.NewTransport(transport)

	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	return &Client{
		base:      base,
		apiKey:    cfg.APIKey,
		userAgent: ua,
		http:      hc,
		log:       cfg.Logger.With().Str("component", "tenant").Str("tenant", base.Host).Logger(),
		observer:  cfg.Observer,
	}, nil
}

// Host returns the tenant hostname.
func (c *Client) Host() string {
	return c.base.Host
}

// Response is a completed API response with its body read.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the response body into out. An empty body leaves out
// untouched.
func (r *Response) Decode(out any) error {
	if out == nil || len(bytes.TrimSpace(r.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Object decodes the body as a JSON object. An empty body yields nil.
func (r *Response) Object() (Object, error) {
	var obj Object
	if err := r.Decode(&obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// Do sends a request. path is either absolute (as returned in pagination
// links), rooted at /api/, or relative to /api/v1. body is sent as-is with
// contentType; use JSON for encoded payloads.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string) (*Response, error) {
	target, err := c.resolve(path, query)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	c.log.Debug().Msgf("request: %s %s", method, target)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(method, path, 0, start)
		return nil, fmt.Errorf("%s %s: %w", method, target, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	c.observe(method, path, resp.StatusCode, start)
	c.log.Debug().Msgf("response: %s %s -> %d", method, target, resp.StatusCode)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{
			Method:     method,
			URL:        target,
			StatusCode: resp.StatusCode,
			Body:       string(data),
		}
	}

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

// JSON sends in (if non-nil) as a JSON body and decodes the response into out
// (if non-nil).
func (c *Client) JSON(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}

	resp, err := c.Do(ctx, method, path, query, body, contentType)
	if err != nil {
		return err
	}
	return resp.Decode(out)
}

// GetObject fetches a single JSON object.
func (c *Client) GetObject(ctx context.Context, path string, query url.Values) (Object, error) {
	var obj Object
	if err := c.JSON(ctx, http.MethodGet, path, query, nil, &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

func (c *Client) resolve(path string, query url.Values) (string, error) {
	var u *url.URL
	switch {
	case strings.HasPrefix(path, "https://") || strings.HasPrefix(path, "http://"):
		parsed, err := url.Parse(path)
		if err != nil {
			return "", fmt.Errorf("invalid URL %q: %w", path, err)
		}
		u = parsed
	default:
		if !strings.HasPrefix(path, "/api/") && !strings.HasPrefix(path, "/oauth/") {
			path = apiPrefix + "/" + strings.TrimLeft(path, "/")
		}
		rel, err := url.Parse(path)
		if err != nil {
			return "", fmt.Errorf("invalid path %q: %w", path, err)
		}
		u = c.base.ResolveReference(rel)
	}

	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func (c *Client) observe(method, path string, status int, start time.Time) {
	if c.observer == nil {
		return
	}
	c.observer.ObserveAPIRequest(method, endpointOf(path), status, time.Since(start))
}

// endpointOf reduces a request path to its API family (spaces, users, ...)
// to keep metric label cardinality bounded.
func endpointOf(path string) string {
	if u, err := url.Parse(path); err == nil {
		path = u.Path
	}
	path = strings.TrimPrefix(path, apiPrefix)
	path = strings.Trim(path, "/")
	if i := strings.Index(path, "/"); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "root"
	}
	return path
}
