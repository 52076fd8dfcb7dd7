// Package graph is the Microsoft Graph API client consumed by the capability
// facade. Every call returns a normalized text-content envelope whose payload
// is the raw JSON body of the Graph response.
package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the Graph v1.0 endpoint.
const DefaultBaseURL = "https://graph.microsoft.com/v1.0"

const (
	cacheSize = 256
	cacheTTL  = 30 * time.Second
)

// TokenSource supplies a bearer token for each request. Implemented by
// auth.Manager; tests inject a static source.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// RequestOptions shapes a single Graph call.
type RequestOptions struct {
	Method      string            // defaults to GET
	Body        any               // JSON-encoded unless RawBody is set
	RawBody     []byte            // sent verbatim (file uploads)
	ContentType string            // defaults to application/json
	Headers     map[string]string // extra headers (If-Match etc.)
	Query       url.Values
}

// ContentItem is one entry of the normalized response envelope.
type ContentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// CallResult is the normalized response envelope: the JSON payload of the
// Graph response as a single text item.
type CallResult struct {
	Content []ContentItem `json:"content"`
}

// APIError is a non-2xx Graph response decoded into a readable message.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("graph API error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("graph API error %d: %s", e.Status, e.Message)
}

type cacheEntry struct {
	payload string
	at      time.Time
}

// Client performs authenticated Graph calls with a token-bucket throttle and
// a short-TTL LRU over GET responses.
type Client struct {
	httpClient *http.Client
	baseURL    string
	tokens     TokenSource
	limiter    *rate.Limiter
	cache      *lru.Cache[string, cacheEntry]
}

// NewClient creates a Graph client. rps bounds outbound request rate; values
// <= 0 disable throttling.
func NewClient(tokens TokenSource, rps float64) *Client {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	cache, _ := lru.New[string, cacheEntry](cacheSize)
	return &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    DefaultBaseURL,
		tokens:     tokens,
		limiter:    rate.NewLimiter(limit, 4),
		cache:      cache,
	}
}

// SetBaseURL overrides the Graph endpoint (tests point it at a local server).
func (c *Client) SetBaseURL(u string) { c.baseURL = strings.TrimRight(u, "/") }

// CallAPI performs one Graph request and wraps the response body into the
// text-content envelope. Non-2xx responses return an *APIError.
func (c *Client) CallAPI(ctx context.Context, path string, opts RequestOptions) (*CallResult, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	fullURL := c.baseURL + path
	if len(opts.Query) > 0 {
		fullURL += "?" + opts.Query.Encode()
	}

	if method == http.MethodGet {
		if entry, ok := c.cache.Get(fullURL); ok && time.Since(entry.at) < cacheTTL {
			slog.Debug("graph cache hit", "url", fullURL)
			return textEnvelope(entry.payload), nil
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var body io.Reader
	contentType := opts.ContentType
	switch {
	case opts.RawBody != nil:
		body = bytes.NewReader(opts.RawBody)
		if contentType == "" {
			contentType = "application/octet-stream"
		}
	case opts.Body != nil:
		data, err := json.Marshal(opts.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(data)
		if contentType == "" {
			contentType = "application/json"
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, err
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("graph request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read graph response: %w", err)
	}

	slog.Debug("graph call",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, decodeAPIError(resp.StatusCode, payload)
	}

	text := string(payload)
	if strings.TrimSpace(text) == "" {
		text = "{}" // 204 No Content and friends
	}

	if method == http.MethodGet {
		c.cache.Add(fullURL, cacheEntry{payload: text, at: time.Now()})
	}

	return textEnvelope(text), nil
}

func textEnvelope(text string) *CallResult {
	return &CallResult{Content: []ContentItem{{Type: "text", Text: text}}}
}

func decodeAPIError(status int, payload []byte) error {
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(payload, &envelope) == nil && envelope.Error.Message != "" {
		return &APIError{Status: status, Code: envelope.Error.Code, Message: envelope.Error.Message}
	}
	return &APIError{Status: status, Message: strings.TrimSpace(string(payload))}
}
