package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"storefront-api/internal/config"
	"storefront-api/internal/domain"
)

const rawSnippetLen = 100

// Client performs round trips against the hosted provider. URL construction
// and the HTTP exchange are kept separate so handlers and stores can share
// one configured instance.
type Client struct {
	mode       string
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	logger     *log.Logger
}

// Response is the content-negotiated result of a Call. Body holds the parsed
// JSON value when the provider answered with JSON, or {"text": raw} when it
// did not. Raw always carries the unparsed bytes.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       interface{}
	Raw        []byte
}

// New builds a Client from resolved configuration.
func New(cfg config.Config, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		mode:       cfg.Mode,
		baseURL:    cfg.BaseURL(),
		timeout:    timeout,
		httpClient: &http.Client{},
		logger:     logger,
	}
}

// BuildURL resolves an endpoint to the URL the transport should dial.
// Absolute endpoints pass through untouched. In development mode relative
// endpoints stay relative so a dev proxy can route them. Otherwise the
// configured base is prepended, with a leading slash guaranteed.
func (c *Client) BuildURL(endpoint string) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	if c.mode == config.ModeDevelopment {
		return endpoint
	}
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return c.baseURL + endpoint
}

// Call performs one round trip. The request is bounded by the client timeout
// in addition to any deadline already on ctx; caller cancellation is
// reported as the caller's context error, never as a NetworkError. Transport
// failures (DNS, connection refused, internal timeout) yield NetworkError.
// HTTP error statuses are not errors here: the Response is returned for the
// caller to inspect.
func (c *Client) Call(ctx context.Context, method, endpoint string, body interface{}, header http.Header) (*Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(payload)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, method, c.BuildURL(endpoint), reader)
	if err != nil {
		return nil, err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			// The caller gave up; do not mask that as a provider outage.
			return nil, ctx.Err()
		}
		c.logger.Printf("gateway: %s %s transport error=%v", method, endpoint, err)
		return nil, &domain.NetworkError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &domain.NetworkError{Endpoint: endpoint, Err: err}
	}

	out := &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Raw:        raw,
	}

	if isJSON(resp.Header.Get("Content-Type")) {
		var parsed interface{}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &parsed); err != nil {
				return nil, &domain.RetryableError{
					Message:    "invalid JSON from provider",
					StatusCode: resp.StatusCode,
					Details:    snippet(raw),
				}
			}
		}
		out.Body = parsed
	} else {
		out.Body = map[string]interface{}{"text": string(raw)}
	}
	return out, nil
}

// DecodeJSON unmarshals the raw response body into v.
func (r *Response) DecodeJSON(v interface{}) error {
	return json.Unmarshal(r.Raw, v)
}

func isJSON(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "application/json")
}

func snippet(raw []byte) string {
	s := string(raw)
	if len(s) > rawSnippetLen {
		return s[:rawSnippetLen]
	}
	return s
}
