// Package httpclient is the HTTP transport used by every provider adapter
// (C1). It is a thin wrapper around net/http that adds proxy selection, a
// tuned transport, and a pluggable SSE-decoder registry for streaming
// responses.
package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/relaywright/gatewaycore/internal/log"
	"github.com/relaywright/gatewaycore/internal/pkg/streams"
)

// ProxyType selects how outbound requests are routed.
type ProxyType string

const (
	ProxyTypeDisabled    ProxyType = "disabled"
	ProxyTypeEnvironment ProxyType = "environment"
	ProxyTypeURL         ProxyType = "url"
)

// ProxyConfig configures the outbound proxy for an HttpClient.
type ProxyConfig struct {
	Type     ProxyType
	URL      string
	Username string
	Password string
}

// AuthConfig describes how a Request authenticates against its destination.
type AuthConfig struct {
	Type      string // "bearer" or "api_key"
	APIKey    string
	HeaderKey string // header name when Type == "api_key"
}

// Request is a transport-agnostic HTTP request description.
type Request struct {
	Method  string
	URL     string
	Headers http.Header
	Query   url.Values
	Body    []byte
	Auth    *AuthConfig
}

// Response is the result of a non-streaming Do call.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// StreamEvent is one decoded Server-Sent Event.
type StreamEvent struct {
	LastEventID string
	Type        string
	Data        []byte
}

// Error represents an HTTP-level failure (status >= 400).
type Error struct {
	Method     string
	URL        string
	StatusCode int
	Status     string
	Body       []byte
}

func (e *Error) Error() string {
	return fmt.Sprintf("httpclient: %s %s: %s: %s", e.Method, e.URL, e.Status, string(e.Body))
}

var blockedHeaders = map[string]struct{}{
	"Content-Length": {},
	"Host":           {},
}

// HttpClient executes Requests over a tuned net/http.Client.
type HttpClient struct {
	client      *http.Client
	proxyConfig *ProxyConfig
}

// NewHttpClient creates a client with default (environment) proxy behavior.
func NewHttpClient() *HttpClient {
	return NewHttpClientWithProxy(nil)
}

// NewHttpClientWithProxy creates a client honoring the given proxy configuration.
func NewHttpClientWithProxy(proxyConfig *ProxyConfig) *HttpClient {
	transport := &http.Transport{
		Proxy: getProxyFunc(proxyConfig),
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &HttpClient{
		client:      &http.Client{Transport: transport},
		proxyConfig: proxyConfig,
	}
}

func getProxyFunc(config *ProxyConfig) func(*http.Request) (*url.URL, error) {
	if config == nil {
		return http.ProxyFromEnvironment
	}

	switch config.Type {
	case ProxyTypeDisabled:
		return func(*http.Request) (*url.URL, error) { return nil, nil }

	case ProxyTypeEnvironment:
		return http.ProxyFromEnvironment

	case ProxyTypeURL:
		if config.URL == "" {
			return func(*http.Request) (*url.URL, error) {
				return nil, errors.New("proxy URL is required when type is 'url'")
			}
		}

		proxyURL, err := url.Parse(config.URL)
		if err != nil {
			return func(*http.Request) (*url.URL, error) {
				return nil, fmt.Errorf("invalid proxy URL: %w", err)
			}
		}

		if config.Username != "" && config.Password != "" {
			proxyURL.User = url.UserPassword(config.Username, config.Password)
		}

		return http.ProxyURL(proxyURL)

	default:
		return http.ProxyFromEnvironment
	}
}

// Do executes a unary HTTP request and returns the decoded Response, or an
// *Error when the upstream returned a 4xx/5xx status.
func (hc *HttpClient) Do(ctx context.Context, request *Request) (*Response, error) {
	rawReq, err := hc.buildHttpRequest(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("failed to build HTTP request: %w", err)
	}

	rawReq.Header.Set("Accept", "application/json")

	rawResp, err := hc.client.Do(rawReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer rawResp.Body.Close()

	body, err := io.ReadAll(rawResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if log.DebugEnabled(ctx) {
		log.Debug(ctx, "http request",
			log.String("method", rawReq.Method),
			log.String("url", rawReq.URL.String()),
			log.Int("status_code", rawResp.StatusCode),
		)
	}

	if rawResp.StatusCode >= 400 {
		return nil, &Error{
			Method:     rawReq.Method,
			URL:        rawReq.URL.String(),
			StatusCode: rawResp.StatusCode,
			Status:     rawResp.Status,
			Body:       body,
		}
	}

	return &Response{
		StatusCode: rawResp.StatusCode,
		Headers:    rawResp.Header,
		Body:       body,
	}, nil
}

// DoStream executes a streaming HTTP request and returns a Stream of decoded
// events, chosen from the decoder registry by the response's content type.
func (hc *HttpClient) DoStream(ctx context.Context, request *Request) (streams.Stream[*StreamEvent], error) {
	rawReq, err := hc.buildHttpRequest(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("failed to build HTTP request: %w", err)
	}

	rawReq.Header.Set("Accept", "text/event-stream")
	rawReq.Header.Set("Cache-Control", "no-cache")
	rawReq.Header.Set("Connection", "keep-alive")

	rawResp, err := hc.client.Do(rawReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP stream request failed: %w", err)
	}

	if rawResp.StatusCode >= 400 {
		defer rawResp.Body.Close()

		body, err := io.ReadAll(rawResp.Body)
		if err != nil {
			return nil, err
		}

		return nil, &Error{
			Method:     rawReq.Method,
			URL:        rawReq.URL.String(),
			StatusCode: rawResp.StatusCode,
			Status:     rawResp.Status,
			Body:       body,
		}
	}

	contentType := rawResp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "text/event-stream"
	}

	decoderFactory, exists := GetDecoder(contentType)
	if !exists {
		decoderFactory = NewDefaultSSEDecoder
	}

	return decoderFactory(ctx, rawResp.Body), nil
}

func (hc *HttpClient) buildHttpRequest(ctx context.Context, request *Request) (*http.Request, error) {
	var body io.Reader
	if len(request.Body) > 0 {
		body = bytes.NewReader(request.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, request.Method, request.URL, body)
	if err != nil {
		return nil, err
	}

	httpReq.Header = request.Headers.Clone()
	if httpReq.Header == nil {
		httpReq.Header = make(http.Header)
	}

	if httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", "gatewaycore/1.0")
	}

	for k := range blockedHeaders {
		httpReq.Header.Del(k)
	}

	if request.Auth != nil {
		if err := applyAuth(httpReq.Header, request.Auth); err != nil {
			return nil, fmt.Errorf("failed to apply authentication: %w", err)
		}
	}

	if len(request.Query) > 0 {
		if httpReq.URL.RawQuery != "" {
			httpReq.URL.RawQuery += "&"
		}

		httpReq.URL.RawQuery += request.Query.Encode()
	}

	return httpReq, nil
}

func applyAuth(headers http.Header, auth *AuthConfig) error {
	switch auth.Type {
	case "bearer":
		if auth.APIKey == "" {
			return errors.New("bearer token is required")
		}

		headers.Set("Authorization", "Bearer "+auth.APIKey)
	case "api_key":
		if auth.HeaderKey == "" {
			return errors.New("header key is required")
		}

		headers.Set(auth.HeaderKey, auth.APIKey)
	default:
		return fmt.Errorf("unsupported auth type: %s", auth.Type)
	}

	return nil
}
