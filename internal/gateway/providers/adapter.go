package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/relaywright/gatewaycore/internal/gateway"
	"github.com/relaywright/gatewaycore/internal/pkg/httpclient"
	"github.com/relaywright/gatewaycore/internal/pkg/streams"
)

const defaultBaseURL = "https://api.openai.com/v1"

// urlBuilder constructs the full chat-completions URL for one request, given
// the resolved base URL and the request itself (some kinds, like Azure,
// fold the model into the path and an api-version into the query),
// generalized behind a function instead of a switch on platform string.
type urlBuilder func(baseURL string, req *gateway.MaterializedRequest) string

// authBuilder constructs the auth header config for one request's API key.
type authBuilder func(apiKey string) *httpclient.AuthConfig

// baseAdapter implements Adapter for any OpenAI-compatible wire format; the
// three concrete adapters (openai, azure, openrouter) only differ in how
// they build the URL and the auth header, matching the base spec's "each
// adapter is responsible for authentication using the credential
// convention for its kind" + "translating the unified message list" split.
type baseAdapter struct {
	kind       gateway.ProviderKind
	httpClient *httpclient.HttpClient
	buildURL   urlBuilder
	buildAuth  authBuilder
}

func (a *baseAdapter) Execute(ctx context.Context, req *gateway.MaterializedRequest, creds *gateway.Credentials) (*gateway.UnifiedResponse, error) {
	httpReq, err := a.buildHTTPRequest(req, creds, false)
	if err != nil {
		return nil, err
	}

	resp, err := a.httpClient.Do(ctx, httpReq)
	if err != nil {
		return nil, classifyTransportError(err)
	}

	var wire wireResponse
	if err := json.Unmarshal(resp.Body, &wire); err != nil {
		return nil, gateway.New(gateway.ClassSerializationError, fmt.Errorf("decode response: %w", err))
	}

	return fromWireResponse(&wire)
}

func (a *baseAdapter) ExecuteStream(ctx context.Context, req *gateway.MaterializedRequest, creds *gateway.Credentials) (streams.Stream[*gateway.UnifiedChunk], error) {
	httpReq, err := a.buildHTTPRequest(req, creds, true)
	if err != nil {
		return nil, err
	}

	events, err := a.httpClient.DoStream(ctx, httpReq)
	if err != nil {
		return nil, classifyTransportError(err)
	}

	return &chunkStream{events: events}, nil
}

func (a *baseAdapter) buildHTTPRequest(req *gateway.MaterializedRequest, creds *gateway.Credentials, stream bool) (*httpclient.Request, error) {
	apiKey, err := creds.APIKey(a.kind)
	if err != nil {
		return nil, err
	}

	wireReq, err := buildWireRequest(req, stream)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(wireReq)
	if err != nil {
		return nil, gateway.New(gateway.ClassSerializationError, fmt.Errorf("marshal request: %w", err))
	}

	baseURL := req.BaseURL
	if baseURL == "" {
		if override, ok := creds.BaseURLOverride(a.kind); ok {
			baseURL = override
		}
	}

	return &httpclient.Request{
		Method:  "POST",
		URL:     a.buildURL(baseURL, req),
		Headers: map[string][]string{"Content-Type": {"application/json"}},
		Body:    body,
		Auth:    a.buildAuth(apiKey),
	}, nil
}

// classifyTransportError maps a transport-level failure (connection error,
// exceeded deadline, or an *httpclient.Error carrying an upstream status +
// body) to a Class.
func classifyTransportError(err error) error {
	var httpErr *httpclient.Error
	if errors.As(err, &httpErr) {
		return classifyHTTPError(httpErr.StatusCode, httpErr.Body)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return gateway.New(gateway.ClassTimeout, err)
	}

	return gateway.New(gateway.ClassProviderUnavailable, err)
}

// chunkStream adapts the httpclient SSE event stream to a
// streams.Stream[*gateway.UnifiedChunk], detecting the upstream's own
// "[DONE]" line and any inline error payload.
type chunkStream struct {
	events  streams.Stream[*httpclient.StreamEvent]
	current *gateway.UnifiedChunk
	done    bool
	err     error
}

func (s *chunkStream) Next() bool {
	if s.done || s.err != nil {
		return false
	}

	for s.events.Next() {
		evt := s.events.Current()
		data := bytes.TrimSpace(evt.Data)

		if len(data) == 0 {
			continue
		}

		if string(data) == "[DONE]" || strings.HasPrefix(string(data), "[DONE]") {
			s.done = true

			return false
		}

		if errMsg := gjson.GetBytes(data, "error"); errMsg.Exists() {
			s.err = gateway.Newf(gateway.ClassProviderUnavailable, "stream error: %s", errMsg.String())

			return false
		}

		var wc wireChunk
		if err := json.Unmarshal(data, &wc); err != nil {
			s.err = gateway.New(gateway.ClassSerializationError, fmt.Errorf("decode chunk: %w", err))

			return false
		}

		s.current = fromWireChunk(&wc)

		return true
	}

	if err := s.events.Err(); err != nil && !errors.Is(err, io.EOF) {
		s.err = gateway.New(gateway.ClassProviderUnavailable, err)
	}

	return false
}

func (s *chunkStream) Current() *gateway.UnifiedChunk { return s.current }
func (s *chunkStream) Err() error                      { return s.err }
func (s *chunkStream) Close() error                    { return s.events.Close() }
