package providers

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaywright/gatewaycore/internal/gateway"
)

func TestMapFinishReason(t *testing.T) {
	cases := map[string]string{
		"stop":           "stop",
		"length":         "length",
		"max_tokens":     "length",
		"tool_calls":     "tool_calls",
		"content_filter": "content_filter",
		"something_new":  "something_new",
	}

	for in, want := range cases {
		assert.Equal(t, want, mapFinishReason(in))
	}
}

func TestBuildWireRequest_MarshalsToolsAndResponseFormat(t *testing.T) {
	maxTokens := 128
	temp := 0.3

	req := &gateway.MaterializedRequest{
		Model:          "gpt-4o",
		Messages:       []gateway.Message{{Role: gateway.RoleUser, Content: "hi"}},
		MaxTokens:      &maxTokens,
		Temperature:    &temp,
		ResponseFormat: &gateway.ResponseFormat{Type: "json_object"},
		Tools:          []gateway.Tool{{Type: "function", Function: json.RawMessage(`{"name":"x"}`)}},
	}

	wr, err := buildWireRequest(req, true)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", wr.Model)
	assert.True(t, wr.Stream)
	require.Len(t, wr.Tools, 1)
	assert.JSONEq(t, `{"name":"x"}`, string(wr.Tools[0]))
	assert.JSONEq(t, `{"type":"json_object"}`, string(wr.ResponseFormat))
}

func TestFromWireResponse_EmptyChoicesIsEmptyResponseClass(t *testing.T) {
	_, err := fromWireResponse(&wireResponse{ID: "x"})
	require.Error(t, err)
	assert.Equal(t, gateway.ClassEmptyResponse, gateway.ClassOf(err))
}

func TestFromWireResponse_MapsChoicesAndUsage(t *testing.T) {
	resp := &wireResponse{
		ID:      "resp-1",
		Created: 42,
		Model:   "gpt-4o",
		Choices: []wireChoice{{
			Index:        0,
			Message:      wireMessage{Role: "assistant", Content: "hello"},
			FinishReason: "stop",
		}},
		Usage: &wireUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}

	out, err := fromWireResponse(resp)
	require.NoError(t, err)
	require.Len(t, out.Choices, 1)
	assert.Equal(t, "hello", out.Choices[0].Message.Content)
	assert.Equal(t, "stop", out.Choices[0].FinishReason)
	require.NotNil(t, out.Usage)
	assert.Equal(t, 15, out.Usage.TotalTokens)
}

func TestFromWireChunk_PreservesNilFinishReason(t *testing.T) {
	c := &wireChunk{
		ID: "chunk-1", Created: 1, Model: "gpt-4o",
		Choices: []wireChunkChoice{{Index: 0, Delta: wireMessage{Role: "assistant", Content: "hi"}}},
	}

	out := fromWireChunk(c)
	require.Len(t, out.Choices, 1)
	assert.Nil(t, out.Choices[0].FinishReason)
	assert.Equal(t, "hi", out.Choices[0].Delta.Content)
}

func TestClassifyHTTPError(t *testing.T) {
	cases := []struct {
		status int
		body   string
		class  gateway.Class
	}{
		{401, `{"error":{"message":"bad key"}}`, gateway.ClassAuth},
		{403, `{"error":{"message":"forbidden"}}`, gateway.ClassAuth},
		{429, `{"error":{"message":"slow down"}}`, gateway.ClassRateLimit},
		{400, `{"error":{"message":"bad request"}}`, gateway.ClassInvalidRequest},
		{500, `{"error":{"message":"boom"}}`, gateway.ClassProviderUnavailable},
		{503, `{"error":{"message":"unavailable"}}`, gateway.ClassProviderUnavailable},
	}

	for _, tc := range cases {
		err := classifyHTTPError(tc.status, []byte(tc.body))
		assert.Equal(t, tc.class, err.Class)
	}
}
