// Package providers holds one Adapter per ProviderKind (C1). Each adapter
// speaks its upstream's wire format and translates to/from the gateway's
// unified request/response shapes; none of them retry or log, per §4.1.
package providers

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/relaywright/gatewaycore/internal/gateway"
)

// wireMessage is the OpenAI-compatible chat message shape, shared by the
// openai, azure and openrouter adapters (all three speak this wire format).
type wireMessage struct {
	Role       string          `json:"role"`
	Content    string          `json:"content"`
	Name       string          `json:"name,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
	ToolCalls  []wireToolCall  `json:"tool_calls,omitempty"`
}

type wireToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type wireRequest struct {
	Model           string            `json:"model"`
	Messages        []wireMessage     `json:"messages"`
	MaxTokens       *int              `json:"max_tokens,omitempty"`
	Temperature     *float64          `json:"temperature,omitempty"`
	ResponseFormat  json.RawMessage   `json:"response_format,omitempty"`
	Tools           []json.RawMessage `json:"tools,omitempty"`
	Stream          bool              `json:"stream,omitempty"`
	ReasoningEffort string            `json:"reasoning_effort,omitempty"`
}

type wireUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type wireChoice struct {
	Index              int         `json:"index"`
	Message            wireMessage `json:"message"`
	FinishReason       string      `json:"finish_reason"`
	NativeFinishReason string      `json:"native_finish_reason"`
}

type wireResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []wireChoice `json:"choices"`
	Usage   *wireUsage   `json:"usage"`
}

type wireChunkChoice struct {
	Index        int         `json:"index"`
	Delta        wireMessage `json:"delta"`
	FinishReason *string     `json:"finish_reason"`
}

type wireChunk struct {
	ID      string            `json:"id"`
	Object  string            `json:"object"`
	Created int64             `json:"created"`
	Model   string            `json:"model"`
	Choices []wireChunkChoice `json:"choices"`
	Usage   *wireUsage        `json:"usage"`
}

// mapFinishReason maps the upstream's finish_reason vocabulary onto the
// unified set {stop, length, function_call, content_filter, tool_calls},
// grounded on the original implementation's OpenAI finish-reason mapping.
func mapFinishReason(reason string) string {
	switch reason {
	case "stop":
		return "stop"
	case "length", "max_tokens":
		return "length"
	case "function_call":
		return "function_call"
	case "content_filter":
		return "content_filter"
	case "tool_calls":
		return "tool_calls"
	default:
		return reason
	}
}

func toWireMessages(messages []gateway.Message) []wireMessage {
	out := make([]wireMessage, 0, len(messages))

	for _, m := range messages {
		wm := wireMessage{
			Role:       string(m.Role),
			Content:    m.Content,
			Name:       m.Name,
			ToolCallID: m.ToolCallID,
		}

		for _, tc := range m.ToolCalls {
			wtc := wireToolCall{ID: tc.ID, Type: tc.Type}
			wtc.Function.Name = tc.Function.Name
			wtc.Function.Arguments = tc.Function.Arguments
			wm.ToolCalls = append(wm.ToolCalls, wtc)
		}

		out = append(out, wm)
	}

	return out
}

func buildWireRequest(req *gateway.MaterializedRequest, stream bool) (*wireRequest, error) {
	wr := &wireRequest{
		Model:           req.Model,
		Messages:        toWireMessages(req.Messages),
		MaxTokens:       req.MaxTokens,
		Temperature:     req.Temperature,
		Stream:          stream,
		ReasoningEffort: req.ReasoningEffort,
	}

	if req.ResponseFormat != nil {
		b, err := json.Marshal(req.ResponseFormat)
		if err != nil {
			return nil, gateway.New(gateway.ClassSerializationError, fmt.Errorf("marshal response_format: %w", err))
		}

		wr.ResponseFormat = b
	}

	for _, t := range req.Tools {
		b, err := json.Marshal(t)
		if err != nil {
			return nil, gateway.New(gateway.ClassSerializationError, fmt.Errorf("marshal tool: %w", err))
		}

		wr.Tools = append(wr.Tools, b)
	}

	return wr, nil
}

func fromWireResponse(resp *wireResponse) (*gateway.UnifiedResponse, error) {
	if len(resp.Choices) == 0 {
		return nil, gateway.New(gateway.ClassEmptyResponse, fmt.Errorf("upstream returned zero choices"))
	}

	out := &gateway.UnifiedResponse{
		ID:      resp.ID,
		Object:  "chat.completion",
		Created: resp.Created,
		Model:   resp.Model,
	}

	for _, c := range resp.Choices {
		out.Choices = append(out.Choices, gateway.Choice{
			Index: c.Index,
			Message: gateway.Message{
				Role:    gateway.Role(c.Message.Role),
				Content: c.Message.Content,
			},
			FinishReason:       mapFinishReason(c.FinishReason),
			NativeFinishReason: c.NativeFinishReason,
		})
	}

	if resp.Usage != nil {
		out.Usage = &gateway.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}

	return out, nil
}

func fromWireChunk(c *wireChunk) *gateway.UnifiedChunk {
	out := &gateway.UnifiedChunk{
		ID:      c.ID,
		Object:  "chat.completion.chunk",
		Created: c.Created,
		Model:   c.Model,
	}

	for _, cc := range c.Choices {
		var finish *string
		if cc.FinishReason != nil {
			mapped := mapFinishReason(*cc.FinishReason)
			finish = &mapped
		}

		out.Choices = append(out.Choices, gateway.ChunkChoice{
			Index: cc.Index,
			Delta: gateway.Message{
				Role:    gateway.Role(cc.Delta.Role),
				Content: cc.Delta.Content,
			},
			FinishReason: finish,
		})
	}

	if c.Usage != nil {
		out.Usage = &gateway.Usage{
			PromptTokens:     c.Usage.PromptTokens,
			CompletionTokens: c.Usage.CompletionTokens,
			TotalTokens:      c.Usage.TotalTokens,
		}
	}

	return out
}

// classifyHTTPError maps an *httpclient.Error (status + body) to a gateway
// Class, inspecting the OpenAI-compatible {"error": {...}} error shape with
// gjson the way the teacher's adapters inspect inline error bodies.
func classifyHTTPError(statusCode int, body []byte) *gateway.Error {
	msg := gjson.GetBytes(body, "error.message").String()
	if msg == "" {
		msg = gjson.GetBytes(body, "error").String()
	}

	if msg == "" {
		msg = string(body)
	}

	var class gateway.Class

	switch {
	case statusCode == 401 || statusCode == 403:
		class = gateway.ClassAuth
	case statusCode == 429:
		class = gateway.ClassRateLimit
	case statusCode == 400:
		class = gateway.ClassInvalidRequest
	case statusCode >= 500:
		class = gateway.ClassProviderUnavailable
	default:
		class = gateway.ClassProviderUnavailable
	}

	return gateway.Newf(class, "upstream status %d: %s", statusCode, msg)
}
