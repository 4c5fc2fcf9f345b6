// Package handlers implements the gin handlers behind the §6.1 HTTP
// surface: chat completions (unary + SSE), models, and eval-run CRUD.
package handlers

import (
	"github.com/relaywright/gatewaycore/internal/gateway"
)

// ChatCompletionRequest is the inbound wire shape for POST
// /v1/chat/completions: a ChatRequest plus the prompt_id and optional
// fallback_policy §6.1 adds on top of the OpenAI-compatible body.
type ChatCompletionRequest struct {
	PromptID        string                  `json:"prompt_id" binding:"required"`
	Messages        []gateway.Message       `json:"messages"`
	Stream          bool                    `json:"stream"`
	ResponseFormat  *gateway.ResponseFormat `json:"response_format"`
	Tools           []gateway.Tool          `json:"tools"`
	MaxTokens       *int                    `json:"max_tokens"`
	Temperature     *float64                `json:"temperature"`
	ReasoningEffort string                  `json:"reasoning_effort"`
	FallbackPolicy  *FallbackPolicyDTO      `json:"fallback_policy"`
}

// FallbackPolicyDTO is the wire shape of gateway.FallbackPolicy: Catch is
// carried as strings on the wire and converted to gateway.Class server-side.
type FallbackPolicyDTO struct {
	Enabled          bool               `json:"enabled"`
	RetriesPerTarget int                `json:"retries_per_target"`
	Targets          []FallbackTargetDTO `json:"targets"`
}

type FallbackTargetDTO struct {
	ProviderKind string   `json:"provider_kind"`
	Model        string   `json:"model"`
	BaseURL      string   `json:"base_url,omitempty"`
	MaxTokens    *int     `json:"max_tokens,omitempty"`
	Temperature  *float64 `json:"temperature,omitempty"`
	Catch        []string `json:"catch"`
}

func (dto *ChatCompletionRequest) toChatRequest() *gateway.ChatRequest {
	return &gateway.ChatRequest{
		Messages:        dto.Messages,
		Stream:          dto.Stream,
		ResponseFormat:  dto.ResponseFormat,
		Tools:           dto.Tools,
		MaxTokens:       dto.MaxTokens,
		Temperature:     dto.Temperature,
		ReasoningEffort: dto.ReasoningEffort,
	}
}

func (dto *FallbackPolicyDTO) toPolicy() *gateway.FallbackPolicy {
	if dto == nil {
		return nil
	}

	policy := &gateway.FallbackPolicy{
		Enabled:          dto.Enabled,
		RetriesPerTarget: dto.RetriesPerTarget,
	}

	for _, t := range dto.Targets {
		catch := make(map[gateway.Class]struct{}, len(t.Catch))
		for _, c := range t.Catch {
			catch[gateway.Class(c)] = struct{}{}
		}

		policy.Targets = append(policy.Targets, gateway.FallbackTarget{
			ProviderKind: gateway.ProviderKind(t.ProviderKind),
			Model:        t.Model,
			BaseURL:      t.BaseURL,
			MaxTokens:    t.MaxTokens,
			Temperature:  t.Temperature,
			Catch:        catch,
		})
	}

	return policy
}
