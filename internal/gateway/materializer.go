package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"text/template"

	"github.com/spf13/cast"
	"github.com/tidwall/sjson"
)

// Materializer implements C2: merging a stored PromptVersion with an
// inbound ChatRequest into a provider-ready MaterializedRequest.
//
// Grounded on the original implementation's LlmServiceRequest::new, which
// this type's Materialize reproduces branch-for-branch.
type Materializer struct{}

func NewMaterializer() *Materializer { return &Materializer{} }

// templateFieldRef finds "{{.Field" / "{{ .Field" references so missing
// top-level context keys can be pre-filled with the empty string before
// execution — text/template's own Option("missingkey=zero") only zeroes
// missing map entries typed as the map's value type; for a map[string]any
// that zero value is nil, which text/template prints as "<no value>", not
// "". Pre-filling referenced-but-absent keys closes that gap deterministically.
var templateFieldRef = regexp.MustCompile(`\{\{-?\s*\.(\w+)`)

// coerceContextScalars normalizes a JSON-decoded context's scalar values
// (numbers, bools) to strings so templated output doesn't depend on how
// encoding/json happened to type a field (float64 vs. int, 1 vs. 1.0).
// Nested objects/arrays are left as-is for dotted-path template access.
func coerceContextScalars(ctx map[string]any) map[string]any {
	for k, v := range ctx {
		switch v.(type) {
		case string, map[string]any, []any, nil:
			continue
		default:
			ctx[k] = cast.ToString(v)
		}
	}

	return ctx
}

func withLenientDefaults(tmplText string, ctx map[string]any) map[string]any {
	for _, m := range templateFieldRef.FindAllStringSubmatch(tmplText, -1) {
		key := m[1]
		if _, ok := ctx[key]; !ok {
			ctx[key] = ""
		}
	}

	return ctx
}

func renderTemplate(name, tmplText string, ctx map[string]any) (string, error) {
	if tmplText == "" {
		return "", nil
	}

	tmpl, err := template.New(name).Option("missingkey=zero").Parse(tmplText)
	if err != nil {
		return "", New(ClassTemplate, fmt.Errorf("parse %s template: %w", name, err))
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, withLenientDefaults(tmplText, ctx)); err != nil {
		return "", New(ClassTemplate, fmt.Errorf("render %s template: %w", name, err))
	}

	return buf.String(), nil
}

// systemContext extracts the system context object from R's system message,
// if any: the content is parsed as JSON; invalid JSON yields an empty
// context, never an error (§4.2).
func systemContext(req *ChatRequest) map[string]any {
	for _, m := range req.Messages {
		if m.Role != RoleSystem {
			continue
		}

		var ctx map[string]any
		if err := json.Unmarshal([]byte(m.Content), &ctx); err != nil || ctx == nil {
			return map[string]any{}
		}

		return coerceContextScalars(ctx)
	}

	return map[string]any{}
}

func firstUserContent(req *ChatRequest) string {
	for _, m := range req.Messages {
		if m.Role == RoleUser {
			return m.Content
		}
	}

	return ""
}

// Materialize implements the contract of §4.2.
func (m *Materializer) Materialize(p *PromptVersion, req *ChatRequest) (*MaterializedRequest, error) {
	systemPrompt, err := renderTemplate("system", p.SystemTemplate, systemContext(req))
	if err != nil {
		return nil, err
	}

	var messages []Message

	if len(req.Messages) >= 2 {
		messages, err = mergeChatMode(req.Messages, systemPrompt)
		if err != nil {
			return nil, err
		}
	} else {
		messages, err = synthesizePair(p, req, systemPrompt)
		if err != nil {
			return nil, err
		}
	}

	result := &MaterializedRequest{
		PromptID:     p.PromptID,
		Messages:     messages,
		Model:        p.Model,
		ProviderKind: p.ProviderKind,
		BaseURL:      p.BaseURL,
		MaxTokens:    intPtr(p.MaxTokens),
		Temperature:  floatPtr(p.Temperature),
		Tools:        req.Tools,
	}

	if p.IsReasoning {
		result.ReasoningEffort = req.ReasoningEffort
	}

	if err := applyCapabilityGating(p, result); err != nil {
		return nil, err
	}

	return result, nil
}

// mergeChatMode is the ≥2-message branch of §4.2: the existing list is
// preserved and the rendered system prompt replaces the existing system
// message, or is inserted at position 0 if absent.
func mergeChatMode(in []Message, systemPrompt string) ([]Message, error) {
	out := make([]Message, 0, len(in)+1)
	replaced := false

	for _, msg := range in {
		if msg.Role == RoleSystem && !replaced {
			out = append(out, Message{Role: RoleSystem, Content: systemPrompt})
			replaced = true

			continue
		}

		out = append(out, msg)
	}

	if !replaced {
		out = append([]Message{{Role: RoleSystem, Content: systemPrompt}}, out...)
	}

	return out, nil
}

// synthesizePair is the <2-message branch of §4.2.
func synthesizePair(p *PromptVersion, req *ChatRequest, systemPrompt string) ([]Message, error) {
	userContent := firstUserContent(req)

	if p.PromptType == PromptTypeDynamicBoth {
		var userCtx map[string]any
		if err := json.Unmarshal([]byte(userContent), &userCtx); err != nil {
			return nil, New(ClassChatMessagesInput, fmt.Errorf("user content is not valid JSON for dynamic_both prompt: %w", err))
		}

		rendered, err := renderTemplate("user", p.UserTemplate, coerceContextScalars(userCtx))
		if err != nil {
			return nil, err
		}

		userContent = rendered
	}

	return []Message{
		{Role: RoleSystem, Content: systemPrompt},
		{Role: RoleUser, Content: userContent},
	}, nil
}

// applyCapabilityGating implements §4.2's post-merge capability gating.
func applyCapabilityGating(p *PromptVersion, m *MaterializedRequest) error {
	if p.JSONMode && p.SupportsJSON {
		rf := &ResponseFormat{Type: "json_object"}

		if p.SupportsJSONSch && len(p.JSONSchema) > 0 {
			raw, err := sjson.SetRawBytes([]byte(`{"name":"schema","strict":true}`), "schema", p.JSONSchema)
			if err != nil {
				return New(ClassSerializationError, fmt.Errorf("embed json schema: %w", err))
			}

			rf.Type = "json_schema"
			rf.JSONSchema = raw

			if len(m.Messages) > 0 && m.Messages[0].Role == RoleSystem {
				m.Messages[0].Content += fmt.Sprintf("\nPlease respond in adherence to the following JSON Schema: %s", string(p.JSONSchema))
			}
		}

		m.ResponseFormat = rf
	} else {
		m.ResponseFormat = nil
	}

	if !p.SupportsTools {
		m.Tools = nil
	}

	return nil
}

func intPtr(v int) *int          { return &v }
func floatPtr(v float64) *float64 { return &v }
