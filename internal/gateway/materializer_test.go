package gateway

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func basePromptVersion() *PromptVersion {
	return &PromptVersion{
		ID:            "pv-1",
		PromptID:      "p-1",
		Version:       1,
		SystemTemplate: "You help with {{.topic}}.",
		UserTemplate:  "",
		Model:         "gpt-4o",
		ProviderKind:  KindOpenAI,
		MaxTokens:     256,
		Temperature:   0.5,
		PromptType:    PromptTypeDynamicSystem,
		SupportsJSON:  true,
		SupportsTools: true,
	}
}

func TestMaterialize_UnaryHappyPath(t *testing.T) {
	m := NewMaterializer()
	p := basePromptVersion()

	req := &ChatRequest{
		Messages: []Message{
			{Role: RoleSystem, Content: `{"topic":"math"}`},
			{Role: RoleUser, Content: "2+2?"},
		},
	}

	out, err := m.Materialize(p, req)
	require.NoError(t, err)
	require.Len(t, out.Messages, 2)
	assert.Equal(t, "You help with math.", out.Messages[0].Content)
	assert.Equal(t, "2+2?", out.Messages[1].Content)
	assert.Equal(t, "gpt-4o", out.Model)
}

func TestMaterialize_Determinism(t *testing.T) {
	m := NewMaterializer()
	p := basePromptVersion()
	req := &ChatRequest{Messages: []Message{
		{Role: RoleSystem, Content: `{"topic":"math"}`},
		{Role: RoleUser, Content: "2+2?"},
	}}

	a, err := m.Materialize(p, req)
	require.NoError(t, err)
	b, err := m.Materialize(p, req)
	require.NoError(t, err)

	aj, _ := json.Marshal(a)
	bj, _ := json.Marshal(b)
	assert.JSONEq(t, string(aj), string(bj))
}

func TestMaterialize_LenientMissingVariable(t *testing.T) {
	m := NewMaterializer()
	p := basePromptVersion()

	req := &ChatRequest{Messages: []Message{
		{Role: RoleSystem, Content: `{}`},
		{Role: RoleUser, Content: "hi"},
	}}

	out, err := m.Materialize(p, req)
	require.NoError(t, err)
	assert.Equal(t, "You help with .", out.Messages[0].Content)
}

func TestMaterialize_InvalidSystemJSONFallsBackToEmptyContext(t *testing.T) {
	m := NewMaterializer()
	p := basePromptVersion()

	req := &ChatRequest{Messages: []Message{
		{Role: RoleSystem, Content: `not json`},
		{Role: RoleUser, Content: "hi"},
	}}

	out, err := m.Materialize(p, req)
	require.NoError(t, err)
	assert.Equal(t, "You help with .", out.Messages[0].Content)
}

func TestMaterialize_ChatModeInsertsSystemAtZeroWhenAbsent(t *testing.T) {
	m := NewMaterializer()
	p := basePromptVersion()

	req := &ChatRequest{Messages: []Message{
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello"},
	}}

	out, err := m.Materialize(p, req)
	require.NoError(t, err)
	require.Len(t, out.Messages, 3)
	assert.Equal(t, RoleSystem, out.Messages[0].Role)
	assert.Equal(t, "hi", out.Messages[1].Content)
	assert.Equal(t, "hello", out.Messages[2].Content)
}

func TestMaterialize_ChatModePreservesNonSystemMessages(t *testing.T) {
	m := NewMaterializer()
	p := basePromptVersion()

	req := &ChatRequest{Messages: []Message{
		{Role: RoleSystem, Content: `{"topic":"science"}`},
		{Role: RoleUser, Content: "q1"},
		{Role: RoleAssistant, Content: "a1"},
		{Role: RoleUser, Content: "q2"},
	}}

	out, err := m.Materialize(p, req)
	require.NoError(t, err)
	require.Len(t, out.Messages, 4)
	assert.Equal(t, "You help with science.", out.Messages[0].Content)
	assert.Equal(t, "q1", out.Messages[1].Content)
	assert.Equal(t, "a1", out.Messages[2].Content)
	assert.Equal(t, "q2", out.Messages[3].Content)
}

func TestMaterialize_DynamicBothRendersUserTemplate(t *testing.T) {
	m := NewMaterializer()
	p := basePromptVersion()
	p.PromptType = PromptTypeDynamicBoth
	p.UserTemplate = "Please review {{.doc}}."

	req := &ChatRequest{Messages: []Message{
		{Role: RoleUser, Content: `{"doc":"the report"}`},
	}}

	out, err := m.Materialize(p, req)
	require.NoError(t, err)
	require.Len(t, out.Messages, 2)
	assert.Equal(t, "Please review the report.", out.Messages[1].Content)
}

func TestMaterialize_DynamicBothInvalidJSONErrors(t *testing.T) {
	m := NewMaterializer()
	p := basePromptVersion()
	p.PromptType = PromptTypeDynamicBoth
	p.UserTemplate = "Please review {{.doc}}."

	req := &ChatRequest{Messages: []Message{
		{Role: RoleUser, Content: `not json`},
	}}

	_, err := m.Materialize(p, req)
	require.Error(t, err)
	assert.Equal(t, ClassChatMessagesInput, ClassOf(err))
}

func TestMaterialize_StaticPromptTypeIgnoresUserTemplate(t *testing.T) {
	m := NewMaterializer()
	p := basePromptVersion()
	p.PromptType = PromptTypeStatic
	p.UserTemplate = "should not be used: {{.x}}"

	req := &ChatRequest{Messages: []Message{
		{Role: RoleUser, Content: "raw user text"},
	}}

	out, err := m.Materialize(p, req)
	require.NoError(t, err)
	assert.Equal(t, "raw user text", out.Messages[1].Content)
}

func TestMaterialize_EmptyUserMessage(t *testing.T) {
	m := NewMaterializer()
	p := basePromptVersion()

	req := &ChatRequest{Messages: []Message{}}

	out, err := m.Materialize(p, req)
	require.NoError(t, err)
	require.Len(t, out.Messages, 2)
	assert.Equal(t, "", out.Messages[1].Content)
}

func TestMaterialize_CapabilityGating_NoToolsNoJSON(t *testing.T) {
	m := NewMaterializer()
	p := basePromptVersion()
	p.SupportsTools = false
	p.SupportsJSON = false
	p.JSONMode = true

	req := &ChatRequest{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
		Tools:    []Tool{{Type: "function", Function: json.RawMessage(`{"name":"x"}`)}},
	}

	out, err := m.Materialize(p, req)
	require.NoError(t, err)
	assert.Nil(t, out.Tools)
	assert.Nil(t, out.ResponseFormat)
}

func TestMaterialize_CapabilityGating_JSONModeWithSchema(t *testing.T) {
	m := NewMaterializer()
	p := basePromptVersion()
	p.JSONMode = true
	p.SupportsJSON = true
	p.SupportsJSONSch = true
	p.JSONSchema = json.RawMessage(`{"type":"object"}`)

	req := &ChatRequest{Messages: []Message{
		{Role: RoleSystem, Content: `{"topic":"x"}`},
		{Role: RoleUser, Content: "hi"},
	}}

	out, err := m.Materialize(p, req)
	require.NoError(t, err)
	require.NotNil(t, out.ResponseFormat)
	assert.Equal(t, "json_schema", out.ResponseFormat.Type)
	assert.Contains(t, out.Messages[0].Content, "Please respond in adherence to the following JSON Schema")
}

func TestMaterialize_CapabilityGating_JSONModeSchemaUnsupported(t *testing.T) {
	m := NewMaterializer()
	p := basePromptVersion()
	p.JSONMode = true
	p.SupportsJSON = true
	p.SupportsJSONSch = false
	p.JSONSchema = json.RawMessage(`{"type":"object"}`)

	req := &ChatRequest{Messages: []Message{{Role: RoleUser, Content: "hi"}}}

	out, err := m.Materialize(p, req)
	require.NoError(t, err)
	require.NotNil(t, out.ResponseFormat)
	assert.Equal(t, "json_object", out.ResponseFormat.Type)
}

func TestMaterialize_ModelMaxTokensTemperatureOverridePrecedence(t *testing.T) {
	m := NewMaterializer()
	p := basePromptVersion()
	p.Model = "forced-model"
	p.MaxTokens = 42
	p.Temperature = 0.1

	callerMax := 9999
	callerTemp := 0.9

	req := &ChatRequest{
		Messages:    []Message{{Role: RoleUser, Content: "hi"}},
		MaxTokens:   &callerMax,
		Temperature: &callerTemp,
	}

	out, err := m.Materialize(p, req)
	require.NoError(t, err)
	assert.Equal(t, "forced-model", out.Model)
	assert.Equal(t, 42, *out.MaxTokens)
	assert.Equal(t, 0.1, *out.Temperature)
}
