package gateway

import "encoding/json"

// ProviderKind is the closed set of upstream API families this gateway
// speaks. New kinds are added here and in providers/, never discovered at
// runtime (§9 design note: closed sum type, not trait-object dispatch).
type ProviderKind string

const (
	KindOpenAI     ProviderKind = "openai"
	KindAzure      ProviderKind = "azure"
	KindOpenRouter ProviderKind = "openrouter"
)

// Role is a chat message's role.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is one function call an assistant message issued.
type ToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

// Message is one entry in a ChatRequest's message list.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	Name       string     `json:"name,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}

// Tool is a caller-supplied function tool definition, passed through
// verbatim unless capability gating strips it.
type Tool struct {
	Type     string          `json:"type"`
	Function json.RawMessage `json:"function"`
}

// ResponseFormat controls structured-output mode.
type ResponseFormat struct {
	Type       string          `json:"type"` // "json_object" or "json_schema"
	JSONSchema json.RawMessage `json:"json_schema,omitempty"`
}

// ChatRequest is the caller-visible request shape (§3).
type ChatRequest struct {
	Messages        []Message       `json:"messages"`
	Stream          bool            `json:"stream,omitempty"`
	ResponseFormat  *ResponseFormat `json:"response_format,omitempty"`
	Tools           []Tool          `json:"tools,omitempty"`
	MaxTokens       *int            `json:"max_tokens,omitempty"`
	Temperature     *float64        `json:"temperature,omitempty"`
	ReasoningEffort string          `json:"reasoning_effort,omitempty"`
}

// PromptType controls how the Prompt Materializer treats the user template.
type PromptType string

const (
	PromptTypeStatic        PromptType = "static"
	PromptTypeDynamicSystem PromptType = "dynamic_system"
	PromptTypeDynamicBoth   PromptType = "dynamic_both"
)

// PromptVersion is an immutable, versioned prompt snapshot (§3).
type PromptVersion struct {
	ID              string
	PromptID        string
	Version         int
	SystemTemplate  string
	UserTemplate    string
	Model           string
	ProviderKind    ProviderKind
	BaseURL         string
	SupportsJSON    bool
	SupportsJSONSch bool
	SupportsTools   bool
	IsReasoning     bool
	MaxTokens       int
	Temperature     float64
	JSONMode        bool
	JSONSchema      json.RawMessage
	PromptType      PromptType
	IsChat          bool
}

// MaterializedRequest is C2's output and C3's input (§3).
type MaterializedRequest struct {
	PromptID       string
	Messages       []Message
	Model          string
	ProviderKind   ProviderKind
	BaseURL        string
	MaxTokens      *int
	Temperature    *float64
	ResponseFormat *ResponseFormat
	Tools          []Tool
	ReasoningEffort string
	FallbackPolicy *FallbackPolicy
}

// Clone returns a deep-enough copy for the executor to mutate safely when
// constructing a fallback attempt (messages/tools slices are reused since
// they are never mutated in place, only replaced wholesale).
func (m *MaterializedRequest) Clone() *MaterializedRequest {
	clone := *m
	return &clone
}

// FallbackTarget is one entry in a FallbackPolicy's ordered target list (§3).
type FallbackTarget struct {
	ProviderKind ProviderKind
	Model        string
	BaseURL      string
	MaxTokens    *int
	Temperature  *float64
	Catch        map[Class]struct{}
}

func (t FallbackTarget) Catches(class Class) bool {
	if _, ok := t.Catch[ClassAll]; ok {
		return true
	}

	_, ok := t.Catch[class]

	return ok
}

// FallbackPolicy is a property of the caller's request (§3).
type FallbackPolicy struct {
	Enabled         bool
	Targets         []FallbackTarget
	RetriesPerTarget int
}

// Usage carries token accounting.
type Usage struct {
	PromptTokens     int  `json:"prompt_tokens"`
	CompletionTokens int  `json:"completion_tokens"`
	TotalTokens      int  `json:"total_tokens"`
	ReasoningTokens  *int `json:"reasoning_tokens,omitempty"`
}

// Choice is one completion choice.
type Choice struct {
	Index              int     `json:"index"`
	Message            Message `json:"message"`
	FinishReason       string  `json:"finish_reason"`
	NativeFinishReason string  `json:"native_finish_reason,omitempty"`
}

// UnifiedResponse is the OpenAI-compatible unary response shape (§6).
type UnifiedResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}

// ChunkChoice is one streaming choice delta.
type ChunkChoice struct {
	Index              int     `json:"index"`
	Delta              Message `json:"delta"`
	FinishReason       *string `json:"finish_reason"`
	NativeFinishReason string  `json:"native_finish_reason,omitempty"`
}

// UnifiedChunk is the OpenAI-compatible streaming chunk shape (§6).
type UnifiedChunk struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Choices []ChunkChoice `json:"choices"`
	Usage   *Usage        `json:"usage,omitempty"`
}

// DoneSentinel builds the terminal chunk required by P7: content "[DONE]",
// finish_reason "stop", as the last item delivered to the sink.
func DoneSentinel(id, model string, created int64) *UnifiedChunk {
	stop := "stop"

	return &UnifiedChunk{
		ID:      id,
		Object:  "chat.completion.chunk",
		Created: created,
		Model:   model,
		Choices: []ChunkChoice{{
			Index:        0,
			Delta:        Message{Role: RoleAssistant, Content: "[DONE]"},
			FinishReason: &stop,
		}},
	}
}

// IsDoneSentinel reports whether chunk is the terminal sentinel.
func IsDoneSentinel(chunk *UnifiedChunk) bool {
	if chunk == nil || len(chunk.Choices) == 0 {
		return false
	}

	c := chunk.Choices[0]

	return c.Delta.Content == "[DONE]" && c.FinishReason != nil && *c.FinishReason == "stop"
}

// TraceRecord is one per provider attempt (§3/§4.4).
type TraceRecord struct {
	LogID              string
	PromptID           string
	ModelID            string
	Status             int
	InputTokens        *int
	OutputTokens       *int
	ReasoningTokens    *int
	RequestBody        json.RawMessage
	RawResponse        json.RawMessage
	UpstreamResponseID string
}

// EvalInput is bound to a prompt id (§3).
type EvalInput struct {
	ID            string
	PromptID      string
	Name          string
	SystemContext json.RawMessage
	UserContent   string
}

// EvalRun is one (EvalInput, PromptVersion) result row within a run (§3).
type EvalRun struct {
	RunID           string
	PromptVersionID string
	EvalID          string
	Output          string
	Score           *int
}

// EvalPerformance aggregates scores for a prompt across its eval runs.
type EvalPerformance struct {
	PromptID        string
	AverageScore    float64
	ScoredRunCount  int
	TotalRunCount   int
}
