package types

// Role identifies the author of a chat message.
type Role string

// Message is a single chat message exchanged with a language model.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Response is a language model completion.
type Response struct {
	Content      string      `json:"content"`
	FinishReason string      `json:"finish_reason,omitempty"`
	Model        string      `json:"model,omitempty"`
	TokensUsed   *TokenUsage `json:"tokens_used,omitempty"`
}

// ContextKey is the type for values carried through request contexts.
type ContextKey string

// ContextKeyComponent labels which collaborator issued an LLM call
// (classifier or reranker) for usage accounting.
const ContextKeyComponent ContextKey = "component"

// Context keys carried through search and graph requests.
const (
	ContextKeyTenantID      ContextKey = "tenant_id"
	ContextKeyProjectID     ContextKey = "project_id"
	ContextKeyRequestSource ContextKey = "request_source"
)

// TokenUsage reports token consumption for a completion.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
