package llm

import (
	"context"
	"time"
)

// Provider abstracts a text-generation backend (OpenAI, Anthropic, Bedrock).
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
	Name() string
	// Models lists supported models; the first entry is the provider default.
	Models() []string
}

// Gateway routes completions to a provider with retry and fallback.
type Gateway interface {
	// Generate sends a single user prompt with the gateway's default sampling.
	Generate(ctx context.Context, prompt string) (*Completion, error)
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
	Provider(name string) (Provider, error)
	ListModels() []ModelInfo
}

// Message represents a single chat message.
type Message struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// CompletionRequest is the input for a completion.
type CompletionRequest struct {
	Provider    string    `json:"provider,omitempty"`
	Model       string    `json:"model,omitempty"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	TopP        float64   `json:"top_p,omitempty"`
	Stop        []string  `json:"stop,omitempty"`
}

// Completion is the output of a completion. Raw holds the provider's
// response envelope as returned on the wire.
type Completion struct {
	ID           string  `json:"id,omitempty"`
	Provider     string  `json:"provider"`
	Model        string  `json:"model"`
	Text         string  `json:"text"`
	Raw          string  `json:"-"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalTokens  int     `json:"total_tokens"`
	CostUSD      float64 `json:"cost_usd"`
	LatencyMs    int64   `json:"latency_ms"`
}

// ModelInfo describes an available model.
type ModelInfo struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// UsageRecord is logged for every completed call.
type UsageRecord struct {
	Provider     string
	Model        string
	InputTokens  int
	OutputTokens int
	CostUSD      float64
	LatencyMs    int64
	Timestamp    time.Time
}

// Sampling holds the defaults applied by Gateway.Generate.
type Sampling struct {
	MaxTokens   int
	Temperature float64
	TopP        float64
}

// DefaultSampling matches the interview prompts: short, fairly creative replies.
var DefaultSampling = Sampling{MaxTokens: 400, Temperature: 0.9, TopP: 0.9}

// UserPrompt wraps a single prompt as a user message.
func UserPrompt(prompt string) []Message {
	return []Message{{Role: "user", Content: prompt}}
}
