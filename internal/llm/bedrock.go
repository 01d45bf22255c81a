package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

// modelInvoker is the subset of the Bedrock runtime client used here.
type modelInvoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockProvider calls AI21 Jurassic-2 models hosted on AWS Bedrock.
type BedrockProvider struct {
	client modelInvoker
	model  string
}

func NewBedrockProvider(cfg aws.Config, model string) *BedrockProvider {
	return newBedrockProvider(bedrockruntime.NewFromConfig(cfg), model)
}

func newBedrockProvider(client modelInvoker, model string) *BedrockProvider {
	if model == "" {
		model = "ai21.j2-ultra-v1"
	}
	return &BedrockProvider{client: client, model: model}
}

func (p *BedrockProvider) Name() string { return "bedrock" }

func (p *BedrockProvider) Models() []string {
	if p.model == "ai21.j2-ultra-v1" {
		return []string{"ai21.j2-ultra-v1", "ai21.j2-mid-v1"}
	}
	return []string{p.model, "ai21.j2-ultra-v1", "ai21.j2-mid-v1"}
}

type penalty struct {
	Scale float64 `json:"scale"`
}

type jurassicRequest struct {
	Prompt           string   `json:"prompt"`
	MaxTokens        int      `json:"maxTokens"`
	Temperature      float64  `json:"temperature"`
	TopP             float64  `json:"topP"`
	StopSequences    []string `json:"stopSequences"`
	CountPenalty     penalty  `json:"countPenalty"`
	PresencePenalty  penalty  `json:"presencePenalty"`
	FrequencyPenalty penalty  `json:"frequencyPenalty"`
}

type jurassicResponse struct {
	ID     json.RawMessage `json:"id"`
	Prompt struct {
		Tokens []json.RawMessage `json:"tokens"`
	} `json:"prompt"`
	Completions []struct {
		Data struct {
			Text   string            `json:"text"`
			Tokens []json.RawMessage `json:"tokens"`
		} `json:"data"`
	} `json:"completions"`
}

func (p *BedrockProvider) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = p.model
	}

	stop := req.Stop
	if stop == nil {
		stop = []string{}
	}
	body, err := json.Marshal(jurassicRequest{
		Prompt:        flattenMessages(req.Messages),
		MaxTokens:     orInt(req.MaxTokens, DefaultSampling.MaxTokens),
		Temperature:   orFloat(req.Temperature, DefaultSampling.Temperature),
		TopP:          orFloat(req.TopP, DefaultSampling.TopP),
		StopSequences: stop,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal bedrock request: %w", err)
	}

	out, err := p.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(model),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return nil, fmt.Errorf("bedrock invoke %s: %w", model, err)
	}

	text, in, outTokens := parseJurassic(out.Body)

	return &Completion{
		Provider:     "bedrock",
		Model:        model,
		Text:         text,
		Raw:          string(out.Body),
		InputTokens:  in,
		OutputTokens: outTokens,
		TotalTokens:  in + outTokens,
		CostUSD:      CalculateCost(model, in, outTokens),
		LatencyMs:    time.Since(start).Milliseconds(),
	}, nil
}

// parseJurassic extracts the first completion. Bodies that do not match the
// Jurassic envelope are returned verbatim as the text.
func parseJurassic(body []byte) (text string, inputTokens, outputTokens int) {
	var resp jurassicResponse
	if err := json.Unmarshal(body, &resp); err != nil || len(resp.Completions) == 0 {
		return strings.TrimSpace(string(body)), 0, 0
	}
	c := resp.Completions[0]
	return strings.TrimSpace(c.Data.Text), len(resp.Prompt.Tokens), len(c.Data.Tokens)
}

func flattenMessages(msgs []Message) string {
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m.Content != "" {
			parts = append(parts, m.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}

func orInt(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

func orFloat(v, fallback float64) float64 {
	if v > 0 {
		return v
	}
	return fallback
}
