package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/nikhilbhutani/visaprep/internal/config"
)

var ErrNoProvider = errors.New("no llm provider configured")

type gateway struct {
	providers        map[string]Provider
	defaultProvider  string
	defaultModel     string
	fallbackProvider string
	maxRetries       int
	backoffBase      time.Duration
	sampling         Sampling
}

// Options configures a gateway independent of environment config.
type Options struct {
	DefaultProvider  string
	DefaultModel     string
	FallbackProvider string
	MaxRetries       int
	BackoffBase      time.Duration
	Sampling         Sampling
}

// New builds a gateway over the given providers.
func New(opts Options, providers ...Provider) Gateway {
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = 500 * time.Millisecond
	}
	if opts.Sampling == (Sampling{}) {
		opts.Sampling = DefaultSampling
	}
	g := &gateway{
		providers:        make(map[string]Provider),
		defaultProvider:  opts.DefaultProvider,
		defaultModel:     opts.DefaultModel,
		fallbackProvider: opts.FallbackProvider,
		maxRetries:       opts.MaxRetries,
		backoffBase:      opts.BackoffBase,
		sampling:         opts.Sampling,
	}
	for _, p := range providers {
		if p != nil {
			g.providers[p.Name()] = p
		}
	}
	return g
}

// NewGateway registers the OpenAI and Anthropic providers whose keys are set,
// plus any extra providers (e.g. Bedrock, which needs AWS credentials loaded
// by the caller).
func NewGateway(cfg config.LLMConfig, extra ...Provider) Gateway {
	var providers []Provider
	if cfg.OpenAIKey != "" {
		providers = append(providers, NewOpenAIProviderWithBaseURL(cfg.OpenAIKey, cfg.OpenAIBaseURL))
	}
	if cfg.AnthropicKey != "" {
		providers = append(providers, NewAnthropicProvider(cfg.AnthropicKey))
	}
	providers = append(providers, extra...)

	return New(Options{
		DefaultProvider:  cfg.DefaultProvider,
		DefaultModel:     cfg.DefaultModel,
		FallbackProvider: cfg.FallbackProvider,
		MaxRetries:       cfg.MaxRetries,
	}, providers...)
}

func (g *gateway) Provider(name string) (Provider, error) {
	p, ok := g.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoProvider, name)
	}
	return p, nil
}

func (g *gateway) Generate(ctx context.Context, prompt string) (*Completion, error) {
	return g.Complete(ctx, CompletionRequest{
		Messages:    UserPrompt(prompt),
		MaxTokens:   g.sampling.MaxTokens,
		Temperature: g.sampling.Temperature,
		TopP:        g.sampling.TopP,
	})
}

func (g *gateway) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	providerName := req.Provider
	if providerName == "" {
		providerName = g.defaultProvider
	}

	resp, err := g.completeWithRetry(ctx, providerName, req)
	if err != nil && g.fallbackProvider != "" && g.fallbackProvider != providerName {
		slog.Warn("primary provider failed, trying fallback",
			"primary", providerName,
			"fallback", g.fallbackProvider,
			"error", err,
		)
		fallbackReq := req
		fallbackReq.Model = ""
		return g.completeWithRetry(ctx, g.fallbackProvider, fallbackReq)
	}
	return resp, err
}

func (g *gateway) completeWithRetry(ctx context.Context, providerName string, req CompletionRequest) (*Completion, error) {
	p, err := g.Provider(providerName)
	if err != nil {
		return nil, err
	}

	if req.Model == "" {
		req.Model = g.modelFor(p)
	}

	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt*attempt) * g.backoffBase
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			slog.Debug("retrying LLM call", "provider", providerName, "attempt", attempt)
		}

		resp, err := p.Complete(ctx, req)
		if err == nil {
			logUsage(UsageRecord{
				Provider:     resp.Provider,
				Model:        resp.Model,
				InputTokens:  resp.InputTokens,
				OutputTokens: resp.OutputTokens,
				CostUSD:      resp.CostUSD,
				LatencyMs:    resp.LatencyMs,
				Timestamp:    time.Now(),
			})
			return resp, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("all retries exhausted for %s: %w", providerName, lastErr)
}

func (g *gateway) modelFor(p Provider) string {
	if p.Name() == g.defaultProvider && g.defaultModel != "" {
		return g.defaultModel
	}
	if models := p.Models(); len(models) > 0 {
		return models[0]
	}
	return ""
}

func (g *gateway) ListModels() []ModelInfo {
	var models []ModelInfo
	for _, p := range g.providers {
		for _, m := range p.Models() {
			models = append(models, ModelInfo{Provider: p.Name(), Model: m})
		}
	}
	sort.Slice(models, func(i, j int) bool {
		if models[i].Provider != models[j].Provider {
			return models[i].Provider < models[j].Provider
		}
		return models[i].Model < models[j].Model
	})
	return models
}

func logUsage(u UsageRecord) {
	slog.Info("llm completion",
		"provider", u.Provider,
		"model", u.Model,
		"input_tokens", u.InputTokens,
		"output_tokens", u.OutputTokens,
		"cost_usd", u.CostUSD,
		"latency_ms", u.LatencyMs,
	)
}
