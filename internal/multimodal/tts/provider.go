// Package tts wraps text-to-speech backends used to voice interview questions.
package tts

import (
	"context"
	"fmt"

	"github.com/nikhilbhutani/visaprep/internal/config"
)

// SynthesisRequest holds the parameters for text-to-speech generation.
type SynthesisRequest struct {
	Input string  `json:"input"`
	Voice string  `json:"voice,omitempty"`
	Speed float64 `json:"speed,omitempty"`
}

// SynthesisResult holds the generated audio and its content type.
type SynthesisResult struct {
	Audio       []byte
	ContentType string
}

// TTSProvider is the interface for text-to-speech backends.
type TTSProvider interface {
	Synthesize(ctx context.Context, req SynthesisRequest) (*SynthesisResult, error)
	Name() string
}

// FromConfig returns the configured backend, or nil when speech is disabled.
func FromConfig(cfg config.TTSConfig) (TTSProvider, error) {
	switch cfg.Backend {
	case "":
		return nil, nil
	case "openai":
		return NewOpenAITTS(OpenAITTSConfig{
			APIKey:  cfg.OpenAIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
			Voice:   cfg.Voice,
		}), nil
	default:
		return nil, fmt.Errorf("unknown TTS backend %q", cfg.Backend)
	}
}
