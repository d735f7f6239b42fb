package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/prompts"
)

// EngineConfig represents the configuration for a completion engine.
type EngineConfig struct {
	Provider    string // ollama, openai or gemini
	Model       string
	Temperature float64
	MaxTokens   int
	BaseURL     string
	APIKey      string
	Timeout     time.Duration // per call
}

// Engine renders a single-variable prompt template and sends it to an LLM.
type Engine struct {
	config EngineConfig
	llm    llms.Model
}

// NewWithConfig creates a new Engine with the given configuration.
func NewWithConfig(config EngineConfig) (*Engine, error) {
	if config.Provider == "" {
		config.Provider = "ollama"
	}
	if config.Temperature < 0 || config.Temperature > 2 {
		return nil, fmt.Errorf("temperature must be between 0 and 2")
	}
	if config.MaxTokens < 0 {
		return nil, fmt.Errorf("max tokens cannot be negative")
	} else if config.MaxTokens == 0 {
		config.MaxTokens = 2000
	}
	if config.Timeout == 0 {
		config.Timeout = 2 * time.Minute
	}

	var (
		model llms.Model
		err   error
	)
	switch config.Provider {
	case "ollama":
		if config.Model == "" {
			config.Model = "mistral"
		}
		if config.BaseURL == "" {
			config.BaseURL = "http://localhost:11434"
		}
		model, err = ollama.New(ollama.WithModel(config.Model),
			ollama.WithServerURL(config.BaseURL))
	case "openai":
		opts := []openai.Option{
			openai.WithModel(config.Model),
			openai.WithToken(config.APIKey),
		}
		if config.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(config.BaseURL))
		}
		model, err = openai.New(opts...)
	case "gemini":
		model, err = NewGemini(context.Background(), config.APIKey, config.Model)
	default:
		return nil, fmt.Errorf("unsupported provider: %q", config.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}

	return NewWithModel(config, model), nil
}

// NewWithModel wraps an already constructed model.
func NewWithModel(config EngineConfig, model llms.Model) *Engine {
	if config.MaxTokens == 0 {
		config.MaxTokens = 2000
	}
	if config.Timeout == 0 {
		config.Timeout = 2 * time.Minute
	}
	return &Engine{
		config: config,
		llm:    model,
	}
}

// Render substitutes text into an f-string template with a single {text}
// variable.
func Render(template string, text string) (string, error) {
	tmpl := prompts.PromptTemplate{
		Template:       template,
		TemplateFormat: prompts.TemplateFormatFString,
		InputVariables: []string{"text"},
	}
	prompt, err := tmpl.Format(map[string]any{"text": text})
	if err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}
	return prompt, nil
}

// Complete renders template with text and returns the model's answer. The
// call is bounded by the configured timeout.
func (e *Engine) Complete(ctx context.Context, template string, text string) (string, error) {
	prompt, err := Render(template, text)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	answer, err := llms.GenerateFromSinglePrompt(ctx, e.llm, prompt,
		llms.WithTemperature(e.config.Temperature),
		llms.WithMaxTokens(e.config.MaxTokens),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("completion error: %w", ctxErr)
		}
		return "", fmt.Errorf("completion error: %w", err)
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", fmt.Errorf("completion error: empty response from %s", e.config.Provider)
	}
	return answer, nil
}
