package config

import (
	"fmt"
	"net/url"
	"strings"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate LLM config
	switch c.LLM.Provider {
	case "ollama", "openai", "gemini":
	default:
		errors = append(errors, ValidationError{
			Field:   "llm.provider",
			Message: fmt.Sprintf("unsupported provider: %q", c.LLM.Provider),
		})
	}

	if c.LLM.Provider == "ollama" && c.LLM.BaseURL == "" {
		errors = append(errors, ValidationError{
			Field:   "llm.base_url",
			Message: "Ollama base URL is required",
		})
	}

	if c.LLM.BaseURL != "" {
		if u, err := url.Parse(c.LLM.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errors = append(errors, ValidationError{
				Field:   "llm.base_url",
				Message: "invalid base URL",
			})
		}
	}

	if (c.LLM.Provider == "openai" || c.LLM.Provider == "gemini") && c.LLM.APIKey == "" {
		errors = append(errors, ValidationError{
			Field:   "llm.api_key",
			Message: fmt.Sprintf("api key is required for provider %s", c.LLM.Provider),
		})
	}

	if c.LLM.MaxTokens < 1 || c.LLM.MaxTokens > 8192 {
		errors = append(errors, ValidationError{
			Field:   "llm.max_tokens",
			Message: "max_tokens must be between 1 and 8192",
		})
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "llm.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	if c.LLM.Timeout <= 0 {
		errors = append(errors, ValidationError{
			Field:   "llm.timeout",
			Message: "timeout must be positive",
		})
	}

	// Validate Chunker config
	if c.Chunker.ChunkSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "chunker.chunk_size",
			Message: "chunk_size must be positive",
		})
	}

	// Validate Summarizer config
	if c.Summarizer.Workers < 1 {
		errors = append(errors, ValidationError{
			Field:   "summarizer.workers",
			Message: "workers must be positive",
		})
	}

	templates := []struct{ field, tmpl string }{
		{"summarizer.segment_template", c.Summarizer.SegmentTemplate},
		{"summarizer.reduce_template", c.Summarizer.ReduceTemplate},
	}
	for _, t := range templates {
		if !strings.Contains(t.tmpl, "{text}") {
			errors = append(errors, ValidationError{
				Field:   t.field,
				Message: "template must contain the {text} placeholder",
			})
		}
	}

	if c.Summarizer.SegmentTemplate == c.Summarizer.ReduceTemplate && c.Summarizer.SegmentTemplate != "" {
		errors = append(errors, ValidationError{
			Field:   "summarizer.reduce_template",
			Message: "reduce template must differ from the segment template",
		})
	}

	// Validate Source config
	if c.Source.MaxDuration <= 0 {
		errors = append(errors, ValidationError{
			Field:   "source.max_duration",
			Message: "max_duration must be positive",
		})
	}

	if c.Source.RateLimit <= 0 {
		errors = append(errors, ValidationError{
			Field:   "source.rate_limit",
			Message: "rate_limit must be positive",
		})
	}

	if c.Source.MaxFeedItems < 1 {
		errors = append(errors, ValidationError{
			Field:   "source.max_feed_items",
			Message: "max_feed_items must be positive",
		})
	}

	return errors
}
