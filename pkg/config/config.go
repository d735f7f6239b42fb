package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultSegmentTemplate = `
Please provide a detailed and comprehensive summary of the following content in 800-1000 words.
Include:
1. Main points and key ideas
2. Important details and examples
3. Technical concepts (if any)
4. Key conclusions or takeaways
5. Supporting arguments or evidence

Do not add information that is not present in the original text.
If the content is technical, maintain the technical accuracy. If it's a conversation, preserve the main discussion points.

Content: {text}
`

const DefaultReduceTemplate = `Create a coherent and concise final summary of the following content in {words} words.
Combine the key points and main ideas from all sections into one narrative.
The sections below are summaries of consecutive parts of the same source, in order.
Content: {text}
`

type LLMConfig struct {
	Provider    string        `yaml:"provider"`
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

type ChunkerConfig struct {
	ChunkSize int `yaml:"chunk_size"`
}

type SummarizerConfig struct {
	Workers         int    `yaml:"workers"`
	SegmentTemplate string `yaml:"segment_template"`
	ReduceTemplate  string `yaml:"reduce_template"`
	ReduceWords     int    `yaml:"reduce_words"`
}

type SourceConfig struct {
	MaxDuration  time.Duration `yaml:"max_duration"`
	Languages    []string      `yaml:"languages"`
	UserAgent    string        `yaml:"user_agent"`
	Timeout      time.Duration `yaml:"timeout"`
	RateLimit    float64       `yaml:"rate_limit"`
	MaxFeedItems int           `yaml:"max_feed_items"`
}

type ExportConfig struct {
	OutputDir string `yaml:"output_dir"`
	Title     string `yaml:"title"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type Config struct {
	LLM        LLMConfig        `yaml:"llm"`
	Chunker    ChunkerConfig    `yaml:"chunker"`
	Summarizer SummarizerConfig `yaml:"summarizer"`
	Source     SourceConfig     `yaml:"source"`
	Export     ExportConfig     `yaml:"export"`
	Server     ServerConfig     `yaml:"server"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/digest/config.yaml"),
			"/etc/digest/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	mergeWithEnv(&config)
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	mergeWithEnv(config)
	applyDefaults(config)
	return config, nil
}

// Default returns a fully defaulted config without reading files or env.
func Default() *Config {
	config := &Config{}
	applyDefaults(config)
	return config
}

func applyDefaults(config *Config) {
	if config.LLM.Provider == "" {
		config.LLM.Provider = "ollama"
	}
	if config.LLM.Model == "" {
		switch config.LLM.Provider {
		case "openai":
			config.LLM.Model = "gemma2-9b-it"
		case "gemini":
			config.LLM.Model = "gemini-2.0-flash"
		default:
			config.LLM.Model = "mistral"
		}
	}
	if config.LLM.BaseURL == "" {
		switch config.LLM.Provider {
		case "openai":
			config.LLM.BaseURL = "https://api.groq.com/openai/v1"
		case "ollama":
			config.LLM.BaseURL = "http://localhost:11434"
		}
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 2000
	}
	if config.LLM.Temperature == 0 {
		config.LLM.Temperature = 0.7
	}
	if config.LLM.Timeout == 0 {
		config.LLM.Timeout = 2 * time.Minute
	}

	if config.Chunker.ChunkSize == 0 {
		config.Chunker.ChunkSize = 4000
	}

	if config.Summarizer.Workers == 0 {
		config.Summarizer.Workers = 1
	}
	if config.Summarizer.SegmentTemplate == "" {
		config.Summarizer.SegmentTemplate = DefaultSegmentTemplate
	}
	if config.Summarizer.ReduceTemplate == "" {
		config.Summarizer.ReduceTemplate = DefaultReduceTemplate
	}
	if config.Summarizer.ReduceWords == 0 {
		config.Summarizer.ReduceWords = 300
	}

	if config.Source.MaxDuration == 0 {
		config.Source.MaxDuration = 30 * time.Minute
	}
	if len(config.Source.Languages) == 0 {
		config.Source.Languages = []string{"en"}
	}
	if config.Source.UserAgent == "" {
		config.Source.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	}
	if config.Source.Timeout == 0 {
		config.Source.Timeout = 30 * time.Second
	}
	if config.Source.RateLimit == 0 {
		config.Source.RateLimit = 2.0
	}
	if config.Source.MaxFeedItems == 0 {
		config.Source.MaxFeedItems = 5
	}

	if config.Export.OutputDir == "" {
		config.Export.OutputDir = "."
	}
	if config.Export.Title == "" {
		config.Export.Title = "Detailed Content Summary"
	}

	if config.Server.Addr == "" {
		config.Server.Addr = ":8080"
	}
}

// SetProvider switches the LLM provider. Provider specific settings are
// dropped and derived again from the environment and defaults.
func (c *Config) SetProvider(provider string) {
	c.LLM.Provider = provider
	c.LLM.Model = ""
	c.LLM.BaseURL = ""
	c.LLM.APIKey = ""
	mergeProviderEnv(c)
	applyDefaults(c)
}

func mergeWithEnv(config *Config) {
	if provider := os.Getenv("DIGEST_LLM_PROVIDER"); provider != "" {
		config.LLM.Provider = provider
	}
	mergeProviderEnv(config)
}

func mergeProviderEnv(config *Config) {
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" && (config.LLM.Provider == "" || config.LLM.Provider == "ollama") {
		config.LLM.BaseURL = baseURL
	}
	if config.LLM.APIKey != "" {
		return
	}
	switch config.LLM.Provider {
	case "openai":
		if key := os.Getenv("GROQ_API_KEY"); key != "" {
			config.LLM.APIKey = key
		} else if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			config.LLM.APIKey = key
		}
	case "gemini":
		config.LLM.APIKey = os.Getenv("GEMINI_API_KEY")
	}
}
