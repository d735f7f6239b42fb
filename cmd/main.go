package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/fatih/color"
	cfgPkg "github.com/xhad/digest/pkg/config"
)

type Config struct {
	URL       string
	OutputDir string
	Serve     string
	App       *cfgPkg.Config
}

func main() {
	config, err := parseFlags()
	if err != nil {
		log.Fatal(err)
	}

	if err := run(config); err != nil {
		if msg := failureMessage(err); msg != "" {
			color.Red("\n%s", msg)
		}
		os.Exit(1)
	}
}

// shownError marks a failure the user has already been told about.
type shownError struct {
	err error
}

func (e *shownError) Error() string { return e.err.Error() }

func (e *shownError) Unwrap() error { return e.err }

// failureMessage returns what main should still print for err, or "" when
// the failure was already reported.
func failureMessage(err error) string {
	var shown *shownError
	if errors.As(err, &shown) {
		return ""
	}
	return err.Error()
}

func parseFlags() (Config, error) {
	var config Config
	var (
		configPath string
		provider   string
		model      string
		chunkSize  int
		workers    int
	)

	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.StringVar(&config.URL, "url", "", "YouTube or website URL to summarize")
	flag.StringVar(&config.OutputDir, "out", "", "Directory for the text and PDF summaries")
	flag.StringVar(&config.Serve, "serve", "", "Serve the websocket API on this address instead")
	flag.StringVar(&provider, "provider", "", "LLM provider (ollama, openai, gemini)")
	flag.StringVar(&model, "model", "", "LLM model to use")
	flag.IntVar(&chunkSize, "chunk-size", 0, "Maximum characters per segment")
	flag.IntVar(&workers, "workers", 0, "Concurrent segment summaries")
	flag.Parse()

	cfg, err := cfgPkg.LoadConfig(configPath)
	if err != nil {
		return config, err
	}

	// Command line flags win over the config file
	if provider != "" && provider != cfg.LLM.Provider {
		cfg.SetProvider(provider)
	}
	if model != "" {
		cfg.LLM.Model = model
	}
	if chunkSize > 0 {
		cfg.Chunker.ChunkSize = chunkSize
	}
	if workers > 0 {
		cfg.Summarizer.Workers = workers
	}
	if config.OutputDir == "" {
		config.OutputDir = cfg.Export.OutputDir
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			color.Red("config: %s", e.Error())
		}
		return config, fmt.Errorf("invalid configuration")
	}

	config.App = cfg
	return config, nil
}
