// Package pipeline wires fetching, chunking, both summarization passes and
// the final summary together for one URL at a time.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/xhad/digest/internal/models"
	"github.com/xhad/digest/internal/types"
	"github.com/xhad/digest/pkg/chunker"
	"github.com/xhad/digest/pkg/config"
	"github.com/xhad/digest/pkg/llm"
	"github.com/xhad/digest/pkg/scraper"
	"github.com/xhad/digest/pkg/source"
	"github.com/xhad/digest/pkg/summarizer"
	"github.com/xhad/digest/pkg/youtube"
)

type Stage string

const (
	StageFetch     Stage = "fetching"
	StageChunk     Stage = "chunking"
	StageSummarize Stage = "summarizing"
	StageReduce    Stage = "reducing"
	StageDone      Stage = "done"
)

// Progress is reported while a run advances. Done and Total count segments
// during StageSummarize and are zero otherwise.
type Progress struct {
	Stage   Stage
	Message string
	Done    int
	Total   int
}

type PipelineConfig struct {
	ChunkSize       int
	Workers         int
	SegmentTemplate string
	ReduceTemplate  string
	ReduceWords     int
	Now             func() time.Time
}

type Pipeline struct {
	config  PipelineConfig
	fetcher types.Fetcher
	llm     types.Completer
}

func NewWithConfig(conf PipelineConfig, fetcher types.Fetcher, completer types.Completer) *Pipeline {
	if conf.SegmentTemplate == "" {
		conf.SegmentTemplate = config.DefaultSegmentTemplate
	}
	if conf.ReduceTemplate == "" {
		conf.ReduceTemplate = config.DefaultReduceTemplate
	}
	if conf.Now == nil {
		conf.Now = time.Now
	}
	return &Pipeline{
		config:  conf,
		fetcher: fetcher,
		llm:     completer,
	}
}

// NewFromConfig builds the source normalizer and the LLM engine described by
// cfg and returns a pipeline using them.
func NewFromConfig(cfg *config.Config) (*Pipeline, error) {
	engine, err := llm.NewWithConfig(llm.EngineConfig{
		Provider:    cfg.LLM.Provider,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Timeout:     cfg.LLM.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM engine: %w", err)
	}

	normalizer := source.NewWithConfig(source.NormalizerConfig{
		MaxDuration: cfg.Source.MaxDuration,
		YouTube: youtube.ClientConfig{
			Languages: cfg.Source.Languages,
			UserAgent: cfg.Source.UserAgent,
			Timeout:   cfg.Source.Timeout,
		},
		Scraper: scraper.ScraperConfig{
			RateLimit:    cfg.Source.RateLimit,
			Timeout:      cfg.Source.Timeout,
			UserAgent:    cfg.Source.UserAgent,
			MaxFeedItems: cfg.Source.MaxFeedItems,
		},
	})

	return NewWithConfig(PipelineConfig{
		ChunkSize:       cfg.Chunker.ChunkSize,
		Workers:         cfg.Summarizer.Workers,
		SegmentTemplate: cfg.Summarizer.SegmentTemplate,
		ReduceTemplate:  cfg.Summarizer.ReduceTemplate,
		ReduceWords:     cfg.Summarizer.ReduceWords,
	}, normalizer, engine), nil
}

// run holds everything one request accumulates. Nothing outlives it.
type run struct {
	url        string
	onProgress func(Progress)

	mu        sync.Mutex
	done      int
	total     int
	oversized int
}

func (r *run) report(p Progress) {
	if r.onProgress == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onProgress(p)
}

// segmentDone runs on summarizer goroutines.
func (r *run) segmentDone(summary models.SegmentSummary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.done++
	if r.onProgress != nil {
		r.onProgress(Progress{
			Stage:   StageSummarize,
			Done:    r.done,
			Total:   r.total,
			Message: fmt.Sprintf("Summarized segment %d", summary.Order+1),
		})
	}
}

// Run produces the final summary for rawURL. onProgress may be nil. The run
// stops at the first failure and returns it unchanged, so types.KindOf works
// on the result.
func (p *Pipeline) Run(ctx context.Context, rawURL string, onProgress func(Progress)) (models.FinalSummary, error) {
	rawURL = strings.TrimSpace(rawURL)
	r := &run{url: rawURL, onProgress: onProgress}

	r.report(Progress{Stage: StageFetch, Message: "Fetching content..."})
	docs, err := p.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return models.FinalSummary{}, err
	}

	r.report(Progress{Stage: StageChunk, Message: "Splitting content into segments..."})
	segments, err := p.split(ctx, r, docs)
	if err != nil {
		return models.FinalSummary{}, err
	}
	if len(segments) == 0 {
		return models.FinalSummary{}, types.ErrNoContent
	}
	log.Printf("pipeline: %s split into %d segments from %d documents (%d oversized)", r.url, len(segments), len(docs), r.oversized)

	r.total = len(segments)
	r.report(Progress{Stage: StageSummarize, Total: r.total, Message: fmt.Sprintf("Summarizing %d segments...", r.total)})
	s := summarizer.NewWithConfig(summarizer.SummarizerConfig{
		Template:  p.config.SegmentTemplate,
		Workers:   p.config.Workers,
		OnSummary: r.segmentDone,
	}, p.llm)
	summaries, err := s.Summarize(ctx, segments)
	if err != nil {
		return models.FinalSummary{}, err
	}

	if len(summaries) > 1 {
		r.report(Progress{Stage: StageReduce, Message: "Combining summaries..."})
	}
	reducer := summarizer.NewReducer(summarizer.ReducerConfig{
		Template: p.config.ReduceTemplate,
		Words:    p.config.ReduceWords,
	}, p.llm)
	text, err := reducer.Reduce(ctx, summaries)
	if err != nil {
		return models.FinalSummary{}, err
	}

	r.report(Progress{Stage: StageDone, Message: "Summary ready"})
	return models.FinalSummary{
		Text:        text,
		GeneratedAt: p.config.Now(),
		SourceURL:   rawURL,
	}, nil
}

// split chunks every document, numbering segments across documents so the
// reducer sees document order followed by segment order.
func (p *Pipeline) split(ctx context.Context, r *run, docs []models.RawDocument) ([]models.Segment, error) {
	c := chunker.NewWithConfig(chunker.ChunkerConfig{
		ChunkSize: p.config.ChunkSize,
		OnOversized: func(models.Segment) {
			r.oversized++
		},
	})

	var segments []models.Segment
	for _, doc := range docs {
		segs, err := c.SplitFrom(ctx, doc, len(segments))
		if err != nil {
			return nil, err
		}
		segments = append(segments, segs...)
	}
	return segments, nil
}
