package summarizer

import (
	"context"
	"log"
	"strings"

	"github.com/xhad/digest/internal/models"
	"github.com/xhad/digest/internal/types"
	"golang.org/x/sync/errgroup"
)

type SummarizerConfig struct {
	// Template is the first-pass instruction with a {text} placeholder.
	Template string
	// Workers bounds concurrent LLM calls. One keeps calls strictly sequential.
	Workers int
	// OnSummary is called once per finished segment, in completion order,
	// possibly from several goroutines at once.
	OnSummary func(summary models.SegmentSummary)
}

// Summarizer runs the first pass: one LLM call per segment.
type Summarizer struct {
	config SummarizerConfig
	llm    types.Completer
}

func NewWithConfig(config SummarizerConfig, llm types.Completer) *Summarizer {
	if config.Workers < 1 {
		config.Workers = 1
	}
	return &Summarizer{
		config: config,
		llm:    llm,
	}
}

// SummarizeSegment invokes the LLM exactly once for seg.
func (s *Summarizer) SummarizeSegment(ctx context.Context, seg models.Segment) (models.SegmentSummary, error) {
	text, err := s.llm.Complete(ctx, s.config.Template, seg.Text)
	if err != nil {
		return models.SegmentSummary{}, types.NewSummarizationFailure(seg.Order, err)
	}
	return models.SegmentSummary{Order: seg.Order, Text: text}, nil
}

// Summarize summarizes every non-blank segment and returns the summaries in
// segment order, whatever order the calls finish in. The first failure
// cancels outstanding calls and is returned.
func (s *Summarizer) Summarize(ctx context.Context, segments []models.Segment) ([]models.SegmentSummary, error) {
	var pending []models.Segment
	for _, seg := range segments {
		if strings.TrimSpace(seg.Text) == "" {
			continue
		}
		pending = append(pending, seg)
	}
	if len(pending) == 0 {
		return nil, nil
	}

	results := make([]models.SegmentSummary, len(pending))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Workers)

	for i, seg := range pending {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return types.NewSummarizationFailure(seg.Order, err)
			}
			summary, err := s.SummarizeSegment(gctx, seg)
			if err != nil {
				log.Printf("summarizer: segment %d failed: %v", seg.Order, err)
				return err
			}
			results[i] = summary
			if s.config.OnSummary != nil {
				s.config.OnSummary(summary)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
