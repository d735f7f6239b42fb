package summarizer

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/xhad/digest/internal/models"
	"github.com/xhad/digest/internal/types"
)

// Separator joins segment summaries before the reduce pass.
const Separator = "\n\n"

type ReducerConfig struct {
	// Template is the synthesis instruction with a {text} placeholder. A
	// {words} placeholder, if present, is replaced by Words.
	Template string
	Words    int
}

// Reducer folds segment summaries into one final text.
type Reducer struct {
	template string
	llm      types.Completer
}

func NewReducer(config ReducerConfig, llm types.Completer) *Reducer {
	if config.Words <= 0 {
		config.Words = 300
	}
	return &Reducer{
		template: strings.ReplaceAll(config.Template, "{words}", strconv.Itoa(config.Words)),
		llm:      llm,
	}
}

// Compose joins summaries in segment order, separated by a blank line.
func Compose(summaries []models.SegmentSummary) string {
	ordered := make([]models.SegmentSummary, len(summaries))
	copy(ordered, summaries)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Order < ordered[j].Order })

	texts := make([]string, len(ordered))
	for i, s := range ordered {
		texts[i] = s.Text
	}
	return strings.Join(texts, Separator)
}

// Reduce returns the single summary verbatim, synthesizes several with one
// more LLM call, and fails with types.ErrNoContent on none.
func (r *Reducer) Reduce(ctx context.Context, summaries []models.SegmentSummary) (string, error) {
	switch len(summaries) {
	case 0:
		return "", types.ErrNoContent
	case 1:
		return summaries[0].Text, nil
	}

	text, err := r.llm.Complete(ctx, r.template, Compose(summaries))
	if err != nil {
		return "", types.NewSummarizationFailure(types.ReduceOrder, err)
	}
	return text, nil
}
