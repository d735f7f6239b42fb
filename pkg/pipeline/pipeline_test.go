package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/digest/internal/models"
	"github.com/xhad/digest/internal/types"
	"github.com/xhad/digest/pkg/source"
	"github.com/xhad/digest/pkg/youtube"
)

type stubFetcher struct {
	docs []models.RawDocument
	err  error
}

func (f *stubFetcher) Fetch(ctx context.Context, rawURL string) ([]models.RawDocument, error) {
	return f.docs, f.err
}

// echoLLM tags every answer with the template's first word so the test can
// tell segment calls from the reduce call.
type echoLLM struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (e *echoLLM) Complete(ctx context.Context, template string, text string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, text)
	if e.err != nil {
		return "", e.err
	}
	return strings.Fields(template)[0] + "(" + strings.TrimSpace(text) + ")", nil
}

var fixed = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

func newPipeline(fetcher types.Fetcher, completer types.Completer, chunkSize int) *Pipeline {
	return NewWithConfig(PipelineConfig{
		ChunkSize:       chunkSize,
		SegmentTemplate: "seg {text}",
		ReduceTemplate:  "red {text}",
		Now:             func() time.Time { return fixed },
	}, fetcher, completer)
}

func TestRunSingleSegmentSkipsReduce(t *testing.T) {
	fetcher := &stubFetcher{docs: []models.RawDocument{{Text: "Short article.", Kind: models.KindArticle}}}
	llm := &echoLLM{}

	var stages []Stage
	summary, err := newPipeline(fetcher, llm, 100).Run(context.Background(), " https://example.com/a ", func(p Progress) {
		stages = append(stages, p.Stage)
	})
	require.NoError(t, err)
	assert.NotContains(t, stages, StageReduce)
	assert.Equal(t, StageDone, stages[len(stages)-1])
	assert.Equal(t, "seg(Short article.)", summary.Text)
	assert.Equal(t, "https://example.com/a", summary.SourceURL)
	assert.Equal(t, fixed, summary.GeneratedAt)
	assert.Len(t, llm.calls, 1)
}

func TestRunMultipleDocumentsKeepOrder(t *testing.T) {
	fetcher := &stubFetcher{docs: []models.RawDocument{
		{Text: "[00:00] first\n[00:05] second\n", Kind: models.KindTranscript},
		{Text: "Third item.", Kind: models.KindArticle},
	}}
	llm := &echoLLM{}

	var stages []Stage
	summary, err := newPipeline(fetcher, llm, 14).Run(context.Background(), "https://example.com/feed", func(p Progress) {
		stages = append(stages, p.Stage)
	})
	require.NoError(t, err)

	require.Len(t, llm.calls, 4)
	assert.Equal(t, "seg([00:00] first)\n\nseg([00:05] second)\n\nseg(Third item.)", llm.calls[3])
	assert.True(t, strings.HasPrefix(summary.Text, "red("))

	assert.Equal(t, StageFetch, stages[0])
	assert.Equal(t, StageDone, stages[len(stages)-1])
	assert.Contains(t, stages, StageReduce)
}

func TestRunEmptyInput(t *testing.T) {
	llm := &echoLLM{}
	for name, docs := range map[string][]models.RawDocument{
		"no documents": nil,
		"empty text":   {{Text: "", Kind: models.KindArticle}},
		"blank text":   {{Text: "  \n\n ", Kind: models.KindArticle}},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := newPipeline(&stubFetcher{docs: docs}, llm, 100).Run(context.Background(), "https://example.com", nil)
			assert.ErrorIs(t, err, types.ErrNoContent)
			assert.Equal(t, types.KindNoContent, types.KindOf(err))
		})
	}
	assert.Empty(t, llm.calls)
}

func TestRunFetchErrorStopsEarly(t *testing.T) {
	fetchErr := &types.FetchError{Reason: types.FetchPageFailed, URL: "https://example.com"}
	llm := &echoLLM{}

	_, err := newPipeline(&stubFetcher{err: fetchErr}, llm, 100).Run(context.Background(), "https://example.com", nil)
	assert.Equal(t, types.KindFetch, types.KindOf(err))
	assert.Empty(t, llm.calls)
}

func TestRunSummarizationFailure(t *testing.T) {
	fetcher := &stubFetcher{docs: []models.RawDocument{{Text: "One. Two.", Kind: models.KindArticle}}}
	llm := &echoLLM{err: errors.New("rate limited")}

	_, err := newPipeline(fetcher, llm, 100).Run(context.Background(), "https://example.com", nil)
	assert.Equal(t, types.KindSummarization, types.KindOf(err))
	assert.Contains(t, types.UserMessage(err), "Error generating summary")
}

func TestRunDurationPolicyBeforeAnyLLMCall(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/watch":
			fmt.Fprintf(w, `var ytInitialPlayerResponse = {"captions":{"playerCaptionsTracklistRenderer":{"captionTracks":[{"baseUrl":"%s/api/timedtext","languageCode":"en"}]}}};`, server.URL)
		case "/api/timedtext":
			fmt.Fprint(w, `<transcript><text start="0" dur="5">intro</text><text start="2400" dur="5">late</text></transcript>`)
		}
	}))
	defer server.Close()

	normalizer := source.NewWithConfig(source.NormalizerConfig{
		YouTube: youtube.ClientConfig{BaseURL: server.URL},
	})
	llm := &echoLLM{}

	_, err := newPipeline(normalizer, llm, 100).Run(context.Background(), "https://www.youtube.com/watch?v=abcdefghijk", nil)
	var fetchErr *types.FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, types.FetchDurationExceeded, fetchErr.Reason)
	assert.Contains(t, types.UserMessage(err), "Video duration (40.0 minutes) exceeds the 30-minute limit")
	assert.Empty(t, llm.calls)
}

func TestRunCancelled(t *testing.T) {
	fetcher := &stubFetcher{docs: []models.RawDocument{{Text: "Body.", Kind: models.KindArticle}}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newPipeline(fetcher, &echoLLM{}, 100).Run(ctx, "https://example.com", nil)
	assert.ErrorIs(t, err, context.Canceled)
}
