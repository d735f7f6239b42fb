package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/digest/internal/models"
	"github.com/xhad/digest/internal/types"
	"github.com/xhad/digest/pkg/scraper"
	"github.com/xhad/digest/pkg/youtube"
)

// fakeYouTube serves a watch page with one English track whose cues start
// at the given offsets (seconds).
func fakeYouTube(t *testing.T, starts ...float64) *httptest.Server {
	t.Helper()
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/watch":
			fmt.Fprintf(w, `<script>var ytInitialPlayerResponse = {"captions":{"playerCaptionsTracklistRenderer":{"captionTracks":[{"baseUrl":"%s/api/timedtext","languageCode":"en"}]}}};</script>`, server.URL)
		case "/api/timedtext":
			var b strings.Builder
			b.WriteString("<transcript>")
			for i, s := range starts {
				fmt.Fprintf(&b, `<text start="%g" dur="2">cue %d</text>`, s, i)
			}
			b.WriteString("</transcript>")
			fmt.Fprint(w, b.String())
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func newNormalizer(ytURL string) *Normalizer {
	return NewWithConfig(NormalizerConfig{
		YouTube: youtube.ClientConfig{BaseURL: ytURL},
		Scraper: scraper.ScraperConfig{RateLimit: 100},
	})
}

func TestValidateURL(t *testing.T) {
	for _, bad := range []string{"", "   ", "not a url", "ftp://example.com/file", "https://"} {
		err := ValidateURL(bad)
		assert.Equal(t, types.KindInvalidInput, types.KindOf(err), "input %q", bad)
	}
	assert.NoError(t, ValidateURL("https://example.com/post"))
}

func TestFetchTranscript(t *testing.T) {
	server := fakeYouTube(t, 0, 61, 125)
	n := newNormalizer(server.URL)

	docs, err := n.Fetch(context.Background(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, models.KindTranscript, docs[0].Kind)
	assert.Equal(t, "[00:00] cue 0\n[01:01] cue 1\n[02:05] cue 2\n", docs[0].Text)
}

func TestFetchDurationExceeded(t *testing.T) {
	server := fakeYouTube(t, 0, 900, 1800.5)
	n := newNormalizer(server.URL)

	_, err := n.Fetch(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
	var fetchErr *types.FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, types.FetchDurationExceeded, fetchErr.Reason)
	assert.Contains(t, fetchErr.Error(), "Video duration (30.0 minutes) exceeds the 30-minute limit")
}

func TestFetchDurationAtLimit(t *testing.T) {
	server := fakeYouTube(t, 0, 1800)
	n := newNormalizer(server.URL)

	_, err := n.Fetch(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
	assert.NoError(t, err)
}

func TestFetchInvalidYouTubeURL(t *testing.T) {
	n := newNormalizer("http://127.0.0.1:1")
	_, err := n.Fetch(context.Background(), "https://www.youtube.com/feed")

	var fetchErr *types.FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, types.FetchInvalidURL, fetchErr.Reason)
}

func TestFetchWebPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><title>Post</title></head><body><article><p>Paragraph one explains the topic in enough words for extraction to keep it.</p><p>Paragraph two adds detail and closes the article with a conclusion.</p></article></body></html>`)
	}))
	defer server.Close()

	docs, err := newNormalizer("").Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, models.KindArticle, docs[0].Kind)
	assert.Contains(t, docs[0].Text, "Paragraph one")
}

func TestFetchWebPageFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := newNormalizer("").Fetch(context.Background(), server.URL)
	var fetchErr *types.FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, types.FetchPageFailed, fetchErr.Reason)
}

func TestDefaultMaxDuration(t *testing.T) {
	n := NewWithConfig(NormalizerConfig{})
	assert.Equal(t, 30*time.Minute, n.config.MaxDuration)
}
