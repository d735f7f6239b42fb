package chunker

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/digest/internal/models"
)

func join(segments []models.Segment) string {
	var b strings.Builder
	for _, s := range segments {
		b.WriteString(s.Text)
	}
	return b.String()
}

func transcript(lines int) string {
	var b strings.Builder
	for i := 0; i < lines; i++ {
		fmt.Fprintf(&b, "[%02d:%02d] line number %d of the talk\n", i/60, i%60, i)
	}
	return b.String()
}

func randomText(r *rand.Rand) string {
	words := []string{"alpha", "beta.", "gamma!", "delta?", "ünïcødé", "3.14", "e.g.", "\n", "\n\n", "  ", "word"}
	var b strings.Builder
	n := r.Intn(200)
	for i := 0; i < n; i++ {
		b.WriteString(words[r.Intn(len(words))])
		if r.Intn(3) > 0 {
			b.WriteByte(' ')
		}
	}
	return b.String()
}

func TestChunker_Reconstruction(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	ctx := context.Background()

	for i := 0; i < 300; i++ {
		text := randomText(r)
		budget := 1 + r.Intn(80)
		for _, kind := range []models.DocumentKind{models.KindTranscript, models.KindArticle} {
			c := NewWithConfig(ChunkerConfig{ChunkSize: budget})
			segments, err := c.Split(ctx, models.RawDocument{Text: text, Kind: kind})
			require.NoError(t, err)
			assert.Equal(t, text, join(segments), "budget=%d kind=%s", budget, kind)
		}
	}
}

func TestChunker_Bound(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	ctx := context.Background()

	for i := 0; i < 300; i++ {
		text := randomText(r)
		budget := 1 + r.Intn(60)
		c := NewWithConfig(ChunkerConfig{ChunkSize: budget})
		segments, err := c.Split(ctx, models.RawDocument{Text: text, Kind: models.KindArticle})
		require.NoError(t, err)

		for _, seg := range segments {
			n := utf8.RuneCountInString(seg.Text)
			if seg.Oversized {
				// An oversized segment is exactly one unit
				assert.Greater(t, n, budget)
				assert.Len(t, splitIntoSentences(seg.Text), 1)
			} else {
				assert.LessOrEqual(t, n, budget)
			}
		}
	}
}

func TestChunker_TranscriptLinesNeverSplit(t *testing.T) {
	text := transcript(500)
	c := NewWithConfig(ChunkerConfig{ChunkSize: 4000})

	segments, err := c.Split(context.Background(), models.RawDocument{Text: text, Kind: models.KindTranscript})
	require.NoError(t, err)
	require.Greater(t, len(segments), 1)

	for i, seg := range segments {
		assert.Equal(t, i, seg.Order)
		assert.True(t, strings.HasPrefix(seg.Text, "["), "segment %d starts mid-line", i)
		assert.True(t, strings.HasSuffix(seg.Text, "\n"), "segment %d ends mid-line", i)
		assert.LessOrEqual(t, utf8.RuneCountInString(seg.Text), 4000)
		assert.False(t, seg.Oversized)
	}
	assert.Equal(t, text, join(segments))
}

func TestChunker_GreedyPacking(t *testing.T) {
	// Three 10-char lines with a budget of 25: two fit, the third starts anew
	text := "123456789\nabcdefghi\nABCDEFGHI\n"
	c := NewWithConfig(ChunkerConfig{ChunkSize: 25})

	segments, err := c.Split(context.Background(), models.RawDocument{Text: text, Kind: models.KindTranscript})
	require.NoError(t, err)
	require.Len(t, segments, 2)
	assert.Equal(t, "123456789\nabcdefghi\n", segments[0].Text)
	assert.Equal(t, "ABCDEFGHI\n", segments[1].Text)
}

func TestChunker_SingleOversizedUnit(t *testing.T) {
	var flagged []models.Segment
	c := NewWithConfig(ChunkerConfig{
		ChunkSize:   10,
		OnOversized: func(seg models.Segment) { flagged = append(flagged, seg) },
	})
	text := "[00:01] this line is much longer than ten characters\n"

	segments, err := c.Split(context.Background(), models.RawDocument{Text: text, Kind: models.KindTranscript})
	require.NoError(t, err)
	require.Len(t, segments, 1)
	assert.Equal(t, text, segments[0].Text)
	assert.True(t, segments[0].Oversized)
	require.Len(t, flagged, 1)
	assert.Equal(t, segments[0], flagged[0])
}

func TestChunker_EmptyInput(t *testing.T) {
	c := New()
	segments, err := c.Split(context.Background(), models.RawDocument{Text: ""})
	require.NoError(t, err)
	assert.Empty(t, segments)
}

func TestChunker_SplitFromNumbersGlobally(t *testing.T) {
	c := NewWithConfig(ChunkerConfig{ChunkSize: 10})
	segments, err := c.SplitFrom(context.Background(), models.RawDocument{Text: "aaaaaaaa\nbbbbbbbb\n", Kind: models.KindTranscript}, 5)
	require.NoError(t, err)
	require.Len(t, segments, 2)
	assert.Equal(t, 5, segments[0].Order)
	assert.Equal(t, 6, segments[1].Order)
}

func TestChunker_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().Split(ctx, models.RawDocument{Text: transcript(10), Kind: models.KindTranscript})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSplitIntoSentences(t *testing.T) {
	tests := []struct {
		text string
		want []string
	}{
		{"This is a test. It contains several sentences.", []string{"This is a test. ", "It contains several sentences."}},
		{"Pi is 3.14 today! Really?  Yes", []string{"Pi is 3.14 today! ", "Really?  ", "Yes"}},
		{"# Heading\n\nBody text", []string{"# Heading\n\n", "Body text"}},
		{"no terminator", []string{"no terminator"}},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := splitIntoSentences(tt.text)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.text, strings.Join(got, ""))
		})
	}
}
