package chunker

import (
	"context"
	"log"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/xhad/digest/internal/models"
	"github.com/xhad/digest/internal/types"
)

const DefaultChunkSize = 4000

type ChunkerConfig struct {
	// ChunkSize is the segment budget in characters (Unicode code points).
	ChunkSize int
	// OnOversized is called for every unit that alone exceeds ChunkSize.
	OnOversized func(seg models.Segment)
}

type Chunker struct {
	config ChunkerConfig
}

func NewWithConfig(config ChunkerConfig) Chunker {
	if config.ChunkSize <= 0 {
		config.ChunkSize = DefaultChunkSize
	}

	return Chunker{
		config: config,
	}
}

var _ types.Chunker = Chunker{}

func New() Chunker {
	return NewWithConfig(ChunkerConfig{})
}

// Split cuts doc into segments of at most ChunkSize characters without ever
// breaking an indivisible unit. Joining the segment texts in order yields
// doc.Text. Orders start at zero.
func (c Chunker) Split(ctx context.Context, doc models.RawDocument) ([]models.Segment, error) {
	return c.SplitFrom(ctx, doc, 0)
}

// SplitFrom is Split with orders numbered from first, so segments of several
// documents in one run share a single ordering.
func (c Chunker) SplitFrom(ctx context.Context, doc models.RawDocument, first int) ([]models.Segment, error) {
	if doc.Text == "" {
		return nil, nil
	}

	var units []string
	if doc.Kind == models.KindTranscript {
		units = splitIntoLines(doc.Text)
	} else {
		units = splitIntoSentences(doc.Text)
	}

	var segments []models.Segment
	current := strings.Builder{}
	currentLen := 0

	flush := func() {
		if current.Len() == 0 {
			return
		}
		seg := models.Segment{
			Order:     first + len(segments),
			Text:      current.String(),
			Oversized: currentLen > c.config.ChunkSize,
		}
		if seg.Oversized {
			log.Printf("chunker: unit of %d characters exceeds budget %d in %s", currentLen, c.config.ChunkSize, doc.SourceLabel)
			if c.config.OnOversized != nil {
				c.config.OnOversized(seg)
			}
		}
		segments = append(segments, seg)
		current.Reset()
		currentLen = 0
	}

	for _, unit := range units {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		unitLen := utf8.RuneCountInString(unit)

		// If adding this unit would exceed the budget, close the current segment
		if currentLen > 0 && currentLen+unitLen > c.config.ChunkSize {
			flush()
		}

		current.WriteString(unit)
		currentLen += unitLen
	}
	flush()

	return segments, nil
}

// splitIntoLines keeps each newline with the line it terminates.
func splitIntoLines(text string) []string {
	lines := strings.SplitAfter(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// splitIntoSentences cuts after a sentence terminator followed by whitespace,
// or after a line break, attaching the trailing whitespace to the unit it
// ends. Nothing is trimmed.
func splitIntoSentences(text string) []string {
	var sentences []string

	start := 0
	terminated := false
	ended := false
	for i, r := range text {
		if ended && !unicode.IsSpace(r) {
			sentences = append(sentences, text[start:i])
			start = i
			ended = false
		}

		switch {
		case r == '\n':
			ended = true
			terminated = false
		case unicode.IsSpace(r):
			ended = ended || terminated
			terminated = false
		case r == '.' || r == '!' || r == '?':
			terminated = true
		default:
			terminated = false
		}
	}

	// Add any remaining text
	if start < len(text) {
		sentences = append(sentences, text[start:])
	}

	return sentences
}
