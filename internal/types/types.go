package types

import (
	"context"

	"github.com/xhad/digest/internal/models"
)

// Core interfaces
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]models.RawDocument, error)
}

type Completer interface {
	Complete(ctx context.Context, template string, text string) (string, error)
}

type Chunker interface {
	Split(ctx context.Context, doc models.RawDocument) ([]models.Segment, error)
}

type Exporter interface {
	PlainText(summary models.FinalSummary) []byte
	PDF(summary models.FinalSummary) ([]byte, error)
}
