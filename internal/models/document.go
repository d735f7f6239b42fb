package models

import "time"

// DocumentKind selects the indivisible unit the chunker splits on.
type DocumentKind string

const (
	KindTranscript DocumentKind = "transcript"
	KindArticle    DocumentKind = "article"
)

// RawDocument is one logical source unit: a video transcript, a page, or a
// single item of a feed.
type RawDocument struct {
	Text        string
	SourceLabel string
	Title       string
	Kind        DocumentKind
}

// Segment is a bounded slice of a RawDocument's text. Order is global across
// all documents of a run.
type Segment struct {
	Order     int
	Text      string
	Oversized bool
}

type SegmentSummary struct {
	Order int
	Text  string
}

type FinalSummary struct {
	Text        string
	GeneratedAt time.Time
	SourceURL   string
}
