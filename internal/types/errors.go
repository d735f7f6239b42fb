package types

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind tags every failure a pipeline run can end with.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindInvalidInput
	KindFetch
	KindSummarization
	KindNoContent
	KindExport
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindFetch:
		return "fetch"
	case KindSummarization:
		return "summarization"
	case KindNoContent:
		return "no_content"
	case KindExport:
		return "export"
	default:
		return "unknown"
	}
}

// ErrNoContent is returned when a run reaches the reducer with nothing to
// summarize.
var ErrNoContent = errors.New("no content to summarize")

type InvalidInputError struct {
	Input  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	if e.Input == "" {
		return fmt.Sprintf("invalid input: %s", e.Reason)
	}
	return fmt.Sprintf("invalid input %q: %s", e.Input, e.Reason)
}

type FetchReason string

const (
	FetchInvalidURL          FetchReason = "invalid_url"
	FetchTranscriptsDisabled FetchReason = "transcripts_disabled"
	FetchTranscriptNotFound  FetchReason = "transcript_not_found"
	FetchDurationExceeded    FetchReason = "duration_exceeded"
	FetchTranscriptFailed    FetchReason = "transcript_fetch_failed"
	FetchPageFailed          FetchReason = "page_fetch_failed"
)

type FetchError struct {
	Reason  FetchReason
	URL     string
	Message string
	Err     error
}

func (e *FetchError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Reason)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *FetchError) Unwrap() error { return e.Err }

// SummarizationFailure reports an LLM call that failed for one segment, or
// for the reduce pass when Order is -1.
type SummarizationFailure struct {
	Order   int
	Timeout bool
	Cause   error
}

// ReduceOrder marks a SummarizationFailure raised by the reduce pass.
const ReduceOrder = -1

func (e *SummarizationFailure) Error() string {
	stage := fmt.Sprintf("segment %d", e.Order)
	if e.Order == ReduceOrder {
		stage = "reduce pass"
	}
	if e.Timeout {
		return fmt.Sprintf("summarization of %s timed out: %v", stage, e.Cause)
	}
	return fmt.Sprintf("summarization of %s failed: %v", stage, e.Cause)
}

func (e *SummarizationFailure) Unwrap() error { return e.Cause }

// NewSummarizationFailure classifies cause, flagging deadline expiry as a
// timeout.
func NewSummarizationFailure(order int, cause error) *SummarizationFailure {
	return &SummarizationFailure{
		Order:   order,
		Timeout: errors.Is(cause, context.DeadlineExceeded),
		Cause:   cause,
	}
}

type ExportError struct {
	Format string
	Err    error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("%s export failed: %v", e.Format, e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }

// KindOf recovers the tag of err. Message text is never inspected.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	var (
		invalid *InvalidInputError
		fetch   *FetchError
		summary *SummarizationFailure
		export  *ExportError
	)
	switch {
	case errors.As(err, &invalid):
		return KindInvalidInput
	case errors.As(err, &fetch):
		return KindFetch
	case errors.As(err, &summary):
		return KindSummarization
	case errors.Is(err, ErrNoContent):
		return KindNoContent
	case errors.As(err, &export):
		return KindExport
	}
	return KindUnknown
}

// UserMessage renders err for display to the person who submitted the URL.
func UserMessage(err error) string {
	var fetch *FetchError
	switch KindOf(err) {
	case KindInvalidInput:
		return "Please enter a valid URL (YouTube or Website)."
	case KindFetch:
		errors.As(err, &fetch)
		switch fetch.Reason {
		case FetchTranscriptsDisabled:
			return "Transcripts are disabled for this video."
		case FetchTranscriptNotFound:
			return "No transcripts available for this video."
		case FetchDurationExceeded, FetchInvalidURL:
			return fetch.Error()
		case FetchTranscriptFailed:
			return fmt.Sprintf("Error retrieving transcript: %v", fetch.Err)
		}
		if fetch.Err != nil {
			return fmt.Sprintf("Error processing website: %v", fetch.Err)
		}
		return "Error processing website."
	case KindSummarization:
		return fmt.Sprintf("Error generating summary: %v", err)
	case KindNoContent:
		return "Could not process the content. Please try again."
	case KindExport:
		return fmt.Sprintf("Export failed: %v", err)
	}
	return fmt.Sprintf("An error occurred: %v", err)
}
