// Package source turns a user supplied URL into raw documents.
package source

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/xhad/digest/internal/models"
	"github.com/xhad/digest/internal/types"
	"github.com/xhad/digest/pkg/scraper"
	"github.com/xhad/digest/pkg/youtube"
)

type NormalizerConfig struct {
	MaxDuration time.Duration // videos longer than this are rejected
	YouTube     youtube.ClientConfig
	Scraper     scraper.ScraperConfig
}

type Normalizer struct {
	config  NormalizerConfig
	youtube *youtube.Client
	scraper *scraper.Scraper
}

func NewWithConfig(config NormalizerConfig) *Normalizer {
	if config.MaxDuration == 0 {
		config.MaxDuration = 30 * time.Minute
	}
	return &Normalizer{
		config:  config,
		youtube: youtube.NewWithConfig(config.YouTube),
		scraper: scraper.NewWithConfig(config.Scraper),
	}
}

// ValidateURL accepts absolute http(s) URLs with a host.
func ValidateURL(rawURL string) error {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return &types.InvalidInputError{Reason: "please provide a URL to get started"}
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return &types.InvalidInputError{Input: rawURL, Reason: err.Error()}
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &types.InvalidInputError{Input: rawURL, Reason: "not a valid http or https URL"}
	}
	return nil
}

// Fetch validates rawURL and returns its documents. YouTube URLs yield one
// transcript document; other URLs go through the scraper.
func (n *Normalizer) Fetch(ctx context.Context, rawURL string) ([]models.RawDocument, error) {
	rawURL = strings.TrimSpace(rawURL)
	if err := ValidateURL(rawURL); err != nil {
		return nil, err
	}

	if youtube.IsYouTubeURL(rawURL) {
		doc, err := n.fetchTranscript(ctx, rawURL)
		if err != nil {
			return nil, err
		}
		return []models.RawDocument{doc}, nil
	}

	docs, err := n.scraper.Scrape(ctx, rawURL)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &types.FetchError{Reason: types.FetchPageFailed, URL: rawURL, Message: "Error processing website", Err: err}
	}

	var nonEmpty []models.RawDocument
	for _, doc := range docs {
		if strings.TrimSpace(doc.Text) != "" {
			nonEmpty = append(nonEmpty, doc)
		}
	}
	if len(nonEmpty) == 0 {
		return nil, &types.FetchError{Reason: types.FetchPageFailed, URL: rawURL, Message: "Error processing website", Err: errors.New("no readable text found")}
	}
	return nonEmpty, nil
}

func (n *Normalizer) fetchTranscript(ctx context.Context, rawURL string) (models.RawDocument, error) {
	videoID, ok := youtube.ExtractVideoID(rawURL)
	if !ok {
		return models.RawDocument{}, &types.FetchError{Reason: types.FetchInvalidURL, URL: rawURL, Message: "Invalid YouTube URL"}
	}

	transcript, err := n.youtube.Fetch(ctx, videoID)
	if err != nil {
		return models.RawDocument{}, err
	}

	if d := transcript.Duration(); d > n.config.MaxDuration {
		return models.RawDocument{}, &types.FetchError{
			Reason: types.FetchDurationExceeded,
			URL:    rawURL,
			Message: fmt.Sprintf("Video duration (%.1f minutes) exceeds the %d-minute limit. Please use a shorter video or segment.",
				d.Minutes(), int(n.config.MaxDuration.Minutes())),
		}
	}

	return models.RawDocument{
		Text:        transcript.Format(),
		SourceLabel: rawURL,
		Title:       transcript.Title,
		Kind:        models.KindTranscript,
	}, nil
}
