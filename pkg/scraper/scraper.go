package scraper

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"github.com/ledongthuc/pdf"
	"github.com/mmcdole/gofeed"
	"github.com/xhad/digest/internal/models"
	"golang.org/x/time/rate"
)

const maxBodySize = 16 * 1024 * 1024

type ScraperConfig struct {
	RateLimit    float64 // requests per second
	Timeout      time.Duration
	UserAgent    string
	MaxFeedItems int
}

// Scraper downloads one URL and turns it into article documents. HTML pages
// yield one document, feeds one per item, PDFs one.
type Scraper struct {
	config  ScraperConfig
	client  *http.Client
	limiter *rate.Limiter
	feeds   *gofeed.Parser
}

func NewWithConfig(config ScraperConfig) *Scraper {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 2 // 2 requests per second by default
	}
	if config.MaxFeedItems == 0 {
		config.MaxFeedItems = 5
	}
	if config.UserAgent == "" {
		config.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	}

	return &Scraper{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		feeds:   gofeed.NewParser(),
	}
}

func New() *Scraper {
	return NewWithConfig(ScraperConfig{})
}

func (s *Scraper) cleanContent(content string) string {
	// Remove extra whitespace
	content = strings.Join(strings.Fields(content), " ")

	// Remove common noise
	noisePatterns := []string{
		"Cookie Policy",
		"Accept Cookies",
		"Privacy Policy",
		"Terms of Service",
	}

	for _, pattern := range noisePatterns {
		content = strings.ReplaceAll(content, pattern, "")
	}

	return strings.TrimSpace(content)
}

func (s *Scraper) extractMainContent(doc *goquery.Document) string {
	doc.Find("script, style, noscript, nav, header, footer, aside").Remove()

	// Try to find main content area
	selectors := []string{
		"main",
		"article",
		".content",
		"#content",
		".post",
		".entry-content",
	}

	var content string
	for _, selector := range selectors {
		if selected := doc.Find(selector); selected.Length() > 0 {
			content = selected.Text()
			break
		}
	}

	// Fallback to body if no main content found
	if content == "" {
		content = doc.Find("body").Text()
	}

	return s.cleanContent(content)
}

// Scrape fetches pageURL and extracts its readable text.
func (s *Scraper) Scrape(ctx context.Context, pageURL string) ([]models.RawDocument, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.config.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("received status code %d for URL: %s", resp.StatusCode, pageURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	switch {
	case mediaType == "application/pdf":
		return s.extractPDF(pageURL, body)
	case isFeed(mediaType, body):
		return s.extractFeed(pageURL, body)
	default:
		doc, err := s.extractHTML(pageURL, body)
		if err != nil {
			return nil, err
		}
		return []models.RawDocument{doc}, nil
	}
}

func isFeed(mediaType string, body []byte) bool {
	switch mediaType {
	case "application/rss+xml", "application/atom+xml", "application/feed+json":
		return true
	case "application/xml", "text/xml":
		head := body
		if len(head) > 512 {
			head = head[:512]
		}
		return bytes.Contains(head, []byte("<rss")) || bytes.Contains(head, []byte("<feed"))
	}
	return false
}

// extractHTML prefers readability rendered as markdown, which keeps the
// paragraph breaks the chunker splits on, and falls back to goquery.
func (s *Scraper) extractHTML(pageURL string, body []byte) (models.RawDocument, error) {
	parsedURL, _ := url.Parse(pageURL)

	article, err := readability.FromReader(bytes.NewReader(body), parsedURL)
	if err == nil && strings.TrimSpace(article.TextContent) != "" {
		text, mdErr := htmltomarkdown.ConvertString(article.Content)
		if mdErr != nil || strings.TrimSpace(text) == "" {
			text = article.TextContent
		}
		return models.RawDocument{
			Text:        strings.TrimSpace(text) + "\n",
			SourceLabel: pageURL,
			Title:       strings.TrimSpace(article.Title),
			Kind:        models.KindArticle,
		}, nil
	}
	if err != nil {
		log.Printf("scraper: readability failed for %s, using goquery: %v", pageURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return models.RawDocument{}, fmt.Errorf("failed to parse HTML: %w", err)
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())

	return models.RawDocument{
		Text:        s.extractMainContent(doc),
		SourceLabel: pageURL,
		Title:       title,
		Kind:        models.KindArticle,
	}, nil
}

func (s *Scraper) extractFeed(feedURL string, body []byte) ([]models.RawDocument, error) {
	feed, err := s.feeds.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	var documents []models.RawDocument
	for _, item := range feed.Items {
		if len(documents) == s.config.MaxFeedItems {
			break
		}

		content := item.Content
		if content == "" {
			content = item.Description
		}
		if strings.TrimSpace(content) == "" {
			continue
		}

		text, err := htmltomarkdown.ConvertString(content)
		if err != nil {
			text = content
		}
		text = strings.TrimSpace(text)
		if item.Title != "" {
			text = item.Title + "\n\n" + text
		}

		label := item.Link
		if label == "" {
			label = feedURL
		}
		documents = append(documents, models.RawDocument{
			Text:        text + "\n",
			SourceLabel: label,
			Title:       item.Title,
			Kind:        models.KindArticle,
		})
	}

	return documents, nil
}

func (s *Scraper) extractPDF(pdfURL string, body []byte) ([]models.RawDocument, error) {
	reader, err := pdf.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}

	textReader, err := reader.GetPlainText()
	if err != nil {
		return nil, fmt.Errorf("failed to extract PDF text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, textReader); err != nil {
		return nil, err
	}

	return []models.RawDocument{{
		Text:        buf.String(),
		SourceLabel: pdfURL,
		Kind:        models.KindArticle,
	}}, nil
}
