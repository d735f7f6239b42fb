package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"log"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xhad/digest/internal/types"
)

// playerResponseMarker marks the start of the player response JSON in watch page HTML.
const playerResponseMarker = "ytInitialPlayerResponse = "

var videoIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:v=|/)([0-9A-Za-z_-]{11}).*`),
	regexp.MustCompile(`youtu\.be/([0-9A-Za-z_-]{11})`),
	regexp.MustCompile(`youtube\.com/embed/([0-9A-Za-z_-]{11})`),
}

type ClientConfig struct {
	BaseURL   string   // watch page host, https://www.youtube.com by default
	Languages []string // preferred caption languages, most preferred first
	UserAgent string
	Timeout   time.Duration
}

type Client struct {
	config ClientConfig
	client *http.Client
}

// TranscriptLine is one caption cue. Start and Duration are in seconds.
type TranscriptLine struct {
	Start    float64
	Duration float64
	Text     string
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"` // "asr" = auto-generated
}

type playerResponse struct {
	Captions *struct {
		PlayerCaptionsTracklistRenderer struct {
			CaptionTracks []captionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
	PlayabilityStatus *struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
	VideoDetails *struct {
		Title         string `json:"title"`
		LengthSeconds string `json:"lengthSeconds"`
	} `json:"videoDetails"`
}

type timedText struct {
	Lines []struct {
		Start string `xml:"start,attr"`
		Dur   string `xml:"dur,attr"`
		Text  string `xml:",chardata"`
	} `xml:"text"`
}

func NewWithConfig(config ClientConfig) *Client {
	if config.BaseURL == "" {
		config.BaseURL = "https://www.youtube.com"
	}
	if len(config.Languages) == 0 {
		config.Languages = []string{"en"}
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.UserAgent == "" {
		config.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	}

	return &Client{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

func New() *Client {
	return NewWithConfig(ClientConfig{})
}

// IsYouTubeURL reports whether rawURL points at YouTube.
func IsYouTubeURL(rawURL string) bool {
	return strings.Contains(rawURL, "youtube.com") || strings.Contains(rawURL, "youtu.be")
}

// ExtractVideoID returns the 11 character video id of a watch, short or
// embed URL.
func ExtractVideoID(rawURL string) (string, bool) {
	for _, pattern := range videoIDPatterns {
		if m := pattern.FindStringSubmatch(rawURL); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// Transcript is the result of a successful fetch.
type Transcript struct {
	VideoID string
	Title   string
	Lines   []TranscriptLine
}

// Duration is measured from the start of the last caption line.
func (t Transcript) Duration() time.Duration {
	if len(t.Lines) == 0 {
		return 0
	}
	return time.Duration(t.Lines[len(t.Lines)-1].Start * float64(time.Second))
}

// Format renders one "[MM:SS] text" line per caption, each newline terminated.
func (t Transcript) Format() string {
	var b strings.Builder
	for _, line := range t.Lines {
		start := int(line.Start)
		fmt.Fprintf(&b, "[%02d:%02d] %s\n", start/60, start%60, line.Text)
	}
	return b.String()
}

// Fetch scrapes the watch page for caption tracks, picks the best track and
// downloads its timed text. Failures are returned as *types.FetchError.
func (c *Client) Fetch(ctx context.Context, videoID string) (Transcript, error) {
	watchURL := c.config.BaseURL + "/watch?v=" + videoID

	body, err := c.get(ctx, watchURL, 6*1024*1024)
	if err != nil {
		return Transcript{}, &types.FetchError{Reason: types.FetchTranscriptFailed, URL: watchURL, Message: "Error retrieving transcript", Err: err}
	}

	idx := bytes.Index(body, []byte(playerResponseMarker))
	if idx < 0 {
		return Transcript{}, &types.FetchError{Reason: types.FetchTranscriptNotFound, URL: watchURL, Message: "No transcript found for this video"}
	}

	var player playerResponse
	dec := json.NewDecoder(bytes.NewReader(body[idx+len(playerResponseMarker):]))
	if err := dec.Decode(&player); err != nil {
		return Transcript{}, &types.FetchError{Reason: types.FetchTranscriptFailed, URL: watchURL, Message: "Error retrieving transcript", Err: fmt.Errorf("decode ytInitialPlayerResponse: %w", err)}
	}

	if player.Captions == nil {
		reason := ""
		if player.PlayabilityStatus != nil {
			reason = player.PlayabilityStatus.Reason
		}
		log.Printf("youtube: no captions for %s %s", videoID, reason)
		return Transcript{}, &types.FetchError{Reason: types.FetchTranscriptsDisabled, URL: watchURL, Message: "Transcripts are disabled for this video"}
	}

	tracks := player.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks
	if len(tracks) == 0 {
		return Transcript{}, &types.FetchError{Reason: types.FetchTranscriptNotFound, URL: watchURL, Message: "No transcripts available for this video"}
	}

	track := pickBestTrack(tracks, c.config.Languages)
	lines, err := c.fetchTimedText(ctx, track.BaseURL)
	if err != nil {
		return Transcript{}, &types.FetchError{Reason: types.FetchTranscriptFailed, URL: watchURL, Message: "Error retrieving transcript", Err: err}
	}
	if len(lines) == 0 {
		return Transcript{}, &types.FetchError{Reason: types.FetchTranscriptNotFound, URL: watchURL, Message: "No transcript found for this video"}
	}

	transcript := Transcript{VideoID: videoID, Lines: lines}
	if player.VideoDetails != nil {
		transcript.Title = player.VideoDetails.Title
	}
	return transcript, nil
}

// pickBestTrack prefers a manual track in a preferred language, then an
// auto-generated one, then whatever track comes first.
func pickBestTrack(tracks []captionTrack, langs []string) captionTrack {
	for _, lang := range langs {
		for _, t := range tracks {
			if t.LanguageCode == lang && t.Kind != "asr" {
				return t
			}
		}
	}
	for _, lang := range langs {
		for _, t := range tracks {
			if t.LanguageCode == lang {
				return t
			}
		}
	}
	return tracks[0]
}

func (c *Client) fetchTimedText(ctx context.Context, trackURL string) ([]TranscriptLine, error) {
	body, err := c.get(ctx, trackURL, 4*1024*1024)
	if err != nil {
		return nil, fmt.Errorf("fetch timedtext: %w", err)
	}

	var tt timedText
	if err := xml.Unmarshal(body, &tt); err != nil {
		return nil, fmt.Errorf("parse timedtext XML: %w", err)
	}

	lines := make([]TranscriptLine, 0, len(tt.Lines))
	for _, l := range tt.Lines {
		text := strings.Join(strings.Fields(html.UnescapeString(l.Text)), " ")
		if text == "" {
			continue
		}
		start, _ := strconv.ParseFloat(l.Start, 64)
		dur, _ := strconv.ParseFloat(l.Dur, 64)
		lines = append(lines, TranscriptLine{Start: start, Duration: dur, Text: text})
	}
	return lines, nil
}

func (c *Client) get(ctx context.Context, rawURL string, limit int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("received status code %d for URL: %s", resp.StatusCode, rawURL)
	}

	return io.ReadAll(io.LimitReader(resp.Body, limit))
}
