package enrichment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "campaignhub/internal/errors"
	"campaignhub/internal/httpclient"
	"campaignhub/internal/logging"
)

const defaultYouTubeAPIURL = "https://www.googleapis.com/youtube/v3"

// ErrNoAPIKey is returned when YouTube lookups are attempted without a key.
var ErrNoAPIKey = errors.New("youtube api key is not configured")

// YouTubeChannel is the subset of channel data used for records.
type YouTubeChannel struct {
	ChannelID   string
	Title       string
	Description string
	CustomURL   string
	Thumbnail   string
	Subscribers int64
	Videos      int64
	Views       int64
}

// YouTubeConfig configures the Data API client.
type YouTubeConfig struct {
	APIURL  string
	APIKey  string
	Timeout time.Duration
}

// YouTubeFetcher reads channel statistics from the YouTube Data API.
type YouTubeFetcher struct {
	cfg    YouTubeConfig
	client *http.Client
	logger logging.Logger
}

// NewYouTubeFetcher builds a fetcher. A nil client gets a default one.
func NewYouTubeFetcher(cfg YouTubeConfig, client *http.Client, logger logging.Logger) *YouTubeFetcher {
	if cfg.APIURL == "" {
		cfg.APIURL = defaultYouTubeAPIURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	logger = logging.OrNop(logger)
	if client == nil {
		client = httpclient.New(cfg.Timeout, logger)
	}
	return &YouTubeFetcher{cfg: cfg, client: client, logger: logger}
}

type channelsResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			CustomURL   string `json:"customUrl"`
			Thumbnails  map[string]struct {
				URL string `json:"url"`
			} `json:"thumbnails"`
		} `json:"snippet"`
		Statistics struct {
			SubscriberCount string `json:"subscriberCount"`
			VideoCount      string `json:"videoCount"`
			ViewCount       string `json:"viewCount"`
		} `json:"statistics"`
	} `json:"items"`
}

// FetchChannel looks a channel up by id when the candidate carries one, and by
// handle otherwise.
func (f *YouTubeFetcher) FetchChannel(ctx context.Context, c Candidate) (YouTubeChannel, error) {
	if strings.TrimSpace(f.cfg.APIKey) == "" {
		return YouTubeChannel{}, ErrNoAPIKey
	}
	query := url.Values{}
	query.Set("part", "snippet,statistics")
	query.Set("key", f.cfg.APIKey)
	switch {
	case c.ChannelID != "":
		query.Set("id", c.ChannelID)
	case strings.HasPrefix(c.Username, "UC"):
		query.Set("id", c.Username)
	case c.Username != "":
		query.Set("forHandle", "@"+c.Username)
	default:
		return YouTubeChannel{}, fmt.Errorf("youtube channel reference is required: %w", apperrors.ErrInvalidRequest)
	}

	endpoint := f.cfg.APIURL + "/channels?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return YouTubeChannel{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		// The key is part of the query string; keep the URL out of the error.
		return YouTubeChannel{}, &apperrors.TransportError{Op: "GET", URL: f.cfg.APIURL + "/channels", Err: redactURLError(err)}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := httpclient.ReadAllWithLimit(resp.Body, maxPageBytes)
	if err != nil {
		return YouTubeChannel{}, fmt.Errorf("read youtube response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return YouTubeChannel{}, fmt.Errorf("youtube api returned status %d", resp.StatusCode)
	}

	var decoded channelsResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return YouTubeChannel{}, fmt.Errorf("decode youtube response: %w", err)
	}
	if len(decoded.Items) == 0 {
		return YouTubeChannel{}, fmt.Errorf("youtube channel %q: %w", firstNonEmpty(c.ChannelID, c.Username), apperrors.ErrNotFound)
	}

	item := decoded.Items[0]
	channel := YouTubeChannel{
		ChannelID:   item.ID,
		Title:       item.Snippet.Title,
		Description: item.Snippet.Description,
		CustomURL:   item.Snippet.CustomURL,
	}
	for _, size := range []string{"high", "medium", "default"} {
		if thumb, ok := item.Snippet.Thumbnails[size]; ok && thumb.URL != "" {
			channel.Thumbnail = thumb.URL
			break
		}
	}
	channel.Subscribers, _ = ParseCompact(item.Statistics.SubscriberCount)
	channel.Videos, _ = ParseCompact(item.Statistics.VideoCount)
	channel.Views, _ = ParseCompact(item.Statistics.ViewCount)
	return channel, nil
}

func redactURLError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
