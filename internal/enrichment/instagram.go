package enrichment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"
	"time"

	apperrors "campaignhub/internal/errors"
	"campaignhub/internal/httpclient"
	"campaignhub/internal/logging"

	"github.com/PuerkitoBio/goquery"
)

const (
	defaultInstagramWebURL = "https://www.instagram.com"
	defaultInstagramAPIURL = "https://i.instagram.com/api/v1"
	defaultInstagramAppID  = "936619743392459"
	defaultUserAgent       = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	maxPageBytes           = 4 << 20

	SourceWebProfileInfo = "web_profile_info"
	SourceMetaFallback   = "meta_fallback"
)

var (
	followersPattern = regexp.MustCompile(`(?i)([\d.,]+[kmb]?)\s+Followers`)
	followingPattern = regexp.MustCompile(`(?i)([\d.,]+[kmb]?)\s+Following`)
	postsPattern     = regexp.MustCompile(`(?i)([\d.,]+[kmb]?)\s+Posts`)
)

// InstagramProfile is the public data scraped for one account. Counts are nil
// when the source did not expose them.
type InstagramProfile struct {
	Username      string `json:"username"`
	Name          string `json:"name,omitempty"`
	Biography     string `json:"biography,omitempty"`
	ProfilePicURL string `json:"profile_pic_url,omitempty"`
	Followers     *int64 `json:"followers"`
	Following     *int64 `json:"following"`
	Posts         *int64 `json:"posts"`
	IsPrivate     bool   `json:"is_private"`
	IsVerified    bool   `json:"is_verified"`
	Source        string `json:"source"`
}

// InstagramConfig locates the Instagram endpoints.
type InstagramConfig struct {
	WebURL    string
	APIURL    string
	AppID     string
	UserAgent string
	Timeout   time.Duration
}

// InstagramFetcher reads public profile data from Instagram.
type InstagramFetcher struct {
	cfg    InstagramConfig
	client *http.Client
	logger logging.Logger
}

// NewInstagramFetcher builds a fetcher. A nil client gets a default one.
func NewInstagramFetcher(cfg InstagramConfig, client *http.Client, logger logging.Logger) *InstagramFetcher {
	if cfg.WebURL == "" {
		cfg.WebURL = defaultInstagramWebURL
	}
	if cfg.APIURL == "" {
		cfg.APIURL = defaultInstagramAPIURL
	}
	if cfg.AppID == "" {
		cfg.AppID = defaultInstagramAppID
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	cfg.WebURL = strings.TrimRight(cfg.WebURL, "/")
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	logger = logging.OrNop(logger)
	if client == nil {
		client = httpclient.New(cfg.Timeout, logger)
	}
	return &InstagramFetcher{cfg: cfg, client: client, logger: logger}
}

// FetchProfile loads the profile page and then the JSON profile endpoint,
// falling back to the page's meta tags when the endpoint is unusable.
func (f *InstagramFetcher) FetchProfile(ctx context.Context, username string) (InstagramProfile, error) {
	username = cleanUsername(username)
	if username == "" {
		return InstagramProfile{}, fmt.Errorf("instagram username is required: %w", apperrors.ErrInvalidRequest)
	}

	// The JSON endpoint expects the cookies set by the profile page.
	jar, err := cookiejar.New(nil)
	if err != nil {
		return InstagramProfile{}, err
	}
	client := *f.client
	client.Jar = jar

	profileURL := fmt.Sprintf("%s/%s/", f.cfg.WebURL, url.PathEscape(username))
	page, status, _, err := f.get(ctx, &client, profileURL, nil)
	if err != nil {
		return InstagramProfile{}, err
	}
	if status != http.StatusOK {
		return InstagramProfile{}, fmt.Errorf("profile page fetch failed: %d", status)
	}

	apiURL := fmt.Sprintf("%s/users/web_profile_info/?username=%s", f.cfg.APIURL, url.QueryEscape(username))
	body, status, contentType, err := f.get(ctx, &client, apiURL, map[string]string{
		"X-IG-App-ID": f.cfg.AppID,
		"Referer":     profileURL,
		"Accept":      "application/json",
	})
	if err == nil && status == http.StatusOK && strings.Contains(contentType, "application/json") {
		profile, perr := parseWebProfileInfo(body)
		if perr == nil {
			return profile, nil
		}
		f.logger.Debug("instagram profile json for %s unusable: %v", username, perr)
	} else if err != nil {
		f.logger.Debug("instagram profile endpoint for %s failed: %v", username, err)
	}

	return parseProfileMeta(username, page)
}

func (f *InstagramFetcher) get(ctx context.Context, client *http.Client, target string, headers map[string]string) ([]byte, int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, 0, "", err
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, "", &apperrors.TransportError{Op: "GET", URL: target, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	data, err := httpclient.ReadAllWithLimit(resp.Body, maxPageBytes)
	if err != nil {
		return nil, resp.StatusCode, "", &apperrors.TransportError{Op: "read", URL: target, Err: err}
	}
	return data, resp.StatusCode, resp.Header.Get("Content-Type"), nil
}

type webProfileInfo struct {
	Data struct {
		User *struct {
			Username          string `json:"username"`
			FullName          string `json:"full_name"`
			Biography         string `json:"biography"`
			ProfilePicURLHD   string `json:"profile_pic_url_hd"`
			ProfilePicURL     string `json:"profile_pic_url"`
			IsPrivate         bool   `json:"is_private"`
			IsVerified        bool   `json:"is_verified"`
			EdgeFollowedBy    edge   `json:"edge_followed_by"`
			EdgeFollow        edge   `json:"edge_follow"`
			EdgeTimelineMedia edge   `json:"edge_owner_to_timeline_media"`
		} `json:"user"`
	} `json:"data"`
}

type edge struct {
	Count int64 `json:"count"`
}

func parseWebProfileInfo(body []byte) (InstagramProfile, error) {
	var info webProfileInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return InstagramProfile{}, err
	}
	user := info.Data.User
	if user == nil || user.Username == "" {
		return InstagramProfile{}, fmt.Errorf("response has no data.user")
	}
	pic := user.ProfilePicURLHD
	if pic == "" {
		pic = user.ProfilePicURL
	}
	followers, following, posts := user.EdgeFollowedBy.Count, user.EdgeFollow.Count, user.EdgeTimelineMedia.Count
	return InstagramProfile{
		Username:      user.Username,
		Name:          user.FullName,
		Biography:     user.Biography,
		ProfilePicURL: pic,
		Followers:     &followers,
		Following:     &following,
		Posts:         &posts,
		IsPrivate:     user.IsPrivate,
		IsVerified:    user.IsVerified,
		Source:        SourceWebProfileInfo,
	}, nil
}

func parseProfileMeta(username string, page []byte) (InstagramProfile, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return InstagramProfile{}, fmt.Errorf("parse profile page: %w", err)
	}
	profile := InstagramProfile{Username: username, Source: SourceMetaFallback}

	if image, ok := doc.Find(`meta[property="og:image"]`).First().Attr("content"); ok {
		profile.ProfilePicURL = image
	}
	if title, ok := doc.Find(`meta[property="og:title"]`).First().Attr("content"); ok {
		if idx := strings.Index(title, "(@"); idx >= 0 {
			profile.Name = strings.TrimSpace(title[:idx])
		}
	}
	if desc, ok := doc.Find(`meta[name="description"]`).First().Attr("content"); ok {
		profile.Followers = matchCount(followersPattern, desc)
		profile.Following = matchCount(followingPattern, desc)
		profile.Posts = matchCount(postsPattern, desc)
	}
	return profile, nil
}

func matchCount(pattern *regexp.Regexp, text string) *int64 {
	m := pattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	n, ok := ParseCompact(m[1])
	if !ok {
		return nil
	}
	return &n
}
