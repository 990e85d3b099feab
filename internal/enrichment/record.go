// Package enrichment turns discovery candidates into influencer records using
// public profile data from Instagram and YouTube.
package enrichment

import (
	"fmt"
	"strings"
)

// Platform identifies where an influencer publishes.
type Platform string

const (
	PlatformInstagram Platform = "Instagram"
	PlatformYouTube   Platform = "YouTube"
)

// InfluencerRecord is the normalised profile returned to clients.
type InfluencerRecord struct {
	ID                string   `json:"id"`
	Platform          Platform `json:"platform"`
	Username          string   `json:"username"`
	Name              string   `json:"name"`
	Followers         int64    `json:"followers"`
	Following         int64    `json:"following"`
	Posts             int64    `json:"posts"`
	Avatar            string   `json:"avatar"`
	BrandFitScore     float64  `json:"brand_fit_score"`
	Summary           string   `json:"summary"`
	AvgEngagementRate float64  `json:"avg_engagement_rate"`
	ProfileURL        string   `json:"profile_url"`

	// Instagram
	Verified  bool   `json:"verified,omitempty"`
	Biography string `json:"biography,omitempty"`
	IsPrivate bool   `json:"is_private,omitempty"`
	Source    string `json:"source,omitempty"`

	// YouTube
	ChannelID string `json:"channel_id,omitempty"`
	ViewCount int64  `json:"view_count,omitempty"`
	CustomURL string `json:"custom_url,omitempty"`

	Degraded bool `json:"degraded,omitempty"`
}

// Candidate is one upstream discovery result before enrichment.
type Candidate struct {
	Username      string
	ChannelID     string
	Platform      string
	Summary       string
	BrandFitScore float64
	hasBrandFit   bool
}

// ParseCandidate accepts an upstream result that is either an object or a bare
// username string. It reports false when no username can be extracted.
func ParseCandidate(item any) (Candidate, bool) {
	var c Candidate
	switch v := item.(type) {
	case map[string]any:
		c.Username = cleanUsername(stringField(v, "username"))
		c.ChannelID = strings.TrimSpace(stringField(v, "channel_id"))
		c.Platform = strings.TrimSpace(stringField(v, "platform"))
		c.Summary = stringField(v, "summary")
		if score, ok := numberField(v, "brand_fit_score"); ok {
			c.BrandFitScore = score
			c.hasBrandFit = true
		}
		if c.Username == "" && c.ChannelID != "" {
			c.Username = c.ChannelID
		}
	case string:
		c.Username = cleanUsername(v)
	case nil:
		return c, false
	default:
		c.Username = cleanUsername(fmt.Sprint(v))
	}
	return c, c.Username != ""
}

func cleanUsername(s string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(s), "@"))
}

func stringField(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func numberField(m map[string]any, key string) (float64, bool) {
	switch v := m[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		n, ok := ParseCompact(v)
		return float64(n), ok
	default:
		return 0, false
	}
}

func instagramProfileURL(username string) string {
	return "https://instagram.com/" + username
}

func youtubeProfileURL(c Candidate, customURL string) string {
	switch {
	case customURL != "":
		return "https://www.youtube.com/" + strings.TrimPrefix(customURL, "/")
	case c.ChannelID != "":
		return "https://www.youtube.com/channel/" + c.ChannelID
	default:
		return "https://www.youtube.com/@" + c.Username
	}
}
