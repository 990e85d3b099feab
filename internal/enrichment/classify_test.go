package enrichment

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		c    Candidate
		hint string
		want Platform
	}{
		{"instagram hint", Candidate{Username: "techguru"}, "instagram", PlatformInstagram},
		{"insta prefix mixed case", Candidate{Username: "techguru"}, " Insta ", PlatformInstagram},
		{"youtube hint", Candidate{Username: "techguru"}, "YouTube", PlatformYouTube},
		{"contains you", Candidate{Username: "techguru"}, "yt/you", PlatformYouTube},
		{"empty hint", Candidate{Username: "techguru"}, "", PlatformInstagram},
		{"unknown hint", Candidate{Username: "techguru"}, "tiktok", PlatformInstagram},
		{"channel id overrides hint", Candidate{Username: "techguru", ChannelID: "UCabc"}, "instagram", PlatformYouTube},
		{"UC identifier overrides hint", Candidate{Username: "UC_x3k"}, "instagram", PlatformYouTube},
		{"candidate platform wins over batch hint", Candidate{Username: "techguru", Platform: "youtube"}, "instagram", PlatformYouTube},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.c, tt.hint))
		})
	}
}

func TestParseCompact(t *testing.T) {
	tests := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"12.3k", 12300, true},
		{"1,234", 1234, true},
		{"2m", 2000000, true},
		{"2M", 2000000, true},
		{"1b", 1000000000, true},
		{"1.5K", 1500, true},
		{" 987 ", 987, true},
		{"0", 0, true},
		{"1e3", 1000, true},
		{"", 0, false},
		{"abc", 0, false},
		{"12x", 0, false},
		{"k", 0, false},
		{"-5", 0, false},
		{"9223372036854775807", math.MaxInt64, true},
		{"9,007,199,254,740,993", 9007199254740993, true},
		{"9223372036854775808", 0, false},
		{"99999999999b", 0, false},
		{"1e30", 0, false},
		{"9223372036854775.808k", 0, false},
		{"NaN", 0, false},
		{"inf", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseCompact(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParseCandidate(t *testing.T) {
	c, ok := ParseCandidate(map[string]any{"username": "@techguru", "brand_fit_score": float64(92), "summary": "Gadget reviews"})
	assert.True(t, ok)
	assert.Equal(t, "techguru", c.Username)
	assert.Equal(t, float64(92), c.BrandFitScore)
	assert.True(t, c.hasBrandFit)
	assert.Equal(t, "Gadget reviews", c.Summary)

	c, ok = ParseCandidate("@@creator ")
	assert.True(t, ok)
	assert.Equal(t, "creator", c.Username)
	assert.False(t, c.hasBrandFit)

	c, ok = ParseCandidate(map[string]any{"channel_id": "UCxyz"})
	assert.True(t, ok)
	assert.Equal(t, "UCxyz", c.Username)
	assert.Equal(t, "UCxyz", c.ChannelID)

	_, ok = ParseCandidate(map[string]any{"username": "  "})
	assert.False(t, ok)
	_, ok = ParseCandidate(nil)
	assert.False(t, ok)
	_, ok = ParseCandidate("@")
	assert.False(t, ok)
}
