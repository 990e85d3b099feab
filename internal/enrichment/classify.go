package enrichment

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Classify picks the platform for a candidate. Identifiers override the
// upstream hint: a channel id or a UC-prefixed identifier is YouTube.
func Classify(c Candidate, hint string) Platform {
	if c.ChannelID != "" || strings.HasPrefix(c.Username, "UC") {
		return PlatformYouTube
	}
	h := strings.ToLower(strings.TrimSpace(c.Platform))
	if h == "" {
		h = strings.ToLower(strings.TrimSpace(hint))
	}
	switch {
	case strings.HasPrefix(h, "insta"):
		return PlatformInstagram
	case strings.Contains(h, "you"):
		return PlatformYouTube
	default:
		return PlatformInstagram
	}
}

var compactPattern = regexp.MustCompile(`^(\d+(?:\.\d+)?)([kmb])?$`)

// maxCount is 2^63 as a float; anything at or above it does not fit an int64.
const maxCount = float64(math.MaxInt64)

// ParseCompact parses abbreviated counts such as "12.3k", "1,234" or "2M".
// Negative, malformed and out-of-range input reports false.
func ParseCompact(s string) (int64, bool) {
	s = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), ",", "")
	if s == "" {
		return 0, false
	}
	if isDigits(s) {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	m := compactPattern.FindStringSubmatch(s)
	if m == nil {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return toCount(f)
	}
	num, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	switch m[2] {
	case "k":
		num *= 1e3
	case "m":
		num *= 1e6
	case "b":
		num *= 1e9
	}
	return toCount(math.Round(num))
}

func toCount(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f >= maxCount {
		return 0, false
	}
	return int64(f), true
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return s != ""
}
