package enrichment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"campaignhub/internal/logging"
	"campaignhub/internal/observability"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type fakeInstagram struct {
	mu       sync.Mutex
	calls    []string
	failures map[string]error
}

func (f *fakeInstagram) FetchProfile(_ context.Context, username string) (InstagramProfile, error) {
	f.mu.Lock()
	f.calls = append(f.calls, username)
	f.mu.Unlock()
	if err := f.failures[username]; err != nil {
		return InstagramProfile{}, err
	}
	followers, following, posts := int64(1000), int64(10), int64(42)
	return InstagramProfile{
		Username:      username,
		Name:          strings.ToUpper(username),
		ProfilePicURL: "https://cdn.example.com/" + username + ".jpg",
		Followers:     &followers,
		Following:     &following,
		Posts:         &posts,
		IsVerified:    true,
		Source:        SourceWebProfileInfo,
	}, nil
}

func (f *fakeInstagram) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeYouTube struct {
	err error
}

func (f *fakeYouTube) FetchChannel(_ context.Context, c Candidate) (YouTubeChannel, error) {
	if f.err != nil {
		return YouTubeChannel{}, f.err
	}
	return YouTubeChannel{ChannelID: "UC-" + c.Username, Title: "Channel " + c.Username, Subscribers: 5000, Videos: 12, Views: 99}, nil
}

func TestEnrichInstagramBatch(t *testing.T) {
	ig := &fakeInstagram{}
	d := NewDispatcher(DispatcherConfig{}, ig, &fakeYouTube{}, WithLogger(logging.Nop()))

	records := d.Enrich(context.Background(), "instagram", []any{
		map[string]any{"username": "@alpha", "brand_fit_score": float64(91), "summary": "Tech"},
		"beta",
		map[string]any{"username": ""},
	})
	require.Len(t, records, 2)

	a := records[0]
	assert.Equal(t, "insta_alpha", a.ID)
	assert.Equal(t, PlatformInstagram, a.Platform)
	assert.Equal(t, "ALPHA", a.Name)
	assert.Equal(t, int64(1000), a.Followers)
	assert.Equal(t, float64(91), a.BrandFitScore)
	assert.Equal(t, "Tech", a.Summary)
	assert.Equal(t, 2.5, a.AvgEngagementRate)
	assert.Equal(t, "https://instagram.com/alpha", a.ProfileURL)
	assert.True(t, a.Verified)
	assert.False(t, a.Degraded)

	b := records[1]
	assert.Equal(t, "insta_beta", b.ID)
	assert.Equal(t, float64(85), b.BrandFitScore)
	assert.Empty(t, b.Summary)
}

func TestEnrichCapsBatchAtLimit(t *testing.T) {
	ig := &fakeInstagram{}
	d := NewDispatcher(DispatcherConfig{}, ig, nil, WithLogger(logging.Nop()))

	results := make([]any, 0, 15)
	for i := 0; i < 15; i++ {
		results = append(results, fmt.Sprintf("user%02d", i))
	}
	records := d.Enrich(context.Background(), "instagram", results)

	require.Len(t, records, 10)
	assert.Equal(t, 10, ig.callCount())
	for i, r := range records {
		assert.Equal(t, fmt.Sprintf("insta_user%02d", i), r.ID, "order must follow upstream order")
	}
}

func TestEnrichSkippedEntriesCountTowardLimit(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{BatchLimit: 3}, &fakeInstagram{}, nil, WithLogger(logging.Nop()))

	records := d.Enrich(context.Background(), "", []any{"a", "", "b", "c"})
	require.Len(t, records, 2)
	assert.Equal(t, "insta_a", records[0].ID)
	assert.Equal(t, "insta_b", records[1].ID)
}

func TestEnrichDegradesFailedFetches(t *testing.T) {
	ig := &fakeInstagram{failures: map[string]error{"broken": errors.New("profile page fetch failed: 429")}}
	d := NewDispatcher(DispatcherConfig{}, ig, &fakeYouTube{}, WithLogger(logging.Nop()))

	records := d.Enrich(context.Background(), "instagram", []any{"ok1", "broken", "ok2"})
	require.Len(t, records, 3)

	bad := records[1]
	assert.True(t, bad.Degraded)
	assert.Equal(t, "insta_broken", bad.ID)
	assert.Equal(t, PlatformInstagram, bad.Platform)
	assert.Equal(t, "broken", bad.Username)
	assert.Equal(t, "broken", bad.Name)
	assert.Zero(t, bad.Followers)
	assert.Zero(t, bad.Following)
	assert.Zero(t, bad.Posts)
	assert.Empty(t, bad.Avatar)
	assert.Equal(t, float64(85), bad.BrandFitScore)
	assert.Equal(t, 2.5, bad.AvgEngagementRate)
	assert.Equal(t, "https://instagram.com/broken", bad.ProfileURL)

	assert.False(t, records[0].Degraded)
	assert.False(t, records[2].Degraded)
}

func TestEnrichYouTube(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{}, &fakeInstagram{}, &fakeYouTube{}, WithLogger(logging.Nop()))

	records := d.Enrich(context.Background(), "youtube", []any{"creator", map[string]any{"username": "other", "channel_id": "UCother"}})
	require.Len(t, records, 2)

	assert.Equal(t, "yt_creator", records[0].ID)
	assert.Equal(t, PlatformYouTube, records[0].Platform)
	assert.Equal(t, "Channel creator", records[0].Name)
	assert.Equal(t, int64(5000), records[0].Followers)
	assert.Equal(t, "UC-creator", records[0].ChannelID)
	assert.Equal(t, "https://www.youtube.com/channel/UC-creator", records[0].ProfileURL)

	assert.Equal(t, "UCother", records[1].ChannelID)
}

func TestEnrichYouTubeWithoutKeyIsDegraded(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{}, &fakeInstagram{}, NewYouTubeFetcher(YouTubeConfig{}, nil, nil), WithLogger(logging.Nop()))

	records := d.Enrich(context.Background(), "instagram", []any{map[string]any{"username": "chan", "channel_id": "UCchan"}})
	require.Len(t, records, 1)
	assert.True(t, records[0].Degraded)
	assert.Equal(t, "yt_chan", records[0].ID)
	assert.Equal(t, PlatformYouTube, records[0].Platform)
	assert.Equal(t, "https://www.youtube.com/channel/UCchan", records[0].ProfileURL)
}

func TestEnrichMissingSourceIsDegraded(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{}, nil, nil, WithLogger(logging.Nop()))

	records := d.Enrich(context.Background(), "instagram", []any{"solo"})
	require.Len(t, records, 1)
	assert.True(t, records[0].Degraded)
}

func TestEnrichEmptyInput(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{}, &fakeInstagram{}, nil, WithLogger(logging.Nop()))
	assert.Empty(t, d.Enrich(context.Background(), "instagram", nil))
}

func TestEnrichRecordsMetricsAndSpans(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := observability.MustNewMetrics(reg)
	exporter := tracetest.NewInMemoryExporter()
	ig := &fakeInstagram{failures: map[string]error{"down": errors.New("boom")}}
	d := NewDispatcher(DispatcherConfig{}, ig, nil,
		WithLogger(logging.Nop()),
		WithMetrics(metrics),
		WithTracer(observability.NewTracerProviderWithExporter(exporter)),
	)

	d.Enrich(context.Background(), "instagram", []any{"up", "down"})

	expected := `
# HELP campaignhub_enrichment_fetches_total Profile enrichment attempts by platform and status (ok, degraded).
# TYPE campaignhub_enrichment_fetches_total counter
campaignhub_enrichment_fetches_total{platform="Instagram",status="degraded"} 1
campaignhub_enrichment_fetches_total{platform="Instagram",status="ok"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "campaignhub_enrichment_fetches_total"))

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	for _, span := range spans {
		assert.Equal(t, observability.SpanEnrichmentFetch, span.Name)
	}
}
