package enrichment

import (
	"context"
	"strings"

	"campaignhub/internal/logging"
	"campaignhub/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

const (
	defaultBatchLimit  = 10
	defaultBrandFit    = 85
	defaultEngagement  = 2.5
	defaultConcurrency = 4

	statusOK       = "ok"
	statusDegraded = "degraded"
)

// InstagramSource fetches Instagram profiles.
type InstagramSource interface {
	FetchProfile(ctx context.Context, username string) (InstagramProfile, error)
}

// YouTubeSource fetches YouTube channels.
type YouTubeSource interface {
	FetchChannel(ctx context.Context, c Candidate) (YouTubeChannel, error)
}

// DispatcherConfig holds batch limits and record defaults.
type DispatcherConfig struct {
	BatchLimit        int
	DefaultBrandFit   float64
	DefaultEngagement float64
	Concurrency       int
}

// Dispatcher classifies candidates and enriches each through its platform source.
type Dispatcher struct {
	cfg       DispatcherConfig
	instagram InstagramSource
	youtube   YouTubeSource
	logger    logging.Logger
	metrics   *observability.Metrics
	tracer    *observability.TracerProvider
}

// DispatcherOption customises a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = logging.OrNop(logger) }
}

// WithMetrics records fetch outcomes on m.
func WithMetrics(m *observability.Metrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithTracer traces each fetch with tp.
func WithTracer(tp *observability.TracerProvider) DispatcherOption {
	return func(d *Dispatcher) { d.tracer = tp }
}

// NewDispatcher builds a Dispatcher. Either source may be nil, in which case
// candidates for that platform are returned degraded.
func NewDispatcher(cfg DispatcherConfig, instagram InstagramSource, youtube YouTubeSource, opts ...DispatcherOption) *Dispatcher {
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = defaultBatchLimit
	}
	if cfg.DefaultBrandFit <= 0 {
		cfg.DefaultBrandFit = defaultBrandFit
	}
	if cfg.DefaultEngagement <= 0 {
		cfg.DefaultEngagement = defaultEngagement
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	d := &Dispatcher{
		cfg:       cfg,
		instagram: instagram,
		youtube:   youtube,
		logger:    logging.NewComponentLogger("enrichment"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Enrich turns upstream results into records. Only the first BatchLimit
// results are considered and entries without a username are skipped. A failed
// fetch yields a degraded record in the same position, never an error.
func (d *Dispatcher) Enrich(ctx context.Context, platformHint string, results []any) []InfluencerRecord {
	if len(results) > d.cfg.BatchLimit {
		results = results[:d.cfg.BatchLimit]
	}
	candidates := make([]Candidate, 0, len(results))
	for _, item := range results {
		c, ok := ParseCandidate(item)
		if !ok {
			continue
		}
		if !c.hasBrandFit {
			c.BrandFitScore = d.cfg.DefaultBrandFit
		}
		candidates = append(candidates, c)
	}

	records := make([]InfluencerRecord, len(candidates))
	logger := logging.FromContext(ctx, d.logger)
	g := new(errgroup.Group)
	g.SetLimit(d.cfg.Concurrency)
	for idx, c := range candidates {
		g.Go(func() error {
			records[idx] = d.enrichOne(ctx, logger, c, Classify(c, platformHint))
			return nil
		})
	}
	_ = g.Wait()
	return records
}

func (d *Dispatcher) enrichOne(ctx context.Context, logger logging.Logger, c Candidate, platform Platform) InfluencerRecord {
	ctx, span := d.tracer.StartSpan(ctx, observability.SpanEnrichmentFetch, observability.EnrichmentAttrs(string(platform), c.Username)...)
	defer span.End()

	var (
		record InfluencerRecord
		err    error
	)
	switch platform {
	case PlatformYouTube:
		record, err = d.youtubeRecord(ctx, c)
	default:
		record, err = d.instagramRecord(ctx, c)
	}

	status := statusOK
	if err != nil {
		status = statusDegraded
		logger.Warn("%s enrich failed for %s: %v", strings.ToLower(string(platform)), c.Username, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		record = d.degraded(c, platform)
	}
	span.SetAttributes(attribute.String(observability.AttrStatus, status))
	d.metrics.RecordEnrichment(string(platform), status)
	return record
}

func (d *Dispatcher) instagramRecord(ctx context.Context, c Candidate) (InfluencerRecord, error) {
	if d.instagram == nil {
		return InfluencerRecord{}, errSourceUnavailable(PlatformInstagram)
	}
	profile, err := d.instagram.FetchProfile(ctx, c.Username)
	if err != nil {
		return InfluencerRecord{}, err
	}
	username := firstNonEmpty(profile.Username, c.Username)
	return InfluencerRecord{
		ID:                "insta_" + c.Username,
		Platform:          PlatformInstagram,
		Username:          username,
		Name:              firstNonEmpty(profile.Name, username),
		Followers:         deref(profile.Followers),
		Following:         deref(profile.Following),
		Posts:             deref(profile.Posts),
		Avatar:            profile.ProfilePicURL,
		Verified:          profile.IsVerified,
		Biography:         profile.Biography,
		IsPrivate:         profile.IsPrivate,
		Source:            profile.Source,
		BrandFitScore:     c.BrandFitScore,
		Summary:           c.Summary,
		AvgEngagementRate: d.cfg.DefaultEngagement,
		ProfileURL:        instagramProfileURL(username),
	}, nil
}

func (d *Dispatcher) youtubeRecord(ctx context.Context, c Candidate) (InfluencerRecord, error) {
	if d.youtube == nil {
		return InfluencerRecord{}, errSourceUnavailable(PlatformYouTube)
	}
	channel, err := d.youtube.FetchChannel(ctx, c)
	if err != nil {
		return InfluencerRecord{}, err
	}
	ref := c
	if ref.ChannelID == "" {
		ref.ChannelID = channel.ChannelID
	}
	return InfluencerRecord{
		ID:                "yt_" + c.Username,
		Platform:          PlatformYouTube,
		Username:          c.Username,
		Name:              firstNonEmpty(channel.Title, c.Username),
		Followers:         channel.Subscribers,
		Posts:             channel.Videos,
		Avatar:            channel.Thumbnail,
		Biography:         channel.Description,
		ChannelID:         ref.ChannelID,
		ViewCount:         channel.Views,
		CustomURL:         channel.CustomURL,
		BrandFitScore:     c.BrandFitScore,
		Summary:           c.Summary,
		AvgEngagementRate: d.cfg.DefaultEngagement,
		ProfileURL:        youtubeProfileURL(ref, channel.CustomURL),
	}, nil
}

func (d *Dispatcher) degraded(c Candidate, platform Platform) InfluencerRecord {
	record := InfluencerRecord{
		Platform:          platform,
		Username:          c.Username,
		Name:              c.Username,
		BrandFitScore:     c.BrandFitScore,
		Summary:           c.Summary,
		AvgEngagementRate: d.cfg.DefaultEngagement,
		Degraded:          true,
	}
	if platform == PlatformYouTube {
		record.ID = "yt_" + c.Username
		record.ChannelID = c.ChannelID
		record.ProfileURL = youtubeProfileURL(c, "")
	} else {
		record.ID = "insta_" + c.Username
		record.ProfileURL = instagramProfileURL(c.Username)
	}
	return record
}

type sourceUnavailableError struct {
	platform Platform
}

func (e sourceUnavailableError) Error() string {
	return strings.ToLower(string(e.platform)) + " source is not configured"
}

func errSourceUnavailable(p Platform) error {
	return sourceUnavailableError{platform: p}
}

func deref(n *int64) int64 {
	if n == nil {
		return 0
	}
	return *n
}
