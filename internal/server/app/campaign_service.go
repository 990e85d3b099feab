package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"campaignhub/internal/agent"
	"campaignhub/internal/enrichment"
	apperrors "campaignhub/internal/errors"
	"campaignhub/internal/logging"
	"campaignhub/internal/store"
	"campaignhub/internal/stream"
	id "campaignhub/internal/utils/id"
)

const defaultUserQuery = "tech influencers, indian, male"

// Agent invokes remote agents.
type Agent interface {
	InvokeWithPolicy(ctx context.Context, agentID string, payload map[string]any, policy stream.Policy) (*agent.Result, error)
}

// Enricher turns discovery results into influencer records.
type Enricher interface {
	Enrich(ctx context.Context, platformHint string, results []any) []enrichment.InfluencerRecord
}

// ProfileFetcher loads a single Instagram profile.
type ProfileFetcher interface {
	FetchProfile(ctx context.Context, username string) (enrichment.InstagramProfile, error)
}

// CampaignService implements the campaign workflow on top of the agent
// platform, the enrichment sources and the local store.
type CampaignService struct {
	agents   Agent
	enricher Enricher
	profiles ProfileFetcher
	store    *store.Store
	logger   logging.Logger
}

// NewCampaignService wires the service dependencies.
func NewCampaignService(agents Agent, enricher Enricher, profiles ProfileFetcher, st *store.Store, logger logging.Logger) *CampaignService {
	if logging.IsNil(logger) {
		logger = logging.NewComponentLogger("campaign")
	}
	return &CampaignService{agents: agents, enricher: enricher, profiles: profiles, store: st, logger: logger}
}

// CreateCampaignInput is the campaign form submitted by clients.
type CreateCampaignInput struct {
	CampaignName   string `json:"campaign_name"`
	Goal           string `json:"goal"`
	TargetAudience string `json:"target_audience"`
	BrandName      string `json:"brand_name"`
	Niche          string `json:"niche"`
	BrandWebsite   string `json:"brand_website"`
	Platform       string `json:"platform"`
	Budget         any    `json:"budget"`
}

// CreateCampaignResult reports where the campaign was created.
type CreateCampaignResult struct {
	CampaignID string
	Message    string
	Campaign   store.Campaign
}

// Campaign creation messages.
const (
	MsgCampaignCreated         = "Campaign created successfully"
	MsgCampaignLocal           = "Campaign created locally"
	MsgCampaignLocalNoAPI      = "Campaign created locally (API unavailable)"
	MsgCampaignLocalAfterError = "Campaign created locally (API error)"
)

// CreateCampaign stores the campaign locally and registers it with the agent.
// The local record always survives; the message says whether the agent
// confirmed it.
func (s *CampaignService) CreateCampaign(ctx context.Context, in CreateCampaignInput) (CreateCampaignResult, error) {
	campaign, err := s.store.CreateCampaign(ctx, store.Campaign{
		Name:           in.CampaignName,
		Goal:           in.Goal,
		TargetAudience: in.TargetAudience,
		BrandName:      in.BrandName,
		Niche:          in.Niche,
		BrandWebsite:   in.BrandWebsite,
		Platform:       in.Platform,
		Budget:         in.Budget,
	})
	if err != nil {
		return CreateCampaignResult{}, FailedError("Failed to store campaign", err)
	}
	ctx = id.WithCampaignID(ctx, campaign.ID)
	logger := logging.FromContext(ctx, s.logger)

	unlock := s.store.Lock(campaign.ID)
	defer unlock()

	payload := map[string]any{
		"campaign_data": campaignPayload(campaign),
		"action":        "create_campaign",
	}
	result := CreateCampaignResult{CampaignID: campaign.ID, Campaign: campaign, Message: MsgCampaignLocal}
	res, err := s.agents.InvokeWithPolicy(ctx, agent.CreateCampaign, payload, stream.FirstMatch(stream.FieldTruthy("success")))
	switch {
	case err != nil && apperrors.IsAuth(err):
		logger.Warn("create campaign %s: agent unavailable: %v", campaign.ID, err)
		result.Message = MsgCampaignLocalNoAPI
	case err != nil:
		logger.Warn("create campaign %s: agent error: %v", campaign.ID, err)
		result.Message = MsgCampaignLocalAfterError
	case res != nil && stream.Truthy(res.Raw["success"]):
		result.Message = MsgCampaignCreated
	}
	return result, nil
}

func campaignPayload(c store.Campaign) map[string]any {
	return map[string]any{
		"campaign_name":   c.Name,
		"goal":            c.Goal,
		"created_on":      c.CreatedOn,
		"target_audience": c.TargetAudience,
		"brand_name":      c.BrandName,
		"niche":           c.Niche,
		"brand_website":   c.BrandWebsite,
		"platform":        c.Platform,
		"budget":          c.Budget,
	}
}

// ListCampaigns returns the campaign rows known to the agent platform. When
// the platform has no rows, campaigns created locally are listed instead.
func (s *CampaignService) ListCampaigns(ctx context.Context) ([]any, error) {
	res, err := s.agents.InvokeWithPolicy(ctx, agent.ListCampaigns, map[string]any{}, stream.FirstMatch(stream.FieldTruthy("outputs", "res_rows")))
	if err != nil {
		if apperrors.IsAuth(err) {
			return nil, FailedError("Failed to get access token", err)
		}
		return nil, FailedError("Failed to fetch campaigns", err)
	}
	var list []any
	if res != nil {
		rows, _ := stream.Lookup(res.Raw, "outputs", "res_rows")
		list, _ = rows.([]any)
	}
	if len(list) > 0 {
		return list, nil
	}
	local := s.store.Campaigns(ctx)
	if len(local) == 0 {
		return nil, NotFoundError("No campaigns found")
	}
	logging.FromContext(ctx, s.logger).Info("campaign list agent returned no rows, listing %d local campaigns", len(local))
	list = make([]any, 0, len(local))
	for _, c := range local {
		row := campaignPayload(c)
		row["campaign_id"] = c.ID
		row["source"] = "local"
		list = append(list, row)
	}
	return list, nil
}

// DiscoveryFilters narrow influencer discovery.
type DiscoveryFilters struct {
	Niche            string `json:"niche"`
	AudienceLocation string `json:"audience_location"`
	AudienceGender   string `json:"audience_gender"`
	Platform         string `json:"platform"`
}

// DiscoverInput is the discovery request.
type DiscoverInput struct {
	Filters    DiscoveryFilters `json:"filters"`
	CampaignID string           `json:"campaign_id"`
}

// DiscoverResult is an enriched, stored discovery batch.
type DiscoverResult struct {
	BatchKey    string
	Query       string
	Platform    string
	Influencers []enrichment.InfluencerRecord
}

// UserQuery builds the discovery query from the non-empty filters.
func (f DiscoveryFilters) UserQuery() string {
	parts := make([]string, 0, 4)
	for _, p := range []string{f.Niche, f.AudienceLocation, f.AudienceGender, strings.ToLower(f.Platform)} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return defaultUserQuery
	}
	return strings.Join(parts, ", ")
}

// DiscoverInfluencers asks the discovery agent for candidates, enriches them
// and stores the batch under the campaign id or a generated key.
func (s *CampaignService) DiscoverInfluencers(ctx context.Context, in DiscoverInput) (DiscoverResult, error) {
	campaignID := strings.TrimSpace(in.CampaignID)
	if campaignID != "" {
		if _, err := s.store.Campaign(ctx, campaignID); err != nil {
			return DiscoverResult{}, NotFoundError("Campaign not found")
		}
		ctx = id.WithCampaignID(ctx, campaignID)
		unlock := s.store.Lock(campaignID)
		defer unlock()
	}

	query := in.Filters.UserQuery()
	res, err := s.agents.InvokeWithPolicy(ctx, agent.DiscoverInfluencers, map[string]any{"user_query": query}, stream.Policy{Accept: stream.FieldTruthy("outputs")})
	if err != nil {
		if apperrors.IsAuth(err) {
			return DiscoverResult{}, UpstreamError("Token error", err)
		}
		return DiscoverResult{}, FailedError("Failed to discover influencers", err)
	}
	if res == nil || res.Outputs == nil {
		return DiscoverResult{}, UpstreamError("No results from QRaptor", nil)
	}
	results, ok := res.Outputs["results"].([]any)
	if !ok || len(results) == 0 {
		return DiscoverResult{}, UpstreamError("No results from QRaptor", nil)
	}
	platform, _ := res.Outputs["platform"].(string)
	platform = strings.ToLower(strings.TrimSpace(platform))

	records := s.enricher.Enrich(ctx, platform, results)
	batch := s.store.PutBatch(ctx, store.Batch{
		Key:         campaignID,
		CampaignID:  campaignID,
		Query:       query,
		Influencers: records,
	})
	logging.FromContext(ctx, s.logger).Info("discovered %d influencers for %q (batch %s)", len(records), query, batch.Key)
	return DiscoverResult{BatchKey: batch.Key, Query: query, Platform: platform, Influencers: batch.Influencers}, nil
}

// ActionResult is an agent acknowledgement for a campaign action.
type ActionResult struct {
	Message       string
	AgentResponse map[string]any
}

// AddInfluencers attaches influencers to a campaign through the agent.
func (s *CampaignService) AddInfluencers(ctx context.Context, campaignID string, influencerIDs []string) (ActionResult, error) {
	influencerIDs = nonNil(influencerIDs)
	res, err := s.campaignAction(ctx, campaignID, agent.AddInfluencers, "Failed to add influencers via agent", map[string]any{
		"campaign_id":    campaignID,
		"influencer_ids": influencerIDs,
		"action":         "add_influencers",
	})
	if err != nil {
		return ActionResult{}, err
	}
	return ActionResult{Message: fmt.Sprintf("Added %d influencers to campaign", len(influencerIDs)), AgentResponse: res.Raw}, nil
}

// FetchCampaignData returns the agent's view of a campaign.
func (s *CampaignService) FetchCampaignData(ctx context.Context, campaignID string) (map[string]any, error) {
	res, err := s.campaignAction(ctx, campaignID, agent.FetchCampaignData, "Failed to fetch campaign data via agent", map[string]any{
		"campaign_id": campaignID,
		"action":      "fetch_campaign_data",
	})
	if err != nil {
		return nil, err
	}
	return res.Raw, nil
}

// SendEmails asks the agent to email influencers using template.
func (s *CampaignService) SendEmails(ctx context.Context, campaignID string, influencerIDs []string, template any) (ActionResult, error) {
	influencerIDs = nonNil(influencerIDs)
	res, err := s.campaignAction(ctx, campaignID, agent.SendEmails, "Failed to send emails via agent", map[string]any{
		"campaign_id":    campaignID,
		"influencer_ids": influencerIDs,
		"email_template": template,
		"action":         "send_emails",
	})
	if err != nil {
		return ActionResult{}, err
	}
	return ActionResult{Message: fmt.Sprintf("Emails sent to %d influencers", len(influencerIDs)), AgentResponse: res.Raw}, nil
}

// AnalyzeCampaign runs the analysis agent and keeps its result.
func (s *CampaignService) AnalyzeCampaign(ctx context.Context, campaignID string) (map[string]any, error) {
	var analysis map[string]any
	_, err := s.campaignActionLocked(ctx, campaignID, agent.AnalyzeCampaign, "Failed to analyze campaign via agent", map[string]any{
		"campaign_id": campaignID,
		"action":      "analyze_campaign",
	}, func(res *agent.Result) {
		analysis = res.Raw
		s.store.PutAnalysis(ctx, campaignID, analysis)
	})
	if err != nil {
		return nil, err
	}
	return analysis, nil
}

// StoredData returns everything held locally.
func (s *CampaignService) StoredData(ctx context.Context) store.Snapshot {
	return s.store.Snapshot(ctx)
}

// InstagramProfile fetches one public Instagram profile.
func (s *CampaignService) InstagramProfile(ctx context.Context, username string) (enrichment.InstagramProfile, error) {
	username = strings.TrimLeft(strings.TrimSpace(username), "@")
	if username == "" {
		return enrichment.InstagramProfile{}, ValidationError("username is required")
	}
	if s.profiles == nil {
		return enrichment.InstagramProfile{}, FailedError("Instagram profile source is not configured", nil)
	}
	profile, err := s.profiles.FetchProfile(ctx, username)
	if err != nil {
		return enrichment.InstagramProfile{}, FailedError(err.Error(), err)
	}
	return profile, nil
}

// InvokeAgent runs any registered agent with a raw payload.
func (s *CampaignService) InvokeAgent(ctx context.Context, agentID string, payload map[string]any) (*agent.Result, error) {
	res, err := s.agents.InvokeWithPolicy(ctx, agentID, payload, stream.TakeLast())
	switch {
	case errors.Is(err, apperrors.ErrInvalidRequest):
		return nil, ValidationError(err.Error())
	case err != nil:
		return nil, FailedError("Agent invocation failed", err)
	case res == nil:
		return nil, FailedError("Agent produced no result", nil)
	}
	return res, nil
}

func (s *CampaignService) campaignAction(ctx context.Context, campaignID, agentName, failure string, payload map[string]any) (*agent.Result, error) {
	return s.campaignActionLocked(ctx, campaignID, agentName, failure, payload, nil)
}

// campaignActionLocked checks the campaign exists, then invokes the agent while
// holding the campaign lock. onResult runs under the same lock.
func (s *CampaignService) campaignActionLocked(ctx context.Context, campaignID, agentName, failure string, payload map[string]any, onResult func(*agent.Result)) (*agent.Result, error) {
	campaignID = strings.TrimSpace(campaignID)
	if campaignID == "" {
		return nil, NotFoundError("Campaign not found")
	}
	if _, err := s.store.Campaign(ctx, campaignID); err != nil {
		return nil, NotFoundError("Campaign not found")
	}
	ctx = id.WithCampaignID(ctx, campaignID)
	unlock := s.store.Lock(campaignID)
	defer unlock()

	res, err := s.agents.InvokeWithPolicy(ctx, agentName, payload, stream.TakeLast())
	if err != nil {
		logging.FromContext(ctx, s.logger).Warn("%s for campaign %s: %v", agentName, campaignID, err)
		return nil, FailedError(failure, err)
	}
	if res == nil {
		return nil, FailedError(failure, nil)
	}
	if onResult != nil {
		onResult(res)
	}
	return res, nil
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
