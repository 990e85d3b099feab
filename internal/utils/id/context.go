package id

import "context"

type contextKey string

const (
	logKey      contextKey = "campaignhub_log_id"
	campaignKey contextKey = "campaignhub_campaign_id"
)

// WithLogID stores the provided log identifier on the context.
func WithLogID(ctx context.Context, logID string) context.Context {
	if logID == "" {
		return ctx
	}
	return context.WithValue(ctx, logKey, logID)
}

// LogIDFromContext extracts the log identifier from context.
func LogIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if logID, ok := ctx.Value(logKey).(string); ok {
		return logID
	}
	return ""
}

// WithCampaignID stores the campaign a request operates on.
func WithCampaignID(ctx context.Context, campaignID string) context.Context {
	if campaignID == "" {
		return ctx
	}
	return context.WithValue(ctx, campaignKey, campaignID)
}

// CampaignIDFromContext extracts the campaign identifier from context.
func CampaignIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if campaignID, ok := ctx.Value(campaignKey).(string); ok {
		return campaignID
	}
	return ""
}
