package logging

import (
	"context"
	"strings"

	"campaignhub/internal/utils/id"
)

// requestTags are the correlation ids prepended to every line of a request.
type requestTags struct {
	logID      string
	campaignID string
}

func (t requestTags) prefix() string {
	var b strings.Builder
	if t.logID != "" {
		b.WriteString("logid=")
		b.WriteString(t.logID)
		b.WriteByte(' ')
	}
	if t.campaignID != "" {
		b.WriteString("campaign=")
		b.WriteString(t.campaignID)
		b.WriteByte(' ')
	}
	// Ids come from request headers, so keep them out of the format verbs.
	return strings.ReplaceAll(b.String(), "%", "%%")
}

// WithLogID tags lines with logID, replacing any log id already set.
func WithLogID(logger Logger, logID string) Logger {
	return withTags(logger, func(t *requestTags) { t.logID = logID }, logID == "")
}

// WithCampaignID tags lines with the campaign they concern.
func WithCampaignID(logger Logger, campaignID string) Logger {
	return withTags(logger, func(t *requestTags) { t.campaignID = campaignID }, campaignID == "")
}

// FromContext tags logger with the log id and campaign id carried by ctx.
func FromContext(ctx context.Context, logger Logger) Logger {
	logger = WithLogID(logger, id.LogIDFromContext(ctx))
	return WithCampaignID(logger, id.CampaignIDFromContext(ctx))
}

func withTags(logger Logger, set func(*requestTags), noop bool) Logger {
	if IsNil(logger) {
		return Nop()
	}
	if noop {
		return logger
	}
	tagged := &taggedLogger{logger: logger}
	if existing, ok := logger.(*taggedLogger); ok {
		tagged.logger = existing.logger
		tagged.tags = existing.tags
	}
	set(&tagged.tags)
	return tagged
}

type taggedLogger struct {
	logger Logger
	tags   requestTags
}

func (l *taggedLogger) Debug(format string, args ...any) {
	l.logger.Debug(l.tags.prefix()+format, args...)
}

func (l *taggedLogger) Info(format string, args ...any) {
	l.logger.Info(l.tags.prefix()+format, args...)
}

func (l *taggedLogger) Warn(format string, args ...any) {
	l.logger.Warn(l.tags.prefix()+format, args...)
}

func (l *taggedLogger) Error(format string, args ...any) {
	l.logger.Error(l.tags.prefix()+format, args...)
}
