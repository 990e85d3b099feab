package id

import (
	"fmt"

	"github.com/google/uuid"
)

// NewLogID returns a time-ordered identifier used to correlate log lines of one request.
func NewLogID() string {
	if v7, err := uuid.NewV7(); err == nil {
		return v7.String()
	}
	return uuid.NewString()
}

// NewCampaignID returns a random identifier for a locally stored campaign.
func NewCampaignID() string {
	return uuid.NewString()
}

// NewBatchID returns an identifier for an influencer discovery batch that is not
// attached to a campaign.
func NewBatchID() string {
	return fmt.Sprintf("batch-%s", uuid.NewString())
}
