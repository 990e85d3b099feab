package agent

import (
	"fmt"
	"sort"
	"strings"

	apperrors "campaignhub/internal/errors"
)

// Logical agent names used by the campaign workflow.
const (
	CreateCampaign      = "create_campaign"
	ListCampaigns       = "list_campaigns"
	AddInfluencers      = "add_influencers"
	FetchCampaignData   = "fetch_campaign_data"
	SendEmails          = "send_emails"
	AnalyzeCampaign     = "analyze_campaign"
	DiscoverInfluencers = "discover_influencers"
)

var defaultControllers = map[string]string{
	CreateCampaign:      "706",
	ListCampaigns:       "732",
	AddInfluencers:      "712",
	FetchCampaignData:   "703",
	SendEmails:          "709",
	AnalyzeCampaign:     "715",
	DiscoverInfluencers: "795",
}

// legacyAliases keeps the numbered names of the first deployment resolvable.
var legacyAliases = map[string]string{
	"agent_1":        CreateCampaign,
	"agent_2":        ListCampaigns,
	"agent_3":        AddInfluencers,
	"agent_4":        FetchCampaignData,
	"agent_5":        SendEmails,
	"analysis_agent": AnalyzeCampaign,
}

// Registry maps logical agent names to remote controller ids.
type Registry struct {
	controllers map[string]string
}

// NewRegistry returns the default mapping with overrides applied. Override
// keys may be logical names or legacy aliases.
func NewRegistry(overrides map[string]string) *Registry {
	controllers := make(map[string]string, len(defaultControllers))
	for name, id := range defaultControllers {
		controllers[name] = id
	}
	for name, id := range overrides {
		name = strings.ToLower(strings.TrimSpace(name))
		id = strings.TrimSpace(id)
		if name == "" || id == "" {
			continue
		}
		if logical, ok := legacyAliases[name]; ok {
			name = logical
		}
		controllers[name] = id
	}
	return &Registry{controllers: controllers}
}

// Resolve returns the controller id for a logical name, legacy alias or raw
// numeric id. Unknown names wrap ErrInvalidRequest.
func (r *Registry) Resolve(agent string) (string, error) {
	agent = strings.TrimSpace(agent)
	if agent == "" {
		return "", fmt.Errorf("agent id is required: %w", apperrors.ErrInvalidRequest)
	}
	if isNumeric(agent) {
		return agent, nil
	}
	name := strings.ToLower(agent)
	if logical, ok := legacyAliases[name]; ok {
		name = logical
	}
	if r != nil {
		if id, ok := r.controllers[name]; ok {
			return id, nil
		}
	}
	return "", fmt.Errorf("unknown agent %q: %w", agent, apperrors.ErrInvalidRequest)
}

// Names lists the logical names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.controllers))
	for name := range r.controllers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func isNumeric(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return s != ""
}
