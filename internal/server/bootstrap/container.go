package bootstrap

import (
	"strings"
	"time"

	"campaignhub/internal/agent"
	"campaignhub/internal/config"
	"campaignhub/internal/credential"
	"campaignhub/internal/enrichment"
	"campaignhub/internal/httpclient"
	"campaignhub/internal/logging"
	"campaignhub/internal/server/app"
	"campaignhub/internal/store"
)

// Container holds the wired application components.
type Container struct {
	Config      config.Config
	Obs         *Observability
	Credentials credential.Source
	Agents      *agent.Invoker
	Instagram   *enrichment.InstagramFetcher
	YouTube     *enrichment.YouTubeFetcher
	Enricher    *enrichment.Dispatcher
	Store       *store.Store
	Service     *app.CampaignService
	Images      *app.ImageProxy
	Health      *app.HealthChecker
	Degraded    *DegradedComponents
}

// BuildContainer wires every component from cfg. obs must already be initialised.
func BuildContainer(cfg config.Config, obs *Observability) (*Container, error) {
	if obs == nil {
		obs = &Observability{}
	}
	logger := logging.NewComponentLogger("Bootstrap")
	c := &Container{Config: cfg, Obs: obs, Degraded: NewDegradedComponents()}

	stages := []Stage{
		{Name: "identity", Required: true, Init: c.initCredentials},
		{Name: "agents", Required: true, Init: c.initAgents},
		{Name: "store", Required: true, Init: c.initStore},
		{Name: "enrichment", Required: true, Init: c.initEnrichment},
		{Name: "service", Required: true, Init: c.initService},
	}
	if err := RunStages(stages, c.Degraded, logger); err != nil {
		return nil, err
	}
	c.initHealth()
	return c, nil
}

// HasCredentials reports whether identity credentials are configured.
func (c *Container) HasCredentials() bool {
	id := c.Config.Identity
	return strings.TrimSpace(id.Username) != "" && strings.TrimSpace(id.Password) != ""
}

func (c *Container) initCredentials() error {
	id := c.Config.Identity
	grant := credential.NewPasswordGrant(credential.PasswordGrantConfig{
		TokenURL:     id.TokenURL,
		Username:     id.Username,
		Password:     id.Password,
		ClientID:     id.ClientID,
		ClientSecret: id.ClientSecret,
		Timeout:      config.Seconds(id.TimeoutSeconds, 20*time.Second),
	},
		credential.WithLogger(logging.NewComponentLogger("credential")),
		credential.WithMetrics(c.Obs.Metrics),
	)
	c.Credentials = grant
	if id.CacheTokens {
		c.Credentials = credential.NewExpiringCache(grant, config.Seconds(id.CacheSkewSeconds, 30*time.Second),
			credential.WithCacheMetrics(c.Obs.Metrics),
		)
	}
	return nil
}

func (c *Container) initAgents() error {
	cfg := c.Config.Agents
	c.Agents = agent.New(agent.Config{
		BaseURL:       cfg.BaseURL,
		FastTimeout:   config.Seconds(cfg.FastTimeoutSeconds, 0),
		StreamTimeout: config.Seconds(cfg.StreamTimeoutSeconds, 0),
		MaxLineBytes:  cfg.MaxLineBytes,
	}, c.Credentials,
		agent.WithRegistry(agent.NewRegistry(cfg.Controllers)),
		agent.WithLogger(logging.NewComponentLogger("agent")),
		agent.WithMetrics(c.Obs.Metrics),
		agent.WithTracer(c.Obs.Tracer),
	)
	return nil
}

func (c *Container) initStore() error {
	st, err := store.New(c.Config.Store.BatchCapacity)
	if err != nil {
		return err
	}
	c.Store = st
	return nil
}

func (c *Container) initEnrichment() error {
	cfg := c.Config.Enrichment
	timeout := config.Seconds(cfg.TimeoutSeconds, 30*time.Second)
	logger := logging.NewComponentLogger("enrichment")
	client := httpclient.New(timeout, logger)

	c.Instagram = enrichment.NewInstagramFetcher(enrichment.InstagramConfig{
		WebURL:    cfg.InstagramWebURL,
		APIURL:    cfg.InstagramAPIURL,
		AppID:     cfg.InstagramAppID,
		UserAgent: cfg.UserAgent,
		Timeout:   timeout,
	}, client, logger)
	c.YouTube = enrichment.NewYouTubeFetcher(enrichment.YouTubeConfig{
		APIURL:  cfg.YouTubeAPIURL,
		APIKey:  cfg.YouTubeAPIKey,
		Timeout: timeout,
	}, client, logger)
	c.Enricher = enrichment.NewDispatcher(enrichment.DispatcherConfig{
		BatchLimit:        cfg.BatchLimit,
		DefaultBrandFit:   float64(cfg.DefaultBrandFit),
		DefaultEngagement: cfg.DefaultEngagement,
	}, c.Instagram, c.YouTube,
		enrichment.WithLogger(logger),
		enrichment.WithMetrics(c.Obs.Metrics),
		enrichment.WithTracer(c.Obs.Tracer),
	)
	return nil
}

func (c *Container) initService() error {
	c.Service = app.NewCampaignService(c.Agents, c.Enricher, c.Instagram, c.Store, logging.NewComponentLogger("campaigns"))
	proxy := c.Config.ImageProxy
	c.Images = app.NewImageProxy(app.ImageProxyConfig{
		Timeout:              config.Seconds(proxy.TimeoutSeconds, 0),
		MaxBytes:             proxy.MaxBytes,
		AllowPrivateNetworks: proxy.AllowPrivateNetworks,
	}, nil, logging.NewComponentLogger("image-proxy"))
	return nil
}

func (c *Container) initHealth() {
	c.Health = app.NewHealthChecker()
	c.Health.RegisterCheck(app.AgentPlatformCheck{
		BaseURL:        c.Config.Agents.BaseURL,
		HasCredentials: c.HasCredentials(),
		CachesTokens:   c.Config.Identity.CacheTokens,
	})
	c.Health.RegisterCheck(app.YouTubeCheck{HasAPIKey: strings.TrimSpace(c.Config.Enrichment.YouTubeAPIKey) != ""})
	c.Health.RegisterCheck(NewDegradedCheck(c.Degraded))
}
