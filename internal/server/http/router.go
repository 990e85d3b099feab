// Package http exposes the campaign workflow over a gin router.
package http

import (
	"campaignhub/internal/logging"
	"campaignhub/internal/observability"
	"campaignhub/internal/server/app"

	"github.com/gin-gonic/gin"
)

// RouterDeps collects everything the router needs.
type RouterDeps struct {
	Service        *app.CampaignService
	Images         *app.ImageProxy
	Health         *app.HealthChecker
	Metrics        *observability.Metrics
	Tracer         *observability.TracerProvider
	Logger         logging.Logger
	AllowedOrigins []string
	// TrustedProxies lists proxy IPs or CIDRs whose X-Forwarded-For is believed.
	// Empty trusts none.
	TrustedProxies []string
	RateLimit      RateLimitConfig
	Debug          bool
}

// NewRouter builds the gin engine with middleware and routes.
func NewRouter(deps RouterDeps) *gin.Engine {
	if !deps.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	logger := logging.OrNop(deps.Logger)

	engine := gin.New()
	if err := engine.SetTrustedProxies(deps.TrustedProxies); err != nil {
		logger.Warn("invalid trusted proxies %v, trusting none: %v", deps.TrustedProxies, err)
		_ = engine.SetTrustedProxies(nil)
	}
	engine.Use(gin.Recovery())
	engine.Use(CORSMiddleware(deps.AllowedOrigins))
	engine.Use(LogIDMiddleware())
	engine.Use(ObservabilityMiddleware(deps.Metrics, deps.Tracer, logger))

	health := NewHealthHandler(deps.Health)
	engine.GET("/healthz", health.Health)
	engine.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))

	campaigns := NewCampaignHandler(deps.Service, deps.Images, logger)
	api := engine.Group("/api")
	api.Use(RateLimitMiddleware(deps.RateLimit))
	{
		api.POST("/create_campaign", campaigns.CreateCampaign)
		api.GET("/list_campaigns", campaigns.ListCampaigns)
		api.POST("/fetch_influencers", campaigns.FetchInfluencers)
		api.POST("/add_influencers", campaigns.AddInfluencers)
		api.GET("/fetch_campaign_data", campaigns.FetchCampaignData)
		api.POST("/send_emails", campaigns.SendEmails)
		api.POST("/analyze_campaign", campaigns.AnalyzeCampaign)
		api.GET("/get_stored_data", campaigns.StoredData)
		api.GET("/instagram_profile", campaigns.InstagramProfile)
		api.GET("/proxy_image", campaigns.ProxyImage)
		api.POST("/agents/:agent/invoke", campaigns.InvokeAgent)
	}
	return engine
}
