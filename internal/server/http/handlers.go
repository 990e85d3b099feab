package http

import (
	"errors"
	"io"
	"net/http"
	"time"

	"campaignhub/internal/logging"
	"campaignhub/internal/server/app"

	"github.com/gin-gonic/gin"
)

// CampaignHandler serves the campaign workflow API.
type CampaignHandler struct {
	svc    *app.CampaignService
	images *app.ImageProxy
	logger logging.Logger
}

// NewCampaignHandler builds the handler set.
func NewCampaignHandler(svc *app.CampaignService, images *app.ImageProxy, logger logging.Logger) *CampaignHandler {
	return &CampaignHandler{svc: svc, images: images, logger: logging.OrNop(logger)}
}

// bindJSON decodes an optional JSON body. An empty body leaves dst untouched.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		writeBadRequest(c, "invalid request body")
		return false
	}
	return true
}

func (h *CampaignHandler) CreateCampaign(c *gin.Context) {
	var in app.CreateCampaignInput
	if !bindJSON(c, &in) {
		return
	}
	res, err := h.svc.CreateCampaign(c.Request.Context(), in)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "campaign_id": res.CampaignID, "message": res.Message})
}

func (h *CampaignHandler) ListCampaigns(c *gin.Context) {
	rows, err := h.svc.ListCampaigns(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "campaigns": rows})
}

func (h *CampaignHandler) FetchInfluencers(c *gin.Context) {
	var in app.DiscoverInput
	if !bindJSON(c, &in) {
		return
	}
	res, err := h.svc.DiscoverInfluencers(c.Request.Context(), in)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"influencers": res.Influencers,
		"count":       len(res.Influencers),
		"batch_key":   res.BatchKey,
	})
}

type campaignActionRequest struct {
	CampaignID    string   `json:"campaign_id"`
	InfluencerIDs []string `json:"influencer_ids"`
	EmailTemplate any      `json:"email_template"`
}

func (h *CampaignHandler) AddInfluencers(c *gin.Context) {
	var req campaignActionRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.svc.AddInfluencers(c.Request.Context(), req.CampaignID, req.InfluencerIDs)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": res.Message, "agent_response": res.AgentResponse})
}

func (h *CampaignHandler) FetchCampaignData(c *gin.Context) {
	data, err := h.svc.FetchCampaignData(c.Request.Context(), c.Query("campaign_id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "campaign_data": data})
}

func (h *CampaignHandler) SendEmails(c *gin.Context) {
	var req campaignActionRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.svc.SendEmails(c.Request.Context(), req.CampaignID, req.InfluencerIDs, req.EmailTemplate)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": res.Message, "agent_response": res.AgentResponse})
}

func (h *CampaignHandler) AnalyzeCampaign(c *gin.Context) {
	var req campaignActionRequest
	if !bindJSON(c, &req) {
		return
	}
	analysis, err := h.svc.AnalyzeCampaign(c.Request.Context(), req.CampaignID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "analysis": analysis})
}

func (h *CampaignHandler) StoredData(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.StoredData(c.Request.Context()))
}

func (h *CampaignHandler) InstagramProfile(c *gin.Context) {
	profile, err := h.svc.InstagramProfile(c.Request.Context(), c.Query("username"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "profile": profile})
}

func (h *CampaignHandler) ProxyImage(c *gin.Context) {
	if h.images == nil {
		writeError(c, h.logger, app.FailedError("image proxy is not configured", nil))
		return
	}
	img, err := h.images.Fetch(c.Request.Context(), c.Query("url"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	defer func() { _ = img.Body.Close() }()
	c.DataFromReader(http.StatusOK, -1, img.ContentType, img.Body, map[string]string{"Cache-Control": "public, max-age=3600"})
}

func (h *CampaignHandler) InvokeAgent(c *gin.Context) {
	payload := map[string]any{}
	if !bindJSON(c, &payload) {
		return
	}
	res, err := h.svc.InvokeAgent(c.Request.Context(), c.Param("agent"), payload)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"path":    res.Path,
		"matched": res.Matched,
		"outputs": res.Outputs,
		"raw":     res.Raw,
	})
}

// HealthHandler reports component health.
type HealthHandler struct {
	checker   *app.HealthChecker
	startedAt time.Time
}

// NewHealthHandler builds a HealthHandler.
func NewHealthHandler(checker *app.HealthChecker) *HealthHandler {
	if checker == nil {
		checker = app.NewHealthChecker()
	}
	return &HealthHandler{checker: checker, startedAt: time.Now()}
}

func (h *HealthHandler) Health(c *gin.Context) {
	components := h.checker.CheckAll(c.Request.Context())
	status, code := "ok", http.StatusOK
	if !app.Healthy(components) {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":         status,
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
		"components":     components,
	})
}
