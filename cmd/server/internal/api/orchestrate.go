// Package api exposes the orchestration engine over HTTP.
package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/text/language"

	"github.com/scoutlabs/orchestrator/cmd/server/internal/auth"
	"github.com/scoutlabs/orchestrator/cmd/server/internal/middleware"
	"github.com/scoutlabs/orchestrator/cmd/server/internal/models"
	"github.com/scoutlabs/orchestrator/cmd/server/internal/orchestrator"
	"github.com/scoutlabs/orchestrator/pkg/logger"
)

const Version = "1.0.0"

// Narrative languages the platform supports; anything else canonicalizes to
// English.
var supportedLanguages = []language.Tag{
	language.English,
	language.MustParse("fil"),
}

var languageMatcher = language.NewMatcher(supportedLanguages)

// Handler holds dependencies for HTTP request handling.
type Handler struct {
	orch      *orchestrator.Orchestrator
	jwtSecret string
}

// NewHandler creates the API handler.
func NewHandler(orch *orchestrator.Orchestrator, jwtSecret string) *Handler {
	return &Handler{orch: orch, jwtSecret: jwtSecret}
}

// NewRouter builds the gin engine with all routes and middleware.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true

	r.Use(middleware.CORS())
	r.Use(middleware.RequestLogger())
	r.Use(gin.CustomRecovery(func(c *gin.Context, err any) {
		logger.L().Error("handler panicked", "path", c.Request.URL.Path, "panic", fmt.Sprint(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal server error",
			"details": fmt.Sprint(err),
		})
	}))

	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "method not allowed"})
	})

	v1 := r.Group("/api/v1")
	v1.POST("/orchestrate", h.HandleOrchestrate)
	v1.GET("/health", h.HandleHealth)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

// HandleOrchestrate validates the request body, backfills user context from
// bearer claims when configured, and runs the orchestration.
func (h *Handler) HandleOrchestrate(c *gin.Context) {
	var req models.OrchestrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid request body",
			"details": err.Error(),
		})
		return
	}

	h.backfillFromBearer(c, &req)

	if missing := missingFields(req); len(missing) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "missing required fields",
			"details": "required: " + strings.Join(missing, ", "),
		})
		return
	}

	canonicalizeLanguage(&req)

	resp, err := h.orch.Run(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "orchestration failed",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// HandleHealth reports service liveness.
func (h *Handler) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "insights-orchestrator",
		"version": Version,
	})
}

// backfillFromBearer fills missing user-context fields from verified token
// claims. Body-provided values always win; parse failures only log.
func (h *Handler) backfillFromBearer(c *gin.Context, req *models.OrchestrationRequest) {
	if h.jwtSecret == "" {
		return
	}
	claims, err := auth.ParseBearer(c.GetHeader("Authorization"), h.jwtSecret)
	if err != nil {
		logger.L().Warn("bearer token rejected", "error", err.Error())
		return
	}
	if req.UserContext.TenantID == "" {
		req.UserContext.TenantID = claims.TenantID
	}
	if req.UserContext.Role == "" {
		req.UserContext.Role = claims.Role
	}
}

// missingFields lists the required request fields that are absent.
func missingFields(req models.OrchestrationRequest) []string {
	var missing []string
	if req.NaturalLanguageQuery == "" {
		missing = append(missing, "natural_language_query")
	}
	if req.UserContext.TenantID == "" {
		missing = append(missing, "user_context.tenant_id")
	}
	if req.UserContext.Role == "" {
		missing = append(missing, "user_context.role")
	}
	return missing
}

// canonicalizeLanguage normalizes the narrative language preference to a
// supported tag, defaulting to English.
func canonicalizeLanguage(req *models.OrchestrationRequest) {
	if req.NarrativePreferences == nil || req.NarrativePreferences.Language == "" {
		return
	}

	tag, err := language.Parse(req.NarrativePreferences.Language)
	if err != nil {
		req.NarrativePreferences.Language = "en"
		return
	}

	_, idx, _ := languageMatcher.Match(tag)
	base, _ := supportedLanguages[idx].Base()
	req.NarrativePreferences.Language = base.String()
}
