package handler

import (
	"net/http"

	"hospitality-server/internal/apierrors"
	"hospitality-server/internal/hospitality/processor"
	"hospitality-server/internal/observability"
	"hospitality-server/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Handler struct {
	processor *processor.EventProcessor
	logger    *observability.Logger
}

func New(processor *processor.EventProcessor, logger *observability.Logger) Handler {
	return Handler{
		processor: processor,
		logger:    logger,
	}
}

// IngestRequest represents the HTTP request for submitting a behavior event
type IngestRequest struct {
	Identity     store.VisitorIdentity `json:"identity" binding:"required"`
	Event        processor.EventInput  `json:"event" binding:"required"`
	VisitorClass string                `json:"visitor_class"`
	Context      map[string]string     `json:"context,omitempty"`
}

// HandleIngest handles POST /api/hospitality/events
func (h *Handler) HandleIngest(c *gin.Context) {
	ctx := c.Request.Context()

	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn(ctx, "failed to bind ingest request", err)
		apierrors.RespondWithError(c, apierrors.BadRequest(apierrors.CodeInvalidInput, "Invalid request body"))
		return
	}

	decision, err := h.processor.Ingest(ctx, req.Identity, req.Event, processor.RequestContext{
		VisitorClass: req.VisitorClass,
		Context:      req.Context,
	})
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, decision)
}

// OutcomeRequest represents a UI-reported action lifecycle transition
type OutcomeRequest struct {
	Outcome string      `json:"outcome" binding:"required"`
	Context store.JSONB `json:"context,omitempty"`
}

// HandleReportOutcome handles POST /api/hospitality/actions/:action_id/outcome
func (h *Handler) HandleReportOutcome(c *gin.Context) {
	ctx := c.Request.Context()

	actionID, err := uuid.Parse(c.Param("action_id"))
	if err != nil {
		apierrors.RespondWithError(c, apierrors.BadRequest(apierrors.CodeInvalidInput, "Invalid action id"))
		return
	}

	var req OutcomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn(ctx, "failed to bind outcome request", err)
		apierrors.RespondWithError(c, apierrors.BadRequest(apierrors.CodeInvalidInput, "Invalid request body"))
		return
	}

	action, err := h.processor.ReportOutcome(ctx, actionID, req.Outcome, req.Context)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, action)
}

// HandleGetVisitorState handles GET /api/hospitality/visitors/:identity_key/state
func (h *Handler) HandleGetVisitorState(c *gin.Context) {
	ctx := c.Request.Context()

	identityKey := c.Param("identity_key")
	if identityKey == "" {
		apierrors.RespondWithError(c, apierrors.BadRequest(apierrors.CodeInvalidInput, "Identity key is required"))
		return
	}

	report, err := h.processor.GetVisitorReport(ctx, identityKey)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, report.State)
}

// HandleGetVisitorCooldowns handles GET /api/hospitality/visitors/:identity_key/cooldowns
func (h *Handler) HandleGetVisitorCooldowns(c *gin.Context) {
	ctx := c.Request.Context()

	identityKey := c.Param("identity_key")
	if identityKey == "" {
		apierrors.RespondWithError(c, apierrors.BadRequest(apierrors.CodeInvalidInput, "Identity key is required"))
		return
	}

	report, err := h.processor.GetVisitorReport(ctx, identityKey)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"cooldowns": report.Cooldowns})
}

// HandleGetRules handles GET /api/hospitality/rules
func (h *Handler) HandleGetRules(c *gin.Context) {
	ctx := c.Request.Context()

	active, loadErrors, err := h.processor.CatalogSnapshot(ctx)
	if err != nil {
		apierrors.RespondWithError(c, apierrors.ServiceUnavailable("Rule catalog is unavailable", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"rules":       active,
		"load_errors": loadErrors,
	})
}

// HandleGetRuleStats handles GET /api/hospitality/rules/:rule_id/stats
func (h *Handler) HandleGetRuleStats(c *gin.Context) {
	ctx := c.Request.Context()

	ruleID, err := uuid.Parse(c.Param("rule_id"))
	if err != nil {
		apierrors.RespondWithError(c, apierrors.BadRequest(apierrors.CodeInvalidInput, "Invalid rule id"))
		return
	}

	report, err := h.processor.GetRuleStats(ctx, ruleID)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// HandleRefreshCatalog handles POST /api/hospitality/rules/refresh
func (h *Handler) HandleRefreshCatalog(c *gin.Context) {
	ctx := c.Request.Context()

	if err := h.processor.RefreshCatalog(ctx); err != nil {
		apierrors.RespondWithError(c, apierrors.ServiceUnavailable("Failed to refresh rule catalog", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "ok"})
}
