package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/JonnyWalker81/pulse/backend/internal/apierror"
	"github.com/JonnyWalker81/pulse/backend/internal/models"
)

// ListPatterns handles GET /api/v1/patterns. Only active patterns are listed
// unless active=false.
func (h *IntelligenceHandler) ListPatterns(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	activeOnly := true
	if raw := c.Query("active"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			apierror.WriteProblem(c, apierror.NewValidationError(apierror.GetRequestID(c), []apierror.FieldError{
				{Field: "active", Message: "must be a boolean value", Code: "invalid_type"},
			}))
			return
		}
		activeOnly = b
	}

	list, err := h.svc.ListPatterns(c.Request.Context(), uid, activeOnly)
	if err != nil {
		writeServiceError(c, err, "pattern", "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"patterns": list})
}

// ConfirmPattern handles POST /api/v1/patterns/:id/confirm
func (h *IntelligenceHandler) ConfirmPattern(c *gin.Context) {
	h.transition(c, h.svc.ConfirmPattern)
}

// RejectPattern handles POST /api/v1/patterns/:id/reject
func (h *IntelligenceHandler) RejectPattern(c *gin.Context) {
	h.transition(c, h.svc.RejectPattern)
}

// DeactivatePattern handles POST /api/v1/patterns/:id/deactivate
func (h *IntelligenceHandler) DeactivatePattern(c *gin.Context) {
	h.transition(c, h.svc.DeactivatePattern)
}

func (h *IntelligenceHandler) transition(c *gin.Context, apply func(ctx context.Context, userID, patternID string) (*models.PatternSummary, error)) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	id := c.Param("id")
	if !h.validID(c, "id", id) {
		return
	}

	summary, err := apply(c.Request.Context(), uid, id)
	if err != nil {
		writeServiceError(c, err, "pattern", id)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// RecordPatternOutcome handles POST /api/v1/patterns/:id/outcome
func (h *IntelligenceHandler) RecordPatternOutcome(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	id := c.Param("id")
	if !h.validID(c, "id", id) {
		return
	}

	var req models.OutcomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	if req.Predicted == nil {
		apierror.WriteProblem(c, apierror.NewValidationError(apierror.GetRequestID(c), []apierror.FieldError{
			{Field: "predicted", Message: "is required", Code: "required"},
		}))
		return
	}

	summary, err := h.svc.RecordPatternOutcome(c.Request.Context(), uid, id, *req.Predicted, *req.Actual)
	if err != nil {
		writeServiceError(c, err, "pattern", id)
		return
	}

	c.JSON(http.StatusOK, summary)
}
