package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/JonnyWalker81/pulse/backend/internal/apierror"
	"github.com/JonnyWalker81/pulse/backend/internal/logger"
	"github.com/JonnyWalker81/pulse/backend/internal/models"
	"github.com/JonnyWalker81/pulse/backend/internal/service"
)

// DefaultForecastDays is used when GET /forecast has no days parameter
const DefaultForecastDays = 7

var knownDomains = map[models.Domain]bool{
	models.DomainSleep:     true,
	models.DomainFitness:   true,
	models.DomainRecovery:  true,
	models.DomainCalendar:  true,
	models.DomainFinancial: true,
}

// IntelligenceHandler serves the analysis, prediction, forecast, risk and
// pattern endpoints
type IntelligenceHandler struct {
	svc                  service.IntelligenceService
	defaultMinConfidence float64
	now                  func() time.Time
}

// NewIntelligenceHandler creates a new intelligence handler. defaultMinConfidence
// is reported when a prediction is rejected without an explicit minimum.
func NewIntelligenceHandler(svc service.IntelligenceService, defaultMinConfidence float64) *IntelligenceHandler {
	return &IntelligenceHandler{
		svc:                  svc,
		defaultMinConfidence: defaultMinConfidence,
		now:                  time.Now,
	}
}

// Analyze handles POST /api/v1/analysis
func (h *IntelligenceHandler) Analyze(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	var req models.AnalyzeRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeBindError(c, err)
			return
		}
	}

	var fieldErrors []apierror.FieldError
	for _, d := range req.Domains {
		if !knownDomains[d] {
			fieldErrors = append(fieldErrors, apierror.FieldError{
				Field:   "domains",
				Message: "unknown domain " + string(d),
				Code:    "invalid_value",
			})
		}
	}
	if len(fieldErrors) > 0 {
		apierror.WriteProblem(c, apierror.NewValidationError(apierror.GetRequestID(c), fieldErrors))
		return
	}

	result, err := h.svc.Analyze(c.Request.Context(), uid, req.Domains, req.MinConfidence)
	if err != nil && result == nil {
		writeServiceError(c, err, "analysis", "")
		return
	}
	if err != nil {
		// patterns were computed but not all could be stored
		logger.Ctx(c.Request.Context()).Warn("analysis returned without persisting", logger.Err(err))
		c.Header("Retry-After", strconv.Itoa(storageRetryAfterSeconds))
	}

	c.JSON(http.StatusOK, result)
}

// Predict handles POST /api/v1/predictions
func (h *IntelligenceHandler) Predict(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	var req models.PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	prediction, err := h.svc.Predict(c.Request.Context(), uid, req.PredictionType, req.HorizonDays, req.MinConfidence)
	if errors.Is(err, service.ErrBelowMinConfidence) {
		minConfidence := req.MinConfidence
		if minConfidence <= 0 {
			minConfidence = h.defaultMinConfidence
		}
		apierror.WriteProblem(c, apierror.NewLowConfidenceError(apierror.GetRequestID(c), minConfidence))
		return
	}
	if err != nil {
		writeServiceError(c, err, "prediction", "")
		return
	}

	c.JSON(http.StatusCreated, prediction)
}

// RecordPredictionOutcome handles POST /api/v1/predictions/:id/outcome
func (h *IntelligenceHandler) RecordPredictionOutcome(c *gin.Context) {
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

	prediction, err := h.svc.RecordPredictionOutcome(c.Request.Context(), uid, id, *req.Actual)
	if err != nil {
		writeServiceError(c, err, "prediction", id)
		return
	}

	c.JSON(http.StatusOK, prediction)
}

// Forecast handles GET /api/v1/forecast?metrics=a,b&days=7
func (h *IntelligenceHandler) Forecast(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	days := DefaultForecastDays
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			apierror.WriteProblem(c, apierror.NewValidationError(apierror.GetRequestID(c), []apierror.FieldError{
				{Field: "days", Message: "must be an integer", Code: "invalid_type"},
			}))
			return
		}
		days = n
	}

	var metricNames []string
	for _, name := range strings.Split(c.Query("metrics"), ",") {
		if name = strings.TrimSpace(name); name != "" {
			metricNames = append(metricNames, name)
		}
	}

	resp, err := h.svc.Forecast(c.Request.Context(), uid, metricNames, days)
	if err != nil {
		writeServiceError(c, err, "forecast", "")
		return
	}

	c.JSON(http.StatusOK, resp)
}

// AssessRisk handles GET /api/v1/risk/:type
func (h *IntelligenceHandler) AssessRisk(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	assessment, err := h.svc.AssessRisk(c.Request.Context(), uid, models.RiskType(c.Param("type")))
	if err != nil {
		writeServiceError(c, err, "risk", c.Param("type"))
		return
	}

	c.JSON(http.StatusOK, assessment)
}

// EvaluateSample handles POST /api/v1/samples/evaluate
func (h *IntelligenceHandler) EvaluateSample(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	var req models.EvaluateSampleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	sample := models.TimeSeriesSample{MetricName: req.MetricName, Value: *req.Value}
	if req.Timestamp != nil {
		sample.Timestamp = req.Timestamp.UTC()
	}

	fired, err := h.svc.EvaluateSample(c.Request.Context(), uid, sample)
	if err != nil {
		writeServiceError(c, err, "sample", "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"triggers": fired})
}
