package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonnyWalker81/pulse/backend/internal/apierror"
	"github.com/JonnyWalker81/pulse/backend/internal/models"
	"github.com/JonnyWalker81/pulse/backend/internal/patterns"
	"github.com/JonnyWalker81/pulse/backend/internal/repository"
	"github.com/JonnyWalker81/pulse/backend/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeService answers with canned results; unset hooks return zero values
type fakeService struct {
	analyze        func(domains []models.Domain, minConfidence float64) (*models.AnalysisResult, error)
	predict        func(predictionType string, horizon int, minConfidence float64) (*models.Prediction, error)
	forecast       func(metrics []string, days int) (*models.ForecastResponse, error)
	assessRisk     func(riskType models.RiskType) (*models.RiskAssessment, error)
	outcome        func(id string, actual float64) (*models.Prediction, error)
	evaluate       func(sample models.TimeSeriesSample) ([]models.TriggerEvent, error)
	listPatterns   func(activeOnly bool) ([]models.PatternSummary, error)
	transition     func(op, id string) (*models.PatternSummary, error)
	patternOutcome func(id string, predicted, actual float64) (*models.PatternSummary, error)
	lastUserID     string
}

func (f *fakeService) Analyze(_ context.Context, userID string, domains []models.Domain, minConfidence float64) (*models.AnalysisResult, error) {
	f.lastUserID = userID
	return f.analyze(domains, minConfidence)
}

func (f *fakeService) Predict(_ context.Context, userID, predictionType string, horizonDays int, minConfidence float64) (*models.Prediction, error) {
	f.lastUserID = userID
	return f.predict(predictionType, horizonDays, minConfidence)
}

func (f *fakeService) Forecast(_ context.Context, userID string, metricNames []string, days int) (*models.ForecastResponse, error) {
	f.lastUserID = userID
	return f.forecast(metricNames, days)
}

func (f *fakeService) AssessRisk(_ context.Context, userID string, riskType models.RiskType) (*models.RiskAssessment, error) {
	f.lastUserID = userID
	return f.assessRisk(riskType)
}

func (f *fakeService) RecordPredictionOutcome(_ context.Context, userID, predictionID string, actual float64) (*models.Prediction, error) {
	f.lastUserID = userID
	return f.outcome(predictionID, actual)
}

func (f *fakeService) EvaluateSample(_ context.Context, userID string, sample models.TimeSeriesSample) ([]models.TriggerEvent, error) {
	f.lastUserID = userID
	return f.evaluate(sample)
}

func (f *fakeService) ListPatterns(_ context.Context, userID string, activeOnly bool) ([]models.PatternSummary, error) {
	f.lastUserID = userID
	return f.listPatterns(activeOnly)
}

func (f *fakeService) ConfirmPattern(_ context.Context, _, patternID string) (*models.PatternSummary, error) {
	return f.transition("confirm", patternID)
}

func (f *fakeService) RejectPattern(_ context.Context, _, patternID string) (*models.PatternSummary, error) {
	return f.transition("reject", patternID)
}

func (f *fakeService) DeactivatePattern(_ context.Context, _, patternID string) (*models.PatternSummary, error) {
	return f.transition("deactivate", patternID)
}

func (f *fakeService) RecordPatternOutcome(_ context.Context, _, patternID string, predicted, actual float64) (*models.PatternSummary, error) {
	return f.patternOutcome(patternID, predicted, actual)
}

var _ service.IntelligenceService = (*fakeService)(nil)

func newTestRouter(svc service.IntelligenceService, authenticated bool) *gin.Engine {
	r := gin.New()
	if authenticated {
		r.Use(func(c *gin.Context) {
			c.Set("user_id", "user-1")
			c.Set("request_id", "req-1")
		})
	}
	NewIntelligenceHandler(svc, 40).Register(r.Group("/api/v1"))
	return r
}

func request(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeProblem(t *testing.T, w *httptest.ResponseRecorder) apierror.ProblemDetails {
	t.Helper()
	assert.Equal(t, apierror.ContentTypeProblemJSON, w.Header().Get("Content-Type"))
	var problem apierror.ProblemDetails
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &problem))
	return problem
}

func newID(t *testing.T) string {
	t.Helper()
	id, err := uuid.NewV7()
	require.NoError(t, err)
	return id.String()
}

func TestUnauthenticatedRequestsAreRejected(t *testing.T) {
	r := newTestRouter(&fakeService{}, false)

	w := request(t, r, http.MethodGet, "/api/v1/patterns", "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, apierror.TypeUnauthorized, decodeProblem(t, w).Type)
}

func TestAnalyze(t *testing.T) {
	var gotDomains []models.Domain
	svc := &fakeService{analyze: func(domains []models.Domain, minConfidence float64) (*models.AnalysisResult, error) {
		gotDomains = domains
		return &models.AnalysisResult{UserID: "user-1", Persisted: true, Patterns: []models.PatternSummary{{PatternType: models.PatternSleepPerformance}}}, nil
	}}
	r := newTestRouter(svc, true)

	w := request(t, r, http.MethodPost, "/api/v1/analysis", `{"domains":["sleep"],"min_confidence":50}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []models.Domain{models.DomainSleep}, gotDomains)
	assert.Equal(t, "user-1", svc.lastUserID)
	assert.NotContains(t, w.Body.String(), "p_value")
}

func TestAnalyze_EmptyBody(t *testing.T) {
	svc := &fakeService{analyze: func(domains []models.Domain, _ float64) (*models.AnalysisResult, error) {
		assert.Empty(t, domains)
		return &models.AnalysisResult{Persisted: true}, nil
	}}

	w := request(t, newTestRouter(svc, true), http.MethodPost, "/api/v1/analysis", "")

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAnalyze_Validation(t *testing.T) {
	r := newTestRouter(&fakeService{}, true)

	w := request(t, r, http.MethodPost, "/api/v1/analysis", `{"domains":["astrology"]}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	problem := decodeProblem(t, w)
	assert.Equal(t, apierror.TypeValidation, problem.Type)
	require.Len(t, problem.Errors, 1)
	assert.Equal(t, "domains", problem.Errors[0].Field)

	w = request(t, r, http.MethodPost, "/api/v1/analysis", `{"min_confidence":150}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	problem = decodeProblem(t, w)
	require.Len(t, problem.Errors, 1)
	assert.Equal(t, "min_confidence", problem.Errors[0].Field)
	assert.Equal(t, "max", problem.Errors[0].Code)

	w = request(t, r, http.MethodPost, "/api/v1/analysis", `{"domains":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apierror.TypeBadRequest, decodeProblem(t, w).Type)
}

func TestAnalyze_PartialPersistence(t *testing.T) {
	svc := &fakeService{analyze: func([]models.Domain, float64) (*models.AnalysisResult, error) {
		return &models.AnalysisResult{Persisted: false}, repository.NewStorageError("upsert", context.DeadlineExceeded)
	}}

	w := request(t, newTestRouter(svc, true), http.MethodPost, "/api/v1/analysis", `{}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "5", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), `"persisted":false`)
}

func TestAnalyze_StorageDown(t *testing.T) {
	svc := &fakeService{analyze: func([]models.Domain, float64) (*models.AnalysisResult, error) {
		return nil, fmt.Errorf("failed to load analysis inputs: %w", repository.NewStorageError("fetch", context.DeadlineExceeded))
	}}

	w := request(t, newTestRouter(svc, true), http.MethodPost, "/api/v1/analysis", `{}`)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, apierror.TypeUnavailable, decodeProblem(t, w).Type)
	assert.Equal(t, "5", w.Header().Get("Retry-After"))
}

func TestPredict(t *testing.T) {
	svc := &fakeService{predict: func(predictionType string, horizon int, minConfidence float64) (*models.Prediction, error) {
		assert.Equal(t, "illness", predictionType)
		assert.Equal(t, 7, horizon)
		return &models.Prediction{ID: "p1", PredictionType: predictionType, Status: models.PredictionPending}, nil
	}}

	w := request(t, newTestRouter(svc, true), http.MethodPost, "/api/v1/predictions", `{"prediction_type":"illness","horizon_days":7}`)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"pending"`)
}

func TestPredict_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		err      error
		status   int
		wantType string
	}{
		{"missing type", `{"horizon_days":7}`, nil, http.StatusBadRequest, apierror.TypeValidation},
		{"horizon too long", `{"prediction_type":"hrv","horizon_days":31}`, nil, http.StatusBadRequest, apierror.TypeValidation},
		{"unknown type", `{"prediction_type":"mood","horizon_days":3}`, service.ErrUnknownPredictionType, http.StatusBadRequest, apierror.TypeBadRequest},
		{"low confidence", `{"prediction_type":"hrv","horizon_days":3,"min_confidence":95}`, service.ErrBelowMinConfidence, http.StatusUnprocessableEntity, apierror.TypeLowConfidence},
		{"storage", `{"prediction_type":"hrv","horizon_days":3}`, repository.NewStorageError("create", context.DeadlineExceeded), http.StatusServiceUnavailable, apierror.TypeUnavailable},
		{"unexpected", `{"prediction_type":"hrv","horizon_days":3}`, fmt.Errorf("boom"), http.StatusInternalServerError, apierror.TypeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{predict: func(string, int, float64) (*models.Prediction, error) {
				if tt.err == nil {
					t.Fatal("service should not be called")
				}
				return nil, tt.err
			}}

			w := request(t, newTestRouter(svc, true), http.MethodPost, "/api/v1/predictions", tt.body)

			assert.Equal(t, tt.status, w.Code)
			problem := decodeProblem(t, w)
			assert.Equal(t, tt.wantType, problem.Type)
			assert.Equal(t, "req-1", problem.RequestID)
			assert.NotContains(t, problem.Detail, "boom")
		})
	}
}

func TestLowConfidenceReportsDefaultMinimum(t *testing.T) {
	svc := &fakeService{predict: func(string, int, float64) (*models.Prediction, error) {
		return nil, service.ErrBelowMinConfidence
	}}

	w := request(t, newTestRouter(svc, true), http.MethodPost, "/api/v1/predictions", `{"prediction_type":"hrv","horizon_days":3}`)

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, decodeProblem(t, w).Detail, "40")
}

func TestRecordPredictionOutcome(t *testing.T) {
	id := newID(t)
	calls := 0
	svc := &fakeService{outcome: func(gotID string, actual float64) (*models.Prediction, error) {
		calls++
		assert.Equal(t, id, gotID)
		if calls > 1 {
			return nil, service.ErrPredictionCompleted
		}
		return &models.Prediction{ID: gotID, Status: models.PredictionCompleted, ActualValue: &actual}, nil
	}}
	r := newTestRouter(svc, true)
	path := "/api/v1/predictions/" + id + "/outcome"

	w := request(t, r, http.MethodPost, path, `{"actual":72}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w = request(t, r, http.MethodPost, path, `{"actual":72}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = request(t, r, http.MethodPost, path, `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = request(t, r, http.MethodPost, "/api/v1/predictions/not-a-uuid/outcome", `{"actual":72}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apierror.TypeInvalidUUID, decodeProblem(t, w).Type)
}

func TestRecordPredictionOutcome_NotFound(t *testing.T) {
	id := newID(t)
	svc := &fakeService{outcome: func(string, float64) (*models.Prediction, error) {
		return nil, service.ErrPredictionNotFound
	}}

	w := request(t, newTestRouter(svc, true), http.MethodPost, "/api/v1/predictions/"+id+"/outcome", `{"actual":1}`)

	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, decodeProblem(t, w).Detail, id)
}

func TestForecast(t *testing.T) {
	var gotMetrics []string
	var gotDays int
	svc := &fakeService{forecast: func(metrics []string, days int) (*models.ForecastResponse, error) {
		gotMetrics, gotDays = metrics, days
		return &models.ForecastResponse{Days: days, Metrics: map[string][]models.ForecastPoint{}}, nil
	}}
	r := newTestRouter(svc, true)

	w := request(t, r, http.MethodGet, "/api/v1/forecast?metrics=hrv,%20energy,&days=14", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"hrv", "energy"}, gotMetrics)
	assert.Equal(t, 14, gotDays)

	w = request(t, r, http.MethodGet, "/api/v1/forecast", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, gotMetrics)
	assert.Equal(t, DefaultForecastDays, gotDays)

	w = request(t, r, http.MethodGet, "/api/v1/forecast?days=soon", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestForecast_UnknownMetric(t *testing.T) {
	svc := &fakeService{forecast: func([]string, int) (*models.ForecastResponse, error) {
		return nil, fmt.Errorf("%w: mood", service.ErrUnknownMetric)
	}}

	w := request(t, newTestRouter(svc, true), http.MethodGet, "/api/v1/forecast?metrics=mood", "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAssessRisk(t *testing.T) {
	svc := &fakeService{assessRisk: func(riskType models.RiskType) (*models.RiskAssessment, error) {
		if riskType != models.RiskTypeBurnout {
			return nil, service.ErrUnknownRiskType
		}
		return &models.RiskAssessment{RiskType: riskType, Status: models.RiskStatusInsufficientData, Factors: []string{models.FactorInsufficientData}}, nil
	}}
	r := newTestRouter(svc, true)

	w := request(t, r, http.MethodGet, "/api/v1/risk/burnout", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"score":null`)

	w = request(t, r, http.MethodGet, "/api/v1/risk/flu", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEvaluateSample(t *testing.T) {
	ts := time.Date(2026, 3, 31, 6, 0, 0, 0, time.UTC)
	svc := &fakeService{evaluate: func(sample models.TimeSeriesSample) ([]models.TriggerEvent, error) {
		assert.Equal(t, "sleep_duration", sample.MetricName)
		assert.Equal(t, 330.0, sample.Value)
		assert.True(t, ts.Equal(sample.Timestamp))
		return []models.TriggerEvent{{PatternType: models.PatternSleepPerformance}}, nil
	}}
	r := newTestRouter(svc, true)

	w := request(t, r, http.MethodPost, "/api/v1/samples/evaluate", `{"metric_name":"sleep_duration","value":330,"timestamp":"2026-03-31T06:00:00Z"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"triggers":[`)

	w = request(t, r, http.MethodPost, "/api/v1/samples/evaluate", `{"metric_name":"sleep_duration"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEvaluateSample_FutureTimestamp(t *testing.T) {
	svc := &fakeService{evaluate: func(models.TimeSeriesSample) ([]models.TriggerEvent, error) {
		return nil, service.ErrFutureTimestamp
	}}

	w := request(t, newTestRouter(svc, true), http.MethodPost, "/api/v1/samples/evaluate", `{"metric_name":"hrv","value":50}`)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apierror.TypeFutureTimestamp, decodeProblem(t, w).Type)
}

func TestListPatterns(t *testing.T) {
	var gotActive bool
	svc := &fakeService{listPatterns: func(activeOnly bool) ([]models.PatternSummary, error) {
		gotActive = activeOnly
		return []models.PatternSummary{}, nil
	}}
	r := newTestRouter(svc, true)

	w := request(t, r, http.MethodGet, "/api/v1/patterns", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, gotActive)
	assert.JSONEq(t, `{"patterns":[]}`, w.Body.String())

	w = request(t, r, http.MethodGet, "/api/v1/patterns?active=false", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, gotActive)

	w = request(t, r, http.MethodGet, "/api/v1/patterns?active=maybe", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPatternTransitions(t *testing.T) {
	id := newID(t)
	svc := &fakeService{transition: func(op, gotID string) (*models.PatternSummary, error) {
		switch op {
		case "confirm":
			return &models.PatternSummary{ID: gotID, ValidationStatus: models.ValidationValidated, IsActive: true}, nil
		case "reject":
			return nil, fmt.Errorf("%w: cannot reject a validated pattern", patterns.ErrInvalidTransition)
		default:
			return nil, patterns.ErrPatternNotFound
		}
	}}
	r := newTestRouter(svc, true)
	base := "/api/v1/patterns/" + id

	w := request(t, r, http.MethodPost, base+"/confirm", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"validation_status":"validated"`)

	w = request(t, r, http.MethodPost, base+"/reject", "")
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, apierror.TypeConflict, decodeProblem(t, w).Type)

	w = request(t, r, http.MethodPost, base+"/deactivate", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = request(t, r, http.MethodPost, "/api/v1/patterns/"+uuid.New().String()+"/confirm", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRecordPatternOutcome(t *testing.T) {
	id := newID(t)
	svc := &fakeService{patternOutcome: func(gotID string, predicted, actual float64) (*models.PatternSummary, error) {
		assert.Equal(t, 80.0, predicted)
		assert.Equal(t, 100.0, actual)
		return &models.PatternSummary{ID: gotID, SuccessRate: 80}, nil
	}}
	r := newTestRouter(svc, true)
	path := "/api/v1/patterns/" + id + "/outcome"

	w := request(t, r, http.MethodPost, path, `{"predicted":80,"actual":100}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"success_rate":80`)

	w = request(t, r, http.MethodPost, path, `{"actual":100}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "predicted", decodeProblem(t, w).Errors[0].Field)
}

func TestSnakeCase(t *testing.T) {
	assert.Equal(t, "horizon_days", snakeCase("HorizonDays"))
	assert.Equal(t, "actual", snakeCase("Actual"))
	assert.Equal(t, "prediction_type", snakeCase("PredictionType"))
}
