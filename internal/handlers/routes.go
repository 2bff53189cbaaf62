package handlers

import "github.com/gin-gonic/gin"

// Register mounts the intelligence routes on rg. predictMiddleware runs in
// front of POST /predictions only, e.g. idempotency.
func (h *IntelligenceHandler) Register(rg gin.IRoutes, predictMiddleware ...gin.HandlerFunc) {
	rg.POST("/analysis", h.Analyze)
	predict := append(append([]gin.HandlerFunc{}, predictMiddleware...), h.Predict)
	rg.POST("/predictions", predict...)
	rg.POST("/predictions/:id/outcome", h.RecordPredictionOutcome)
	rg.GET("/forecast", h.Forecast)
	rg.GET("/risk/:type", h.AssessRisk)
	rg.GET("/patterns", h.ListPatterns)
	rg.POST("/patterns/:id/confirm", h.ConfirmPattern)
	rg.POST("/patterns/:id/reject", h.RejectPattern)
	rg.POST("/patterns/:id/deactivate", h.DeactivatePattern)
	rg.POST("/patterns/:id/outcome", h.RecordPatternOutcome)
	rg.POST("/samples/evaluate", h.EvaluateSample)
}
