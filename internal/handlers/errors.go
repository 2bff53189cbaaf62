package handlers

import (
	"errors"
	"strings"
	"unicode"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/JonnyWalker81/pulse/backend/internal/apierror"
	"github.com/JonnyWalker81/pulse/backend/internal/logger"
	"github.com/JonnyWalker81/pulse/backend/internal/patterns"
	"github.com/JonnyWalker81/pulse/backend/internal/repository"
	"github.com/JonnyWalker81/pulse/backend/internal/service"
)

// storageRetryAfterSeconds is advertised when storage is temporarily down
const storageRetryAfterSeconds = 5

// userID returns the authenticated user, writing a 401 when absent
func userID(c *gin.Context) (string, bool) {
	id, exists := c.Get("user_id")
	if !exists {
		apierror.WriteProblem(c, apierror.NewUnauthorizedError(apierror.GetRequestID(c)))
		return "", false
	}
	s, ok := id.(string)
	if !ok || s == "" {
		apierror.WriteProblem(c, apierror.NewUnauthorizedError(apierror.GetRequestID(c)))
		return "", false
	}
	return s, true
}

// writeBindError reports a request body that failed to decode or validate
func writeBindError(c *gin.Context, err error) {
	requestID := apierror.GetRequestID(c)

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		apierror.WriteProblem(c, apierror.NewBadRequestError(requestID, err.Error(), "Invalid JSON format"))
		return
	}

	fields := make([]apierror.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, apierror.FieldError{
			Field:   snakeCase(fe.Field()),
			Message: validationMessage(fe),
			Code:    fe.Tag(),
		})
	}
	apierror.WriteProblem(c, apierror.NewValidationError(requestID, fields))
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	default:
		return "is invalid"
	}
}

func snakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

// validID writes a 400 for path IDs that are not UUIDv7
func (h *IntelligenceHandler) validID(c *gin.Context, field, id string) bool {
	err := service.ValidateID(id, h.now())
	if err == nil {
		return true
	}
	requestID := apierror.GetRequestID(c)
	if errors.Is(err, service.ErrFutureTimestamp) {
		apierror.WriteProblem(c, apierror.NewFutureTimestampError(requestID, field))
		return false
	}
	apierror.WriteProblem(c, apierror.NewInvalidUUIDError(requestID, field, id))
	return false
}

// writeServiceError maps engine errors to problem details. Unknown errors are
// logged and reported as 500 without detail.
func writeServiceError(c *gin.Context, err error, resource, id string) {
	requestID := apierror.GetRequestID(c)

	switch {
	case errors.Is(err, patterns.ErrPatternNotFound), errors.Is(err, service.ErrPredictionNotFound):
		apierror.WriteProblem(c, apierror.NewNotFoundError(requestID, resource, id))
	case errors.Is(err, patterns.ErrInvalidTransition), errors.Is(err, service.ErrPredictionCompleted):
		apierror.WriteProblem(c, apierror.NewConflictError(requestID, err.Error()))
	case errors.Is(err, service.ErrFutureTimestamp):
		apierror.WriteProblem(c, apierror.NewFutureTimestampError(requestID, "timestamp"))
	case errors.Is(err, service.ErrUnknownPredictionType),
		errors.Is(err, service.ErrUnknownRiskType),
		errors.Is(err, service.ErrUnknownMetric),
		errors.Is(err, service.ErrInvalidHorizon),
		errors.Is(err, service.ErrInvalidValue):
		apierror.WriteProblem(c, apierror.NewBadRequestError(requestID, err.Error(), "Please check your request and try again"))
	case repository.IsRetryable(err):
		logger.Ctx(c.Request.Context()).Warn("storage temporarily unavailable", logger.Err(err))
		apierror.WriteProblem(c, apierror.NewServiceUnavailableError(requestID, storageRetryAfterSeconds))
	default:
		logger.Ctx(c.Request.Context()).Error("request failed", logger.Err(err))
		apierror.WriteProblem(c, apierror.NewInternalError(requestID))
	}
}
