package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/JonnyWalker81/pulse/backend/internal/apierror"
	"github.com/JonnyWalker81/pulse/backend/internal/cache"
	"github.com/JonnyWalker81/pulse/backend/internal/logger"
)

// IdempotencyKeyHeader is the HTTP header name for idempotency keys
const IdempotencyKeyHeader = "Idempotency-Key"

const idempotencyReplayedHeader = "X-Idempotency-Replayed"

// inFlightTTL bounds how long a claimed key blocks retries if the handler dies
const inFlightTTL = 30 * time.Second

var inFlightMarker = []byte("in-flight")

type idempotencyBodyWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *idempotencyBodyWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

type storedResponse struct {
	StatusCode int             `json:"status_code"`
	Body       json.RawMessage `json:"body"`
}

// Idempotency replays the first successful response for a repeated
// Idempotency-Key on POST routes, so a retried prediction is not stored twice.
// A key whose first request is still running answers 409.
func Idempotency(provider cache.Provider, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyKeyHeader)
		if c.Request.Method != http.MethodPost || key == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		log := logger.Ctx(ctx)
		cacheKey := "idem:" + c.GetString(UserIDKey) + ":" + c.FullPath() + ":" + key

		claimed, err := provider.SetNX(ctx, cacheKey, inFlightMarker, inFlightTTL)
		if err != nil {
			// proceed without replay protection
			log.Warn("idempotency claim failed", logger.Err(err), logger.String("key", key))
			c.Next()
			return
		}

		if !claimed {
			raw, err := provider.Get(ctx, cacheKey)
			switch {
			case errors.Is(err, cache.ErrCacheMiss):
				c.Next()
				return
			case err != nil:
				log.Warn("idempotency lookup failed", logger.Err(err), logger.String("key", key))
				c.Next()
				return
			case bytes.Equal(raw, inFlightMarker):
				apierror.WriteProblem(c, apierror.NewConflictError(apierror.GetRequestID(c),
					"A request with this Idempotency-Key is still being processed"))
				c.Abort()
				return
			}

			var stored storedResponse
			if err := json.Unmarshal(raw, &stored); err != nil {
				log.Warn("discarding unreadable idempotency record", logger.Err(err))
				_ = provider.Del(ctx, cacheKey)
				c.Next()
				return
			}

			log.Info("replaying idempotent response",
				logger.String("key", key),
				logger.Int("status_code", stored.StatusCode),
			)
			c.Header(idempotencyReplayedHeader, "true")
			c.Data(stored.StatusCode, "application/json", stored.Body)
			c.Abort()
			return
		}

		blw := &idempotencyBodyWriter{body: bytes.NewBuffer(nil), ResponseWriter: c.Writer}
		c.Writer = blw
		c.Next()

		status := c.Writer.Status()
		if status < 200 || status >= 300 {
			// failed requests may be retried with the same key
			_ = provider.Del(ctx, cacheKey)
			return
		}

		raw, err := json.Marshal(storedResponse{StatusCode: status, Body: blw.body.Bytes()})
		if err == nil {
			err = provider.Set(ctx, cacheKey, raw, ttl)
		}
		if err != nil {
			log.Warn("failed to store idempotency record", logger.Err(err), logger.String("key", key))
			_ = provider.Del(ctx, cacheKey)
		}
	}
}
