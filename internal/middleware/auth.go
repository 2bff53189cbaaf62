package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/JonnyWalker81/pulse/backend/internal/apierror"
	"github.com/JonnyWalker81/pulse/backend/internal/cache"
	"github.com/JonnyWalker81/pulse/backend/internal/logger"
	"github.com/JonnyWalker81/pulse/backend/pkg/supabase"
)

// UserIDKey is the gin context key holding the authenticated user ID
const UserIDKey = "user_id"

// TokenVerifier resolves a bearer token to a user
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*supabase.User, error)
}

// TokenCache remembers verified tokens so each request does not round-trip
// to the auth provider. Entries expire after ttl and can be dropped with
// Invalidate.
type TokenCache struct {
	provider cache.Provider
	ttl      time.Duration
}

// NewTokenCache creates a token cache on provider. A nil provider disables caching.
func NewTokenCache(provider cache.Provider, ttl time.Duration) *TokenCache {
	if provider == nil {
		provider = cache.NoopProvider{}
	}
	return &TokenCache{provider: provider, ttl: ttl}
}

func tokenKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "auth:token:" + hex.EncodeToString(sum[:])
}

// Lookup returns the cached user for token, or cache.ErrCacheMiss
func (tc *TokenCache) Lookup(ctx context.Context, token string) (*supabase.User, error) {
	raw, err := tc.provider.Get(ctx, tokenKey(token))
	if err != nil {
		return nil, err
	}
	var user supabase.User
	if err := json.Unmarshal(raw, &user); err != nil || user.ID == "" {
		_ = tc.provider.Del(ctx, tokenKey(token))
		return nil, cache.ErrCacheMiss
	}
	return &user, nil
}

// Remember caches user for token
func (tc *TokenCache) Remember(ctx context.Context, token string, user *supabase.User) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return tc.provider.Set(ctx, tokenKey(token), raw, tc.ttl)
}

// Invalidate drops a token, e.g. on sign-out
func (tc *TokenCache) Invalidate(ctx context.Context, token string) error {
	return tc.provider.Del(ctx, tokenKey(token))
}

// Auth verifies the bearer token and stores the user ID on the gin and
// request contexts
func Auth(verifier TokenVerifier, tokens *TokenCache) gin.HandlerFunc {
	if tokens == nil {
		tokens = NewTokenCache(nil, 0)
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		log := logger.Ctx(ctx)

		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			log.Debug("authentication failed: missing or malformed authorization header")
			apierror.WriteProblem(c, apierror.NewUnauthorizedError(apierror.GetRequestID(c)))
			c.Abort()
			return
		}

		user, err := tokens.Lookup(ctx, token)
		if err != nil {
			if !errors.Is(err, cache.ErrCacheMiss) {
				log.Warn("token cache lookup failed", logger.Err(err))
			}
			user, err = verifier.VerifyToken(ctx, token)
			if err != nil {
				log.Warn("authentication failed: token verification error", logger.Err(err))
				apierror.WriteProblem(c, apierror.NewUnauthorizedError(apierror.GetRequestID(c)))
				c.Abort()
				return
			}
			if err := tokens.Remember(ctx, token, user); err != nil {
				log.Warn("failed to cache verified token", logger.Err(err))
			}
		}

		c.Set(UserIDKey, user.ID)
		c.Request = c.Request.WithContext(logger.WithUserID(ctx, user.ID))

		log.Debug("authentication successful", logger.String("user_id", user.ID))
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || scheme != "Bearer" || token == "" {
		return "", false
	}
	return token, true
}
