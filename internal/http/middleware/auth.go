package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/nurpe/cnc-service/internal/model"
)

const principalKey = "principal"

type TokenParser interface {
	Parse(token string) (model.Principal, error)
}

// ProfileSyncer mirrors the caller into local storage on every request.
type ProfileSyncer interface {
	Sync(ctx context.Context, principal model.Principal) error
}

func Auth(parser TokenParser, profiles ProfileSyncer, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, token, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		principal, err := parser.Parse(strings.TrimSpace(token))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		if profiles != nil {
			if err := profiles.Sync(c.Request.Context(), principal); err != nil {
				log.Warn().Err(err).Str("user_id", principal.UserID).Msg("profile sync failed")
			}
		}

		c.Set(principalKey, principal)
		c.Next()
	}
}

func MustPrincipal(c *gin.Context) (model.Principal, bool) {
	value, ok := c.Get(principalKey)
	if !ok {
		return model.Principal{}, false
	}
	principal, ok := value.(model.Principal)
	return principal, ok
}
