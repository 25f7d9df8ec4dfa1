package auth

import (
	"errors"
	"strings"

	"github.com/agenthands/kindred/internal/apperror"
	"github.com/gin-gonic/gin"
)

const userIDKey = "userID"

// RequireAuth rejects requests without a valid bearer token. Browsers cannot
// set headers on websocket upgrades, so a token query parameter is accepted
// as well.
func RequireAuth(ts *TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c.GetHeader("Authorization"))
		if raw == "" {
			raw = c.Query("token")
		}
		if raw == "" {
			abort(c, apperror.Unauthorized("Missing bearer token"))
			return
		}

		claims, err := ts.Validate(raw)
		if err != nil {
			msg := "Invalid token"
			if errors.Is(err, ErrTokenExpired) {
				msg = "Token expired"
			}
			abort(c, apperror.Unauthorized(msg))
			return
		}

		c.Set(userIDKey, claims.UserID)
		c.Next()
	}
}

// CurrentUserID returns the authenticated user, or "" outside RequireAuth.
func CurrentUserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func abort(c *gin.Context, err error) {
	status, body := apperror.ToHTTPError(err)
	c.AbortWithStatusJSON(status, body)
}
