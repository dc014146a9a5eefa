package routes

import (
	"context"
	"net/http"
	"strings"

	"firebase.google.com/go/v4/auth"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const authUIDKey = "auth_uid"

// TokenVerifier verifies Firebase ID tokens; *auth.Client implements it.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// socketToken also accepts the token query parameter: browsers cannot set
// headers on the WebSocket handshake.
func socketToken(c *gin.Context) string {
	if token := bearerToken(c); token != "" {
		return token
	}
	return c.Query("token")
}

// RequireUser 校验Firebase令牌
// The verified UID must match the user the request is about, taken from the
// :userId path parameter or the userId query parameter.
func RequireUser(verifier TokenVerifier, log zerolog.Logger) gin.HandlerFunc {
	return requireUser(verifier, log, bearerToken)
}

// RequireSocketUser is RequireUser for the WebSocket handshake.
func RequireSocketUser(verifier TokenVerifier, log zerolog.Logger) gin.HandlerFunc {
	return requireUser(verifier, log, socketToken)
}

func requireUser(verifier TokenVerifier, log zerolog.Logger, tokenFrom func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := tokenFrom(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		verified, err := verifier.VerifyIDToken(c.Request.Context(), token)
		if err != nil {
			log.Warn().Err(err).Str("path", c.FullPath()).Msg("rejected id token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		userID := c.Param("userId")
		if userID == "" {
			userID = c.Query("userId")
		}
		if userID != "" && userID != verified.UID {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "token does not belong to this user"})
			return
		}

		c.Set(authUIDKey, verified.UID)
		c.Next()
	}
}
