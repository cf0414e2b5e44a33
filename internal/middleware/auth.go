package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/oneclick-dev/oneclick/internal/auth"
	"github.com/oneclick-dev/oneclick/internal/types"
)

// RequireSession verifies the auth-token cookie and stores its claims in the
// request context. Requests without a valid session are rejected with 401.
func RequireSession(tokens *auth.TokenService) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		tokenString, err := ctx.Cookie(auth.SessionCookieName)

		if err != nil || tokenString == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "No token found"})
			return
		}

		claims, err := tokens.Verify(tokenString)

		if err != nil {
			message := "Invalid token"

			if errors.Is(err, auth.ErrExpiredToken) {
				message = "Token expired"
			}

			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": message})
			return
		}

		ctx.Set(types.ContextClaimsKey, claims)
		ctx.Next()
	}
}
