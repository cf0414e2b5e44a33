package utils

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/oneclick-dev/oneclick/internal/auth"
	"github.com/oneclick-dev/oneclick/internal/types"
)

// GetCurrentClaims returns the verified token claims stored by the session
// middleware. They may be stale; load the user record for authoritative data.
func GetCurrentClaims(ctx *gin.Context) (*auth.IdentityClaims, error) {
	value, exists := ctx.Get(types.ContextClaimsKey)

	if !exists {
		return nil, fmt.Errorf("User not authenticated")
	}

	claims, ok := value.(*auth.IdentityClaims)

	if !ok {
		return nil, fmt.Errorf("Invalid claims type in context")
	}

	return claims, nil
}
