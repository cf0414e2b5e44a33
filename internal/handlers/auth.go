package handlers

import (
	"errors"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"github.com/oneclick-dev/oneclick/internal/auth"
	"github.com/oneclick-dev/oneclick/internal/logger"
	"github.com/oneclick-dev/oneclick/internal/models"
	"github.com/oneclick-dev/oneclick/internal/services"
	"github.com/oneclick-dev/oneclick/internal/types"
	"github.com/oneclick-dev/oneclick/internal/utils"
)

type AuthHandler struct {
	provider auth.IdentityProvider
	session  *services.Session
	tokens   *auth.TokenService
	cookies  auth.CookieConfig
	appURL   string
	log      *logger.Logger
}

func NewAuthHandler(provider auth.IdentityProvider, session *services.Session, tokens *auth.TokenService, cookies auth.CookieConfig, appURL string, log *logger.Logger) *AuthHandler {
	return &AuthHandler{
		provider: provider,
		session:  session,
		tokens:   tokens,
		cookies:  cookies,
		appURL:   appURL,
		log:      log.With("handler", "auth"),
	}
}

func (h *AuthHandler) GoogleLogin(ctx *gin.Context) {
	state, err := auth.NewState()

	if err != nil {
		h.log.Error("Failed to generate OAuth state", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	h.cookies.SetState(ctx.Writer, state)
	ctx.Redirect(http.StatusFound, h.provider.AuthCodeURL(state))
}

func (h *AuthHandler) GoogleCallback(ctx *gin.Context) {
	code := ctx.Query("code")

	if code == "" {
		h.loginError(ctx, "no_code")
		return
	}

	expected, err := ctx.Cookie(auth.StateCookieName)
	h.cookies.ClearState(ctx.Writer)

	if err != nil || expected == "" || expected != ctx.Query("state") {
		h.loginError(ctx, "invalid_state")
		return
	}

	identity, err := h.provider.Exchange(ctx.Request.Context(), code)

	if err != nil {
		h.log.Warn("Google OAuth exchange failed", "error", err)

		if errors.Is(err, auth.ErrMissingUserInfo) {
			h.loginError(ctx, "missing_user_info")
		} else {
			h.loginError(ctx, "oauth_failed")
		}
		return
	}

	token, _, err := h.session.Login(ctx.Request.Context(), *identity)

	if err != nil {
		h.log.Error("Failed to record login", "error", err)
		h.loginError(ctx, "oauth_failed")
		return
	}

	h.cookies.SetSession(ctx.Writer, token)
	ctx.Redirect(http.StatusFound, h.appURL+"/user")
}

func (h *AuthHandler) loginError(ctx *gin.Context, code string) {
	ctx.Redirect(http.StatusFound, h.appURL+"/login?error="+code)
}

// CurrentUser echoes the session claims without touching the database.
func (h *AuthHandler) CurrentUser(ctx *gin.Context) {
	claims, err := utils.GetCurrentClaims(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "No token found"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"user": claimsResponse(claims)})
}

func (h *AuthHandler) Logout(ctx *gin.Context) {
	h.cookies.ClearSession(ctx.Writer)
	ctx.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

func (h *AuthHandler) RefreshToken(ctx *gin.Context) {
	claims, err := utils.GetCurrentClaims(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "No token found"})
		return
	}

	token, user, err := h.session.Refresh(ctx.Request.Context(), claims)

	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		h.log.Error("Failed to refresh token", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to refresh token"})
		return
	}

	h.cookies.SetSession(ctx.Writer, token)

	ctx.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Token refreshed successfully",
		"user":    userResponse(user),
	})
}

// DebugToken reports the raw claims of the session cookie.
func (h *AuthHandler) DebugToken(ctx *gin.Context) {
	tokenString, err := ctx.Cookie(auth.SessionCookieName)

	if err != nil || tokenString == "" {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "No token found"})
		return
	}

	decoded, err := h.tokens.Decode(tokenString)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token", "details": err.Error()})
		return
	}

	fields := make([]string, 0, len(decoded))

	for key := range decoded {
		fields = append(fields, key)
	}

	sort.Strings(fields)

	hashkey, _ := decoded["hashkey"].(string)

	ctx.JSON(http.StatusOK, gin.H{
		"decoded":     decoded,
		"hasHashkey":  hashkey != "",
		"tokenFields": fields,
	})
}

func claimsResponse(claims *auth.IdentityClaims) types.UserResponse {
	return types.UserResponse{
		ID:            claims.ExternalID,
		Email:         claims.Email,
		Name:          claims.Name,
		Picture:       claims.Picture,
		VerifiedEmail: claims.VerifiedEmail,
		UserID:        claims.UserID,
		Hashkey:       claims.Hashkey,
	}
}

func userResponse(user *models.User) types.UserResponse {
	claims := auth.ClaimsForUser(user)
	return claimsResponse(&claims)
}
