package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/oneclick-dev/oneclick/internal/hashkey"
	"github.com/oneclick-dev/oneclick/internal/logger"
	"github.com/oneclick-dev/oneclick/internal/services"
	"github.com/oneclick-dev/oneclick/internal/types"
	"github.com/oneclick-dev/oneclick/internal/utils"
)

// Malformed, foreign and unknown dashboard hashkeys all get this response.
var dashboardDenied = gin.H{"error": "Survey not found or access denied"}

type DashboardHandler struct {
	surveys *services.SurveyDirectory
	session *services.Session
	log     *logger.Logger
}

func NewDashboardHandler(surveys *services.SurveyDirectory, session *services.Session, log *logger.Logger) *DashboardHandler {
	return &DashboardHandler{surveys: surveys, session: session, log: log.With("handler", "dashboard")}
}

// GetDashboard serves the caller's own dashboard. The route hashkey must equal
// the caller's user hashkey.
func (h *DashboardHandler) GetDashboard(ctx *gin.Context) {
	claims, err := utils.GetCurrentClaims(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	routeKey := ctx.Param("hashkey")

	if !hashkey.Valid(routeKey) {
		ctx.JSON(http.StatusNotFound, dashboardDenied)
		return
	}

	ownKey, err := h.session.ResolveHashkey(ctx.Request.Context(), claims)

	if err != nil && !errors.Is(err, services.ErrUserNotFound) {
		h.log.Error("Failed to resolve hashkey", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if err != nil || ownKey != routeKey {
		ctx.JSON(http.StatusNotFound, dashboardDenied)
		return
	}

	user, err := h.session.ResolveUser(ctx.Request.Context(), claims)

	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			ctx.JSON(http.StatusNotFound, dashboardDenied)
			return
		}
		h.log.Error("Failed to resolve user", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	// a stale claim hashkey must still agree with the directory record
	if user.Hashkey != routeKey {
		ctx.JSON(http.StatusNotFound, dashboardDenied)
		return
	}

	surveys, err := h.surveys.GetByCreator(ctx.Request.Context(), user.ID)

	if err != nil {
		h.log.Error("Failed to list surveys", "error", err, "user_id", user.ID)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"success": true,
		"user":    userResponse(user),
		"surveys": types.NewSurveySummaries(surveys),
		"count":   len(surveys),
	})
}
