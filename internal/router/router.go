package router

import (
	"github.com/gin-gonic/gin"
	"github.com/oneclick-dev/oneclick/internal/auth"
	"github.com/oneclick-dev/oneclick/internal/handlers"
	"github.com/oneclick-dev/oneclick/internal/logger"
	"github.com/oneclick-dev/oneclick/internal/middleware"
	"github.com/oneclick-dev/oneclick/internal/observability"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

type Handlers struct {
	Health    *handlers.HealthHandler
	Auth      *handlers.AuthHandler
	Surveys   *handlers.SurveyHandler
	Dashboard *handlers.DashboardHandler
}

type Options struct {
	Tokens         *auth.TokenService
	AllowedOrigins []string
	Log            *logger.Logger
}

func NewRouter(h Handlers, opts Options) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(otelgin.Middleware(observability.ServiceName))
	r.Use(middleware.RequestLogger(opts.Log))
	r.Use(middleware.CORS(opts.AllowedOrigins))

	session := middleware.RequireSession(opts.Tokens)

	api := r.Group("/api")
	{
		api.GET("/health", h.Health.HealthCheck)

		authGroup := api.Group("/auth")
		{
			authGroup.GET("/google", h.Auth.GoogleLogin)
			authGroup.GET("/google/callback", h.Auth.GoogleCallback)
			authGroup.GET("/user", session, h.Auth.CurrentUser)
			authGroup.POST("/logout", h.Auth.Logout)
		}

		api.POST("/refresh-token", session, h.Auth.RefreshToken)
		api.GET("/debug-token", h.Auth.DebugToken)

		api.POST("/create-survey", session, h.Surveys.CreateSurvey)

		userSurveys := api.Group("/user-surveys", session)
		{
			userSurveys.GET("", h.Surveys.ListUserSurveys)
			userSurveys.PATCH("/:id", h.Surveys.UpdateUserSurvey)
			userSurveys.DELETE("/:id", h.Surveys.DeleteUserSurvey)
		}

		api.GET("/surveys/:hashkey", h.Surveys.GetPublicSurvey)
		api.GET("/dashboard/:hashkey", session, h.Dashboard.GetDashboard)
	}

	return r
}
