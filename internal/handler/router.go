package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/medekzamen/medbot-api/internal/middleware"
	"github.com/medekzamen/medbot-api/internal/service"
	"github.com/medekzamen/medbot-api/pkg/config"
	"github.com/medekzamen/medbot-api/pkg/logger"
	"github.com/medekzamen/medbot-api/pkg/middleware/cors"
	"github.com/medekzamen/medbot-api/pkg/middleware/requestid"
)

// RouterDeps bundles everything the HTTP surface needs.
type RouterDeps struct {
	Config    *config.Config
	Logger    *zap.Logger
	Health    *HealthHandler
	Materials *MaterialHandler
	Users     *UserHandler
	Metrics   *service.MetricsService
}

// NewRouter assembles the gin engine with the common middleware chain and all
// API routes.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestid.Middleware())
	r.Use(logger.GinMiddleware(deps.Logger))
	r.Use(cors.New(deps.Config.CORS.AllowedOrigins))
	if deps.Metrics != nil {
		r.Use(middleware.Metrics(deps.Metrics))
	}

	r.GET("/", deps.Health.Root)
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	api := r.Group("/api")
	{
		api.GET("/health", deps.Health.Health)
		api.GET("/materials/:tag", deps.Materials.ListByTag)
		api.GET("/files", deps.Materials.Files)
		api.GET("/download/:id", deps.Materials.Download)
		api.GET("/users/:id", deps.Users.Get)
		api.POST("/users", deps.Users.Create)
	}

	return r
}
