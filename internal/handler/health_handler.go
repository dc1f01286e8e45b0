package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/medekzamen/medbot-api/pkg/config"
	appErrors "github.com/medekzamen/medbot-api/pkg/errors"
	"github.com/medekzamen/medbot-api/pkg/response"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves liveness and configuration info.
type HealthHandler struct {
	cfg    *config.Config
	pinger pinger
}

// NewHealthHandler constructs a health handler. A nil pinger reports the
// database as down.
func NewHealthHandler(cfg *config.Config, p pinger) *HealthHandler {
	return &HealthHandler{cfg: cfg, pinger: p}
}

// Root godoc
// @Summary Liveness and effective public configuration
// @Tags Health
// @Produce json
// @Success 200 {object} response.Envelope
// @Router / [get]
func (h *HealthHandler) Root(c *gin.Context) {
	botState := "missing"
	if h.cfg.BotToken != "" {
		botState = "set"
	}
	dbState := "missing"
	if h.cfg.DatabaseConfigured() {
		dbState = "set"
	}

	response.OK(c, response.Envelope{
		"status":  "ok",
		"message": "MedEkzamen bot API",
		"config": response.Envelope{
			"bot_token": botState,
			"database":  dbState,
		},
	})
}

// Health godoc
// @Summary Readiness probe backed by a database ping
// @Tags Health
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /api/health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	if h.pinger == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotConfigured, "database is not configured"))
		return
	}
	if err := h.pinger.Ping(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, response.Envelope{
		"status":   "ok",
		"database": "up",
	})
}
