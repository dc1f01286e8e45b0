package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/medekzamen/medbot-api/internal/models"
	"github.com/medekzamen/medbot-api/internal/service"
	appErrors "github.com/medekzamen/medbot-api/pkg/errors"
	"github.com/medekzamen/medbot-api/pkg/response"
)

type userService interface {
	Register(ctx context.Context, req service.RegisterRequest) (*models.User, error)
	Get(ctx context.Context, userID int64) (*models.User, error)
}

// UserHandler serves user profiles to the mini-app and lets it upsert
// registrations directly.
type UserHandler struct {
	service userService
}

// NewUserHandler constructs a user handler.
func NewUserHandler(svc userService) *UserHandler {
	return &UserHandler{service: svc}
}

// Get godoc
// @Summary Get user profile by Telegram id
// @Tags Users
// @Produce json
// @Param id path int true "Telegram user id"
// @Success 200 {object} response.Envelope
// @Router /api/users/{id} [get]
func (h *UserHandler) Get(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "id must be a number"))
		return
	}

	user, err := h.service.Get(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, response.Envelope{"user": user})
}

// Create godoc
// @Summary Register or update a user
// @Tags Users
// @Accept json
// @Produce json
// @Param payload body service.RegisterRequest true "Registration payload"
// @Success 201 {object} response.Envelope
// @Router /api/users [post]
func (h *UserHandler) Create(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	user, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, response.Envelope{"user": user})
}
