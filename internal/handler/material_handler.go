package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/medekzamen/medbot-api/internal/models"
	"github.com/medekzamen/medbot-api/internal/service"
	appErrors "github.com/medekzamen/medbot-api/pkg/errors"
	"github.com/medekzamen/medbot-api/pkg/response"
)

type materialService interface {
	ListResolved(ctx context.Context, filter models.MaterialFilter) ([]service.ResolvedMaterial, error)
	ListFileLinks(ctx context.Context, tag string, course *int) ([]service.FileLink, error)
	ResolveFile(ctx context.Context, id int64) (*models.Material, string, error)
}

// Downloader fetches a resolved file URL, returning the streaming response.
type Downloader interface {
	Download(ctx context.Context, url string) (*http.Response, error)
}

// MaterialHandler serves material listings and file downloads to the mini-app.
type MaterialHandler struct {
	service    materialService
	downloader Downloader
	isAdmin    func(userID int64) bool
}

// NewMaterialHandler constructs a material handler. A nil downloader disables
// the download endpoint.
func NewMaterialHandler(svc materialService, downloader Downloader, isAdmin func(int64) bool) *MaterialHandler {
	if isAdmin == nil {
		isAdmin = func(int64) bool { return false }
	}
	return &MaterialHandler{service: svc, downloader: downloader, isAdmin: isAdmin}
}

// ListByTag godoc
// @Summary List materials under a tag with resolved download links
// @Tags Materials
// @Produce json
// @Param tag path string true "Material tag"
// @Param course query int false "Course filter"
// @Param group_lang query string false "Group filter (ru or tj)"
// @Param user_id query int false "Requesting Telegram user id"
// @Success 200 {object} response.Envelope
// @Router /api/materials/{tag} [get]
func (h *MaterialHandler) ListByTag(c *gin.Context) {
	filter := models.MaterialFilter{Tag: c.Param("tag")}

	if raw := c.Query("course"); raw != "" {
		course, err := strconv.Atoi(raw)
		if err != nil || course < models.MinCourse || course > models.MaxCourse {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "course must be between 1 and 6"))
			return
		}
		filter.Course = &course
	}

	if raw := c.Query("group_lang"); raw != "" {
		group := models.GroupLang(raw)
		if !group.Valid() {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "group_lang must be ru or tj"))
			return
		}
		filter.GroupLang = &group
	}

	if raw := c.Query("user_id"); raw != "" {
		if userID, err := strconv.ParseInt(raw, 10, 64); err == nil {
			filter.IsAdmin = h.isAdmin(userID)
		}
	}

	materials, err := h.service.ListResolved(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	filters := response.Envelope{"tag": filter.Tag}
	if filter.Course != nil {
		filters["course"] = *filter.Course
	}
	if filter.GroupLang != nil {
		filters["group_lang"] = *filter.GroupLang
	}

	response.OK(c, response.Envelope{
		"materials": materials,
		"count":     len(materials),
		"filters":   filters,
	})
}

// Files godoc
// @Summary Flat listing of downloadable files
// @Tags Materials
// @Produce json
// @Param tag query string false "Tag filter"
// @Param course query int false "Course filter"
// @Success 200 {object} response.Envelope
// @Router /api/files [get]
func (h *MaterialHandler) Files(c *gin.Context) {
	var course *int
	if raw := c.Query("course"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < models.MinCourse || parsed > models.MaxCourse {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "course must be between 1 and 6"))
			return
		}
		course = &parsed
	}

	links, err := h.service.ListFileLinks(c.Request.Context(), c.Query("tag"), course)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, response.Envelope{
		"files": links,
		"count": len(links),
	})
}

// Download godoc
// @Summary Stream a material's file body
// @Tags Materials
// @Produce octet-stream
// @Param id path int true "Material id"
// @Success 200 {file} binary
// @Router /api/download/{id} [get]
func (h *MaterialHandler) Download(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "id must be a number"))
		return
	}
	if h.downloader == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotConfigured, "bot token is not configured"))
		return
	}

	material, url, err := h.service.ResolveFile(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	resp, err := h.downloader.Download(c.Request.Context(), url)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "file is not available"))
		return
	}
	defer resp.Body.Close()

	name := "file"
	if material.FileName != nil && *material.FileName != "" {
		name = *material.FileName
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	extraHeaders := map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", name),
	}
	c.DataFromReader(http.StatusOK, resp.ContentLength, contentType, resp.Body, extraHeaders)
}
