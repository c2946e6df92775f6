package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/learnbridge/learnbridge-api/internal/middleware"
	"github.com/learnbridge/learnbridge-api/internal/models"
	"github.com/learnbridge/learnbridge-api/internal/service"
	appErrors "github.com/learnbridge/learnbridge-api/pkg/errors"
	"github.com/learnbridge/learnbridge-api/pkg/response"
)

// ManagementHandler exposes the review workflow surface: submission intake,
// the pending queue, approve/reject verdicts and statistics.
type ManagementHandler struct {
	resources *service.ResourceService
	logger    *zap.Logger
}

func NewManagementHandler(resources *service.ResourceService, logger *zap.Logger) *ManagementHandler {
	return &ManagementHandler{resources: resources, logger: logger}
}

// Submit handles POST /management/submit.
func (h *ManagementHandler) Submit(c *gin.Context) {
	claims, _ := middleware.CurrentUser(c)

	req, upload, cleanup, err := bindSubmission(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer cleanup()

	resource, err := h.resources.SubmitForReview(c.Request.Context(), claims, req, upload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "resource submitted for review", resource)
}

// Pending handles GET /management/pending.
func (h *ManagementHandler) Pending(c *gin.Context) {
	filter := resourceFilterFromQuery(c)

	resources, pagination, err := h.resources.Pending(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "", resources, pagination)
}

// Approved handles GET /management/approved. Public browsing surface.
func (h *ManagementHandler) Approved(c *gin.Context) {
	filter := resourceFilterFromQuery(c)

	resources, pagination, err := h.resources.Approved(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "", resources, pagination)
}

// Approve handles PUT /management/:id/approve.
func (h *ManagementHandler) Approve(c *gin.Context) {
	claims, _ := middleware.CurrentUser(c)

	var req models.ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	resource, err := h.resources.Approve(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "resource approved", resource, nil)
}

// Reject handles PUT /management/:id/reject.
func (h *ManagementHandler) Reject(c *gin.Context) {
	claims, _ := middleware.CurrentUser(c)

	var req models.ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	resource, err := h.resources.Reject(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "resource rejected", resource, nil)
}

// Update handles PUT /management/:id (manager-equivalent, ignores ownership).
func (h *ManagementHandler) Update(c *gin.Context) {
	claims, _ := middleware.CurrentUser(c)

	var req models.UpdateResourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	resource, err := h.resources.ManagerUpdate(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "resource updated", resource, nil)
}

// Delete handles DELETE /management/:id.
func (h *ManagementHandler) Delete(c *gin.Context) {
	claims, _ := middleware.CurrentUser(c)

	if err := h.resources.Delete(c.Request.Context(), claims, c.Param("id"), true); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "resource deleted", nil, nil)
}

// Stats handles GET /management/stats.
func (h *ManagementHandler) Stats(c *gin.Context) {
	stats, err := h.resources.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, stats)
}

// ExportStats handles GET /management/stats/export?format=csv|pdf.
func (h *ManagementHandler) ExportStats(c *gin.Context) {
	payload, contentType, err := h.resources.ExportStats(c.Request.Context(), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}

	ext := "csv"
	if contentType == "application/pdf" {
		ext = "pdf"
	}
	filename := fmt.Sprintf("resource-stats-%s.%s", time.Now().UTC().Format("20060102-150405"), ext)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, payload)
}
