package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/learnbridge/learnbridge-api/internal/middleware"
	"github.com/learnbridge/learnbridge-api/internal/models"
	"github.com/learnbridge/learnbridge-api/internal/service"
	appErrors "github.com/learnbridge/learnbridge-api/pkg/errors"
	"github.com/learnbridge/learnbridge-api/pkg/response"
)

// ResourceHandler exposes the plain resource endpoints: upload, browse,
// owner edits and public download.
type ResourceHandler struct {
	resources *service.ResourceService
	logger    *zap.Logger
}

func NewResourceHandler(resources *service.ResourceService, logger *zap.Logger) *ResourceHandler {
	return &ResourceHandler{resources: resources, logger: logger}
}

// Upload handles POST /resources/upload.
func (h *ResourceHandler) Upload(c *gin.Context) {
	claims, _ := middleware.CurrentUser(c)

	req, upload, cleanup, err := bindSubmission(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer cleanup()

	resource, err := h.resources.UploadDirect(c.Request.Context(), claims, req, upload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "resource uploaded", resource)
}

// List handles GET /resources.
func (h *ResourceHandler) List(c *gin.Context) {
	filter := resourceFilterFromQuery(c)

	resources, pagination, err := h.resources.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "", resources, pagination)
}

// MyResources handles GET /resources/my-resources.
func (h *ResourceHandler) MyResources(c *gin.Context) {
	claims, _ := middleware.CurrentUser(c)
	filter := resourceFilterFromQuery(c)

	resources, pagination, err := h.resources.MyResources(c.Request.Context(), claims, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "", resources, pagination)
}

// Get handles GET /resources/:id.
func (h *ResourceHandler) Get(c *gin.Context) {
	resource, err := h.resources.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, resource)
}

// Update handles PUT /resources/:id (owner or admin).
func (h *ResourceHandler) Update(c *gin.Context) {
	claims, _ := middleware.CurrentUser(c)

	var req models.UpdateResourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	resource, err := h.resources.OwnerUpdate(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "resource updated", resource, nil)
}

// Delete handles DELETE /resources/:id (owner or admin).
func (h *ResourceHandler) Delete(c *gin.Context) {
	claims, _ := middleware.CurrentUser(c)

	if err := h.resources.Delete(c.Request.Context(), claims, c.Param("id"), false); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "resource deleted", nil, nil)
}

// Download handles GET /resources/:id/download. Public, streams the stored
// file as an attachment.
func (h *ResourceHandler) Download(c *gin.Context) {
	result, err := h.resources.Download(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer result.File.Close()

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.FileName))
	c.Header("Content-Type", result.MimeType)
	c.DataFromReader(http.StatusOK, result.Size, result.MimeType, result.File, nil)
}

// bindSubmission extracts the metadata fields and the uploaded file from a
// multipart request. The returned cleanup closes the file part.
func bindSubmission(c *gin.Context) (models.SubmitResourceRequest, service.ResourceUpload, func(), error) {
	var req models.SubmitResourceRequest
	noop := func() {}

	if err := c.ShouldBind(&req); err != nil {
		return req, service.ResourceUpload{}, noop, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission fields")
	}
	if len(req.Tags) == 1 && strings.Contains(req.Tags[0], ",") {
		req.Tags = strings.Split(req.Tags[0], ",")
	}

	header, err := c.FormFile("file")
	if err != nil {
		return req, service.ResourceUpload{}, noop, appErrors.Clone(appErrors.ErrValidation, "file is required")
	}

	file, err := header.Open()
	if err != nil {
		return req, service.ResourceUpload{}, noop, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read uploaded file")
	}

	upload := service.ResourceUpload{
		Filename: header.Filename,
		Size:     header.Size,
		MimeType: header.Header.Get("Content-Type"),
		Content:  file,
	}
	return req, upload, func() { file.Close() }, nil
}

func resourceFilterFromQuery(c *gin.Context) models.ResourceFilter {
	return models.ResourceFilter{
		Status:   models.ResourceStatus(c.Query("status")),
		Category: c.Query("category"),
		Year:     queryInt(c, "year"),
		Semester: queryInt(c, "semester"),
		Module:   c.Query("module"),
		Search:   c.Query("search"),
		Page:     queryInt(c, "page"),
		Limit:    queryInt(c, "limit"),
	}
}
