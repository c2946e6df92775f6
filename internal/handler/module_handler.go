package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/learnbridge/learnbridge-api/internal/middleware"
	"github.com/learnbridge/learnbridge-api/internal/models"
	"github.com/learnbridge/learnbridge-api/internal/service"
	appErrors "github.com/learnbridge/learnbridge-api/pkg/errors"
	"github.com/learnbridge/learnbridge-api/pkg/response"
)

// ModuleHandler exposes the module catalog endpoints.
type ModuleHandler struct {
	modules *service.ModuleService
	logger  *zap.Logger
}

func NewModuleHandler(modules *service.ModuleService, logger *zap.Logger) *ModuleHandler {
	return &ModuleHandler{modules: modules, logger: logger}
}

// List handles GET /modules.
func (h *ModuleHandler) List(c *gin.Context) {
	filter := models.ModuleFilter{
		Year:     queryInt(c, "year"),
		Semester: queryInt(c, "semester"),
		Page:     queryInt(c, "page"),
		Limit:    queryInt(c, "limit"),
	}

	modules, pagination, err := h.modules.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "", modules, pagination)
}

// Get handles GET /modules/:id.
func (h *ModuleHandler) Get(c *gin.Context) {
	module, err := h.modules.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, module)
}

// Create handles POST /modules.
func (h *ModuleHandler) Create(c *gin.Context) {
	claims, _ := middleware.CurrentUser(c)

	var req models.ModuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	module, err := h.modules.Create(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "module created", module)
}

// Update handles PUT /modules/:id.
func (h *ModuleHandler) Update(c *gin.Context) {
	claims, _ := middleware.CurrentUser(c)

	var req models.ModuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	module, err := h.modules.Update(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "module updated", module, nil)
}

// Delete handles DELETE /modules/:id.
func (h *ModuleHandler) Delete(c *gin.Context) {
	claims, _ := middleware.CurrentUser(c)

	if err := h.modules.Delete(c.Request.Context(), claims, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "module deleted", nil, nil)
}
